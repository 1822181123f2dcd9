// Package dashboard parses the penguinboard command configuration and runs
// the HTTP server and export worker until the context is cancelled.
package dashboard

import (
	"context"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"penguinboard/internal/adapters/views"
	"penguinboard/internal/blob"
	"penguinboard/internal/dataset"
	"penguinboard/internal/metrics"
	"penguinboard/internal/platform/config"
	"penguinboard/internal/platform/logging"
	platformotel "penguinboard/internal/platform/otel"
	"penguinboard/internal/session"
	"penguinboard/internal/web"
)

const serviceName = "penguinboard"

// Metrics backends accepted by Config.Metrics.
const (
	MetricsPrometheus = "prometheus"
	MetricsExpvar     = "expvar"
	MetricsNone       = "none"
)

// Config holds dashboard command configuration.
type Config struct {
	Addr            string        `env:"PENGUINBOARD_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"PENGUINBOARD_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"PENGUINBOARD_LOG_FORMAT" envDefault:"text"`
	Metrics         string        `env:"PENGUINBOARD_METRICS" envDefault:"prometheus"`
	OTelEndpoint    string        `env:"PENGUINBOARD_OTEL_ENDPOINT"`
	SessionTTL      time.Duration `env:"PENGUINBOARD_SESSION_TTL" envDefault:"30m"`
	SessionCapacity int           `env:"PENGUINBOARD_SESSION_CAPACITY" envDefault:"1024"`
	ExportQueue     int           `env:"PENGUINBOARD_EXPORT_QUEUE" envDefault:"32"`
	SecureCookies   bool          `env:"PENGUINBOARD_SECURE_COOKIES"`
	Language        string        `env:"PENGUINBOARD_LANGUAGE" envDefault:"en"`
	ShutdownTimeout time.Duration `env:"PENGUINBOARD_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Dataset dataset.Config `envPrefix:"PENGUINBOARD_DATASET_"`
	Blob    blob.Config    `envPrefix:"PENGUINBOARD_BLOB_"`
}

// ParseConfig parses environment and flags into a Config. Flags override
// environment values.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	fs.StringVar(&cfg.Metrics, "metrics", cfg.Metrics, "Metrics backend: prometheus, expvar or none")
	fs.StringVar(&cfg.OTelEndpoint, "otel-endpoint", cfg.OTelEndpoint, "OTLP/HTTP trace endpoint; tracing is off when empty")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "Idle time before a session expires")
	fs.IntVar(&cfg.SessionCapacity, "session-capacity", cfg.SessionCapacity, "Maximum live sessions")
	fs.IntVar(&cfg.ExportQueue, "export-queue", cfg.ExportQueue, "Export queue capacity")
	fs.StringVar(&cfg.Language, "language", cfg.Language, "BCP 47 tag used for number formatting")
	fs.BoolVar(&cfg.SecureCookies, "secure-cookies", cfg.SecureCookies, "Mark the session cookie Secure")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown timeout")

	fs.StringVar(&cfg.Dataset.Driver, "dataset", cfg.Dataset.Driver, "Dataset source: embedded, file, blob, sqlite or postgres")
	fs.StringVar(&cfg.Dataset.Path, "dataset-file", cfg.Dataset.Path, "CSV path (file) or database path (sqlite)")
	fs.StringVar(&cfg.Dataset.BlobKey, "dataset-blob-key", cfg.Dataset.BlobKey, "Blob key of the dataset CSV (blob)")
	fs.StringVar(&cfg.Dataset.DSN, "dataset-dsn", cfg.Dataset.DSN, "Postgres DSN (postgres)")

	fs.StringVar(&cfg.Blob.Driver, "blob", cfg.Blob.Driver, "Blob driver: fs, memory or s3")
	fs.StringVar(&cfg.Blob.FSRoot, "blob-root", cfg.Blob.FSRoot, "Root directory of the fs blob driver")
	fs.StringVar(&cfg.Blob.S3Bucket, "s3-bucket", cfg.Blob.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.Blob.S3Region, "s3-region", cfg.Blob.S3Region, "S3 region")
	fs.StringVar(&cfg.Blob.S3Endpoint, "s3-endpoint", cfg.Blob.S3Endpoint, "S3 endpoint override (MinIO)")
	fs.BoolVar(&cfg.Blob.S3PathStyle, "s3-path-style", cfg.Blob.S3PathStyle, "Use path-style S3 addressing")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return cfg, nil
}

// runtime is the wired process: an HTTP handler plus the components whose
// lifecycle Run manages.
type runtime struct {
	handler  http.Handler
	worker   *views.Worker
	sessions *session.Manager
	logger   logging.Logger
}

func newRecorder(kind string) (metrics.Recorder, http.Handler, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", MetricsPrometheus:
		p := metrics.NewPrometheus()
		return p, p.Handler(), nil
	case MetricsExpvar:
		return metrics.NewExpvar(""), expvar.Handler(), nil
	case MetricsNone:
		return metrics.Nop(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown metrics backend %q", kind)
	}
}

func build(ctx context.Context, cfg Config, logger logging.Logger) (*runtime, error) {
	recorder, metricsHandler, err := newRecorder(cfg.Metrics)
	if err != nil {
		return nil, err
	}
	tag := language.English
	if cfg.Language != "" {
		if tag, err = language.Parse(cfg.Language); err != nil {
			return nil, fmt.Errorf("parse language: %w", err)
		}
	}
	store, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	ds, err := dataset.Open(ctx, cfg.Dataset, dataset.Deps{Blob: store, Logger: logger, Recorder: recorder})
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(ds,
		session.WithTTL(cfg.SessionTTL),
		session.WithCapacity(cfg.SessionCapacity),
		session.WithLogger(logger),
		session.WithRecorder(recorder),
	)
	worker := views.NewWorker(views.WorkerConfig{
		Store:     store,
		QueueSize: cfg.ExportQueue,
		Logger:    logger,
		Recorder:  recorder,
	})
	api := views.NewHandler(sessions)
	api.Exports = worker
	api.Logger = logger

	srv, err := web.NewServer(web.Config{
		Sessions:      sessions,
		API:           api,
		Metrics:       metricsHandler,
		Logger:        logger,
		Recorder:      recorder,
		Language:      tag,
		SecureCookies: cfg.SecureCookies,
	})
	if err != nil {
		sessions.Close()
		return nil, err
	}
	return &runtime{handler: srv.Handler(), worker: worker, sessions: sessions, logger: logger}, nil
}

// Run wires every component from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	return run(ctx, cfg, os.Stderr, nil)
}

// run is Run with an injectable log sink and listener.
func run(ctx context.Context, cfg Config, logOut io.Writer, ln net.Listener) error {
	logger, err := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	shutdownTracing, err := platformotel.Setup(ctx, serviceName, cfg.OTelEndpoint, cfg.OTelEndpoint != "")
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	rt, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.sessions.Close()

	if ln == nil {
		ln, err = net.Listen("tcp", cfg.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Addr, err)
		}
	}
	httpServer := &http.Server{
		Handler:           rt.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.worker.Run(gctx) })
	g.Go(func() error {
		logger.Info("http server listening", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	err = g.Wait()
	logger.Info("penguinboard stopped", "error", err)
	return err
}
