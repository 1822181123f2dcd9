package dataset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"penguinboard/internal/blob"
	"penguinboard/internal/metrics"
	"penguinboard/internal/platform/logging"
	"penguinboard/pkg/penguins"
)

// Driver names accepted by Config.Driver.
const (
	DriverEmbedded = "embedded"
	DriverFile     = "file"
	DriverBlob     = "blob"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the dataset source. It is filled from PENGUINBOARD_DATASET_*
// environment variables and flags.
type Config struct {
	Driver  string `env:"DRIVER" envDefault:"embedded"`
	Path    string `env:"FILE"` // CSV path for file, database path for sqlite
	BlobKey string `env:"BLOB_KEY" envDefault:"datasets/penguins.csv"`
	DSN     string `env:"DSN"`
}

// Deps carries collaborators some sources need.
type Deps struct {
	Blob     blob.Store
	Logger   logging.Logger
	Recorder metrics.Recorder
}

// NewSource maps cfg onto a Source.
func NewSource(cfg Config, deps Deps) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverEmbedded:
		return Embedded(), nil
	case DriverFile:
		return File(cfg.Path), nil
	case DriverBlob:
		return Blob(deps.Blob, cfg.BlobKey), nil
	case DriverSQLite:
		return SQLite(cfg.Path, Sample()), nil
	case DriverPostgres:
		return Postgres(cfg.DSN, Sample()), nil
	default:
		return nil, fmt.Errorf("unknown dataset driver %q", cfg.Driver)
	}
}

// Open loads the dataset named by cfg. An empty dataset is an error: the
// dashboard has nothing to show without records.
func Open(ctx context.Context, cfg Config, deps Deps) (penguins.Dataset, error) {
	logger := logging.OrNop(deps.Logger)
	recorder := metrics.OrNop(deps.Recorder)

	src, err := NewSource(cfg, deps)
	if err != nil {
		return penguins.Dataset{}, err
	}
	start := time.Now()
	ds, err := src.Load(ctx)
	if err == nil && ds.Len() == 0 {
		err = fmt.Errorf("dataset source %q produced no records", driverName(cfg))
	}
	recorder.Observe(ctx, metrics.OpDatasetLoad, err == nil, time.Since(start))
	if err != nil {
		return penguins.Dataset{}, fmt.Errorf("load dataset: %w", err)
	}
	recorder.SetGauge(metrics.GaugeDatasetRecords, float64(ds.Len()))

	counts := ds.SpeciesCounts()
	logger.Info("dataset loaded",
		"driver", driverName(cfg),
		"records", ds.Len(),
		"adelie", counts[penguins.SpeciesAdelie],
		"chinstrap", counts[penguins.SpeciesChinstrap],
		"gentoo", counts[penguins.SpeciesGentoo],
		"duration", time.Since(start),
	)
	return ds, nil
}

func driverName(cfg Config) string {
	if d := strings.ToLower(strings.TrimSpace(cfg.Driver)); d != "" {
		return d
	}
	return DriverEmbedded
}
