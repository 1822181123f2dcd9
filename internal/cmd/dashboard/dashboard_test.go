package dashboard

import (
	"context"
	"flag"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"penguinboard/internal/platform/logging"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("penguinboard", flag.ContinueOnError)
	t.Setenv("PENGUINBOARD_ADDR", ":9099")
	t.Setenv("PENGUINBOARD_DATASET_DRIVER", "file")
	t.Setenv("PENGUINBOARD_DATASET_FILE", "/data/penguins.csv")
	t.Setenv("PENGUINBOARD_BLOB_S3_BUCKET", "exports")

	cfg, err := ParseConfig(fs, []string{"-metrics", "expvar", "-session-ttl", "5m", "-blob", "memory"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":9099" {
		t.Fatalf("addr = %q, want %q", cfg.Addr, ":9099")
	}
	if cfg.Dataset.Driver != "file" || cfg.Dataset.Path != "/data/penguins.csv" {
		t.Fatalf("dataset = %+v", cfg.Dataset)
	}
	if cfg.Blob.Driver != "memory" || cfg.Blob.S3Bucket != "exports" {
		t.Fatalf("blob = %+v", cfg.Blob)
	}
	if cfg.Metrics != MetricsExpvar {
		t.Fatalf("metrics = %q, want %q", cfg.Metrics, MetricsExpvar)
	}
	if cfg.SessionTTL != 5*time.Minute {
		t.Fatalf("session ttl = %v, want 5m", cfg.SessionTTL)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("penguinboard", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q, want %q", cfg.Addr, ":8080")
	}
	if cfg.Dataset.Driver != "embedded" {
		t.Fatalf("dataset driver = %q, want embedded", cfg.Dataset.Driver)
	}
	if cfg.Blob.Driver != "fs" {
		t.Fatalf("blob driver = %q, want fs", cfg.Blob.Driver)
	}
	if cfg.Language != "en" {
		t.Fatalf("language = %q, want en", cfg.Language)
	}
	if cfg.ExportQueue != 32 || cfg.SessionCapacity != 1024 {
		t.Fatalf("unexpected limits %+v", cfg)
	}
}

func TestParseConfig_RejectsPositionalArgs(t *testing.T) {
	fs := flag.NewFlagSet("penguinboard", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := ParseConfig(fs, []string{"serve"}); err == nil {
		t.Fatalf("expected error for positional argument")
	}
}

func testConfig() Config {
	return Config{
		Metrics:         MetricsPrometheus,
		SessionTTL:      time.Minute,
		SessionCapacity: 16,
		ExportQueue:     4,
		ShutdownTimeout: 2 * time.Second,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

func TestBuildServesDashboardAndMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.Dataset.Driver = "embedded"
	cfg.Blob.Driver = "memory"

	rt, err := build(context.Background(), cfg, logging.Nop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer rt.sessions.Close()

	srv := httptest.NewServer(rt.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Nollettecs Penguins") {
		t.Fatalf("page status %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/v1/dataset")
	if err != nil {
		t.Fatalf("get dataset: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dataset status %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "penguinboard_") {
		t.Fatalf("metrics status %d body %q", resp.StatusCode, body)
	}
}

func TestBuildMetricsNoneLeavesEndpointUnmounted(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics = MetricsNone
	cfg.Dataset.Driver = "embedded"
	cfg.Blob.Driver = "memory"

	rt, err := build(context.Background(), cfg, logging.Nop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer rt.sessions.Close()

	rec := httptest.NewRecorder()
	rt.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("metrics status = %d, want 404", rec.Code)
	}
}

func TestBuildRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Blob.Driver = "memory"
	cfg.Metrics = "statsd"
	if _, err := build(context.Background(), cfg, logging.Nop()); err == nil {
		t.Fatalf("expected unknown metrics backend error")
	}

	cfg = testConfig()
	cfg.Blob.Driver = "memory"
	cfg.Dataset.Driver = "parquet"
	if _, err := build(context.Background(), cfg, logging.Nop()); err == nil {
		t.Fatalf("expected unknown dataset driver error")
	}

	cfg = testConfig()
	cfg.Blob.Driver = "memory"
	cfg.Language = "not a tag!"
	if _, err := build(context.Background(), cfg, logging.Nop()); err == nil {
		t.Fatalf("expected language parse error")
	}

	cfg = testConfig()
	cfg.Blob.Driver = "tape"
	if _, err := build(context.Background(), cfg, logging.Nop()); err == nil {
		t.Fatalf("expected unknown blob driver error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Dataset.Driver = "embedded"
	cfg.Blob.Driver = "memory"

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, io.Discard, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("healthz status %d", resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became ready: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop")
	}
}
