// Package metrics records operation outcomes and gauges for the dashboard.
// Recorders are pluggable: Prometheus for scraped deployments, expvar for
// process-local inspection, and a no-op default.
package metrics

import (
	"context"
	"time"
)

// Operation names observed across packages.
const (
	OpViewRecompute = "view_recompute"
	OpSelectionSet  = "selection_set"
	OpExport        = "export"
	OpHTTPRequest   = "http_request"
	OpDatasetLoad   = "dataset_load"
)

// Gauge names.
const (
	GaugeActiveSessions = "active_sessions"
	GaugeDatasetRecords = "dataset_records"
)

// Recorder observes operation outcomes and point-in-time values.
type Recorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	SetGauge(name string, value float64)
}

type nopRecorder struct{}

func (nopRecorder) Observe(context.Context, string, bool, time.Duration) {}
func (nopRecorder) SetGauge(string, float64)                             {}

// Nop returns a recorder that drops everything.
func Nop() Recorder { return nopRecorder{} }

// OrNop returns r, or a no-op recorder when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
