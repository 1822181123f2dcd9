package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus records into a private registry exposed by Handler.
type Prometheus struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	gauges     *prometheus.GaugeVec
}

// NewPrometheus builds a recorder with its own registry, including the Go
// runtime and process collectors.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "penguinboard",
			Name:      "operations_total",
			Help:      "Operations performed, by name and outcome.",
		}, []string{"operation", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "penguinboard",
			Name:      "operation_duration_seconds",
			Help:      "Operation latency, by name.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
		gauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "penguinboard",
			Name:      "state",
			Help:      "Point-in-time values such as active sessions.",
		}, []string{"name"}),
	}
	reg.MustRegister(
		p.operations,
		p.durations,
		p.gauges,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Observe implements Recorder.
func (p *Prometheus) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	p.operations.WithLabelValues(operation, statusLabel(success)).Inc()
	p.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetGauge implements Recorder.
func (p *Prometheus) SetGauge(name string, value float64) {
	if name == "" {
		return
	}
	p.gauges.WithLabelValues(name).Set(value)
}

// Registry exposes the underlying registry for tests and extra collectors.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
