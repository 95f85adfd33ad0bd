package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics owns a private prometheus registry so concurrent runs in tests do
// not share collectors.
type Metrics struct {
	Registry *prometheus.Registry

	attempts      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	requests      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "release_attempts_total",
				Help: "Total of release attempts by outcome.",
			},
			[]string{"package", "outcome"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "release_stage_duration_seconds",
				Help:    "Duration of release stages.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
			},
			[]string{"stage"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "release_registry_requests_total",
				Help: "Total of registry requests by operation and result.",
			},
			[]string{"op", "result"},
		),
	}
	m.Registry.MustRegister(m.attempts, m.stageDuration, m.requests)
	return m
}

func (m *Metrics) ObserveAttempt(pkg, outcome string) {
	m.attempts.WithLabelValues(pkg, outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) ObserveRequest(op, result string) {
	m.requests.WithLabelValues(op, result).Inc()
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
