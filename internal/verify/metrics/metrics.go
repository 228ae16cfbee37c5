package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification engine.
type Metrics struct {
	// Verdicts by terminal status ("VALID", "UNKNOWN", "TAMPERED") and by
	// reason ("" for VALID)
	Verdicts *prometheus.CounterVec

	// End-to-end verification latency including body rehashing
	Latency prometheus.Histogram

	// Input or infrastructure errors that prevented a verdict
	Errors prometheus.Counter
}

// New creates a Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		Verdicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_verify_verdicts_total",
			Help: "Total verification verdicts by status and reason",
		}, []string{"status", "reason"}),

		Latency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigil_verify_duration_seconds",
			Help:    "Duration of verification requests",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		Errors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_verify_errors_total",
			Help: "Total verification requests that failed before reaching a verdict",
		}),
	}
}

// IncVerdict records a terminal verdict.
func (m *Metrics) IncVerdict(status, reason string) {
	if m != nil {
		m.Verdicts.WithLabelValues(status, reason).Inc()
	}
}

// ObserveLatency records the duration of a verification.
func (m *Metrics) ObserveLatency(d time.Duration) {
	if m != nil {
		m.Latency.Observe(d.Seconds())
	}
}

// IncError records a request that produced no verdict.
func (m *Metrics) IncError() {
	if m != nil {
		m.Errors.Inc()
	}
}
