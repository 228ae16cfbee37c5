package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for envelope builds.
type Metrics struct {
	// Builds by outcome ("ok", "error") and algorithm id
	Builds *prometheus.CounterVec

	// Build latency including body streaming
	BuildLatency prometheus.Histogram

	// Document sizes hashed per build
	DocumentBytes prometheus.Histogram
}

// New creates a Metrics instance with all envelope build metrics registered.
func New() *Metrics {
	return &Metrics{
		Builds: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_envelope_builds_total",
			Help: "Total envelope build attempts by outcome and algorithm",
		}, []string{"outcome", "algorithm"}),

		BuildLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigil_envelope_build_duration_seconds",
			Help:    "Duration of envelope builds including body hashing",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		DocumentBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigil_envelope_document_bytes",
			Help:    "Document sizes hashed per envelope build",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
	}
}

// IncBuild records a build attempt.
func (m *Metrics) IncBuild(outcome, algorithm string) {
	if m != nil {
		m.Builds.WithLabelValues(outcome, algorithm).Inc()
	}
}

// ObserveBuildLatency records the duration of a build.
func (m *Metrics) ObserveBuildLatency(d time.Duration) {
	if m != nil {
		m.BuildLatency.Observe(d.Seconds())
	}
}

// ObserveDocumentBytes records the size of a hashed document.
func (m *Metrics) ObserveDocumentBytes(n int) {
	if m != nil {
		m.DocumentBytes.Observe(float64(n))
	}
}
