package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the provenance module.
type Metrics struct {
	// Appends by outcome ("ok", "conflict", "error")
	Appends *prometheus.CounterVec

	// Append latency including chain-head hashing
	AppendLatency prometheus.Histogram

	// Chain walk results by outcome ("intact", "broken", "error")
	ChainWalks *prometheus.CounterVec

	// Records walked per chain verification
	ChainLength prometheus.Histogram
}

// New creates a Metrics instance with all provenance metrics registered.
func New() *Metrics {
	return &Metrics{
		Appends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_provenance_appends_total",
			Help: "Total record append attempts by outcome",
		}, []string{"outcome"}),

		AppendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigil_provenance_append_duration_seconds",
			Help:    "Duration of record appends including chain linkage",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		ChainWalks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_provenance_chain_walks_total",
			Help: "Total forensic chain verifications by outcome",
		}, []string{"outcome"}),

		ChainLength: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigil_provenance_chain_length_records",
			Help:    "Number of records walked per chain verification",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}),
	}
}

// IncAppend records an append attempt.
func (m *Metrics) IncAppend(outcome string) {
	if m != nil {
		m.Appends.WithLabelValues(outcome).Inc()
	}
}

// ObserveAppendLatency records the duration of an append.
func (m *Metrics) ObserveAppendLatency(d time.Duration) {
	if m != nil {
		m.AppendLatency.Observe(d.Seconds())
	}
}

// IncChainWalk records a chain verification outcome.
func (m *Metrics) IncChainWalk(outcome string) {
	if m != nil {
		m.ChainWalks.WithLabelValues(outcome).Inc()
	}
}

// ObserveChainLength records how many records a walk covered.
func (m *Metrics) ObserveChainLength(n int) {
	if m != nil {
		m.ChainLength.Observe(float64(n))
	}
}
