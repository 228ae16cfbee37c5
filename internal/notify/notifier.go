package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sink delivers events to their destination (Kafka in production, memory in
// tests).
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Metrics tracks the health of the side channel.
type Metrics struct {
	Emitted   *prometheus.CounterVec
	Dropped   prometheus.Counter
	Failures  prometheus.Counter
	Delivered prometheus.Counter
}

// NewMetrics registers notification metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Emitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "sigil_notify_events_emitted_total",
			Help: "Ledger notification events emitted by type",
		}, []string{"type"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_notify_events_dropped_total",
			Help: "Ledger notification events dropped due to a full buffer",
		}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_notify_publish_failures_total",
			Help: "Ledger notification publish failures",
		}),
		Delivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sigil_notify_events_delivered_total",
			Help: "Ledger notification events delivered to the sink",
		}),
	}
}

// Notifier buffers events for asynchronous delivery. Emit never blocks.
type Notifier struct {
	inbox   chan Event
	logger  *slog.Logger
	metrics *Metrics
}

// NewNotifier creates a notifier with the given buffer capacity.
func NewNotifier(capacity int, logger *slog.Logger, metrics *Metrics) *Notifier {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Notifier{
		inbox:   make(chan Event, capacity),
		logger:  logger,
		metrics: metrics,
	}
}

// Emit enqueues an event for delivery. When the buffer is full the event is
// dropped and counted; the caller is never delayed or failed.
func (n *Notifier) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case n.inbox <- event:
		if n.metrics != nil {
			n.metrics.Emitted.WithLabelValues(string(event.Type)).Inc()
		}
	default:
		if n.metrics != nil {
			n.metrics.Dropped.Inc()
		}
		n.logger.WarnContext(ctx, "notification buffer full, event dropped",
			"type", event.Type,
			"issuer_id", event.IssuerID,
		)
	}
}

// Worker drains the notifier's buffer into a sink. Publish failures are
// retried once after a short delay, then logged and dropped - the side
// channel never blocks forever on a dead broker.
type Worker struct {
	notifier *Notifier
	sink     Sink
	logger   *slog.Logger
	metrics  *Metrics

	retryDelay time.Duration
}

// NewWorker creates a worker for the notifier.
func NewWorker(notifier *Notifier, sink Sink, logger *slog.Logger, metrics *Metrics) *Worker {
	return &Worker{
		notifier:   notifier,
		sink:       sink,
		logger:     logger,
		metrics:    metrics,
		retryDelay: 250 * time.Millisecond,
	}
}

// Run consumes events until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.notifier.inbox:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event Event) {
	err := w.sink.Publish(ctx, event)
	if err == nil {
		if w.metrics != nil {
			w.metrics.Delivered.Inc()
		}
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(w.retryDelay):
	}

	if err = w.sink.Publish(ctx, event); err != nil {
		if w.metrics != nil {
			w.metrics.Failures.Inc()
		}
		w.logger.WarnContext(ctx, "notification publish failed",
			"type", event.Type,
			"issuer_id", event.IssuerID,
			"error", err,
		)
		return
	}
	if w.metrics != nil {
		w.metrics.Delivered.Inc()
	}
}
