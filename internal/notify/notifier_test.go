package notify

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNotifier(t *testing.T) {
	t.Run("emit never blocks on a full buffer", func(t *testing.T) {
		n := NewNotifier(1, testLogger(), nil)
		ctx := context.Background()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for range 10 {
				n.Emit(ctx, Event{Type: EventRecordAppended, IssuerID: "acme"})
			}
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Emit blocked on full buffer")
		}
	})

	t.Run("worker delivers buffered events", func(t *testing.T) {
		n := NewNotifier(16, testLogger(), nil)
		sink := NewMemorySink()
		worker := NewWorker(n, sink, testLogger(), nil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = worker.Run(ctx) }()

		n.Emit(ctx, Event{Type: EventRecordAppended, IssuerID: "acme", ProvenanceID: "p1"})
		n.Emit(ctx, Event{Type: EventVerificationPerformed, IssuerID: "acme", Outcome: "VALID"})

		require.Eventually(t, func() bool {
			return len(sink.Events()) == 2
		}, time.Second, 10*time.Millisecond)

		events := sink.Events()
		assert.Equal(t, EventRecordAppended, events[0].Type)
		assert.Equal(t, EventVerificationPerformed, events[1].Type)
		assert.False(t, events[0].Timestamp.IsZero(), "timestamp defaulted on emit")
	})

	t.Run("worker retries a failed publish once", func(t *testing.T) {
		n := NewNotifier(16, testLogger(), nil)
		sink := NewMemorySink()
		sink.FailNext = 1
		worker := NewWorker(n, sink, testLogger(), nil)
		worker.retryDelay = time.Millisecond

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = worker.Run(ctx) }()

		n.Emit(ctx, Event{Type: EventChainVerified, IssuerID: "acme", Outcome: "intact"})

		require.Eventually(t, func() bool {
			return len(sink.Events()) == 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("worker stops on context cancellation", func(t *testing.T) {
		n := NewNotifier(16, testLogger(), nil)
		worker := NewWorker(n, NewMemorySink(), testLogger(), nil)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- worker.Run(ctx) }()
		cancel()

		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("worker did not stop")
		}
	})
}
