package notify

import (
	"context"
	"sync"
)

// MemorySink collects events in memory. Used by tests and by deployments
// that run without a broker.
type MemorySink struct {
	mu     sync.Mutex
	events []Event

	// FailNext makes the next Publish calls fail; tests use it to exercise
	// the worker's retry path.
	FailNext int
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Publish records the event.
func (s *MemorySink) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext > 0 {
		s.FailNext--
		return errPublishFailed
	}
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of everything published.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

type publishError struct{}

func (publishError) Error() string { return "notify: publish failed" }

var errPublishFailed = publishError{}
