package sink

import (
	"context"
	"sync"

	"social-lab/contract"
	"social-lab/domain/event"
	"social-lab/errors"
)

var _ contract.EventSink = (*ConnectionSink)(nil)

// ConnectionSink is the buffered write side of one live connection.
// The dispatcher produces into it, the transport's writer drains Events() in FIFO order.
type ConnectionSink struct {
	mu     sync.RWMutex
	events chan event.Event
	done   chan struct{}
	closed bool
}

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		events: make(chan event.Event, bufferSize),
		done:   make(chan struct{}),
	}
}

// Consume is called by the dispatcher.
// It never blocks on a slow client: a full buffer drops the event.
func (s *ConnectionSink) Consume(ctx context.Context, e event.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.ErrSinkClosed
	}

	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrSinkSaturated
	}
}

// Events is drained by the owner of the connection.
func (s *ConnectionSink) Events() <-chan event.Event {
	return s.events
}

// Done is closed once the sink is closed.
func (s *ConnectionSink) Done() <-chan struct{} {
	return s.done
}

// Close stops accepting events. Buffered events are left for the writer to drop.
func (s *ConnectionSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}
