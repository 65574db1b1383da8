package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("outbox: queue closed")

// ErrQueueFull is returned when the buffer has no room; the entries stay
// pending and the relay picks them up.
var ErrQueueFull = errors.New("outbox: queue full")

// Queue hands committed entries to a background worker so delivery does not
// hold the request. It drains on Close.
type Queue struct {
	dispatcher *Dispatcher
	inbox      chan []*Entry
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewQueue(dispatcher *Dispatcher, buffer int, logger *slog.Logger) *Queue {
	if buffer <= 0 {
		buffer = 256
	}
	return &Queue{
		dispatcher: dispatcher,
		inbox:      make(chan []*Entry, buffer),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Enqueue never blocks.
func (q *Queue) Enqueue(entries []*Entry) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.inbox <- entries:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers batches until the queue is closed and drained. Delivery uses
// ctx; cancelling it abandons in-flight batches to the relay.
func (q *Queue) Run(ctx context.Context) error {
	defer close(q.done)
	for entries := range q.inbox {
		if err := q.dispatcher.Deliver(ctx, entries); err != nil {
			q.logger.WarnContext(ctx, "queued side effects left for relay", "error", err)
		}
	}
	return nil
}

// Close stops intake and waits for Run to drain, or for ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.inbox)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
