package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pixkey/internal/pixkey/outbox"
	"pixkey/pkg/platform/sentinel"
)

// ListDue returns pending entries whose next attempt is at or before cutoff,
// oldest first.
func (s *Store) ListDue(_ context.Context, cutoff time.Time, limit int) ([]*outbox.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*outbox.Entry
	for _, eid := range s.outboxOrder {
		e := s.outbox[eid]
		if e.Status != outbox.StatusPending || e.NextAttemptAt.After(cutoff) {
			continue
		}
		out = append(out, e.Clone())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkDelivered(_ context.Context, entryID uuid.UUID, at time.Time) error {
	return s.updateEntry(entryID, func(e *outbox.Entry) {
		delivered := at
		e.Status = outbox.StatusDelivered
		e.DeliveredAt = &delivered
		e.LastError = ""
	})
}

func (s *Store) MarkRetry(_ context.Context, entryID uuid.UUID, attempts int, next time.Time, lastErr string) error {
	return s.updateEntry(entryID, func(e *outbox.Entry) {
		if e.Status != outbox.StatusPending {
			return
		}
		e.Attempts = attempts
		e.NextAttemptAt = next
		e.LastError = lastErr
	})
}

func (s *Store) MarkParked(_ context.Context, entryID uuid.UUID, attempts int, lastErr string) error {
	return s.updateEntry(entryID, func(e *outbox.Entry) {
		if e.Status != outbox.StatusPending {
			return
		}
		e.Status = outbox.StatusParked
		e.Attempts = attempts
		e.LastError = lastErr
	})
}

func (s *Store) updateEntry(entryID uuid.UUID, mutate func(e *outbox.Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.outbox[entryID]
	if !ok {
		return sentinel.ErrNotFound
	}
	mutate(e)
	return nil
}
