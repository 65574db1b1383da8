// Package outbox records post-commit side effects in the same transaction as
// the transition that produced them and delivers them at least once.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pixkey/internal/pixkey/engine"
	"pixkey/internal/pixkey/models"
	id "pixkey/pkg/domain"
)

// Status tracks an entry through delivery.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusParked    Status = "parked"
)

// Entry is one side effect waiting to be delivered.
type Entry struct {
	ID             uuid.UUID
	KeyID          id.KeyID
	Kind           engine.EffectKind
	ClaimType      models.ClaimType
	Reason         models.ClaimReason
	EventName      string
	KeyValueHash   string
	State          models.KeyState
	IdempotencyKey string
	Attempts       int
	NextAttemptAt  time.Time
	Status         Status
	LastError      string
	CreatedAt      time.Time
	DeliveredAt    *time.Time
}

// Clone copies e so stores never share pointers with callers.
func (e *Entry) Clone() *Entry {
	cp := *e
	if e.DeliveredAt != nil {
		at := *e.DeliveredAt
		cp.DeliveredAt = &at
	}
	return &cp
}

// Store is the relay's view of the outbox table.
type Store interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Entry, error)
	MarkDelivered(ctx context.Context, entryID uuid.UUID, at time.Time) error
	MarkRetry(ctx context.Context, entryID uuid.UUID, attempts int, next time.Time, lastErr string) error
	MarkParked(ctx context.Context, entryID uuid.UUID, attempts int, lastErr string) error
}

// FromDecision turns the decision's effects into pending entries. Directory
// calls are deduped per key, command and claim; events per key and target
// state.
func FromDecision(key *models.Key, keyValueHash string, d engine.Decision, now time.Time) []*Entry {
	if len(d.Effects) == 0 {
		return nil
	}
	entries := make([]*Entry, 0, len(d.Effects))
	for _, eff := range d.Effects {
		e := &Entry{
			ID:            uuid.New(),
			KeyID:         key.ID,
			Kind:          eff.Kind,
			ClaimType:     eff.ClaimType,
			Reason:        eff.Reason,
			EventName:     eff.EventName,
			KeyValueHash:  keyValueHash,
			State:         d.To,
			NextAttemptAt: now,
			Status:        StatusPending,
			CreatedAt:     now,
		}
		if e.ClaimType == "" && key.Claim != nil {
			e.ClaimType = key.Claim.Type
		}
		if eff.Kind.IsDirectoryCall() {
			e.IdempotencyKey = key.ID.String() + ":" + string(d.Command)
			if key.Claim != nil {
				e.IdempotencyKey += ":" + key.Claim.ID.String()
			}
		} else {
			e.IdempotencyKey = key.ID.String() + ":" + eff.EventName
		}
		entries = append(entries, e)
	}
	return entries
}
