package memory

import (
	"context"
	"fmt"
	"time"

	"pixkey/internal/pixkey/models"
	"pixkey/internal/pixkey/outbox"
	"pixkey/internal/pixkey/service"
	id "pixkey/pkg/domain"
	"pixkey/pkg/platform/sentinel"
)

// txn stages writes until commit so readers never see part of a transition.
type txn struct {
	base    *Store
	keys    map[id.KeyID]*models.Key
	created map[id.KeyID]bool
	claims  map[id.ClaimID]*models.Claim
	entries []*outbox.Entry
}

func newTxn(base *Store) *txn {
	return &txn{
		base:    base,
		keys:    make(map[id.KeyID]*models.Key),
		created: make(map[id.KeyID]bool),
		claims:  make(map[id.ClaimID]*models.Claim),
	}
}

func (t *txn) stores() service.Stores {
	return service.Stores{
		Keys:   &txKeys{t: t},
		Claims: &txClaims{t: t},
		Outbox: &txOutbox{t: t},
	}
}

// view merges staged keys over committed ones. Caller holds base.mu.
func (t *txn) view() map[id.KeyID]*models.Key {
	merged := make(map[id.KeyID]*models.Key, len(t.base.keys)+len(t.keys))
	for kid, k := range t.base.keys {
		merged[kid] = k
	}
	for kid, k := range t.keys {
		merged[kid] = k
	}
	return merged
}

func (t *txn) commit() error {
	s := t.base
	s.mu.Lock()
	defer s.mu.Unlock()

	// another shard may have taken the slot since the staged check
	for kid := range t.created {
		staged := t.keys[kid]
		for _, existing := range s.keys {
			if sameSlot(existing, staged) {
				return fmt.Errorf("key %s: %w", kid, sentinel.ErrConflict)
			}
		}
	}

	for kid, k := range t.keys {
		s.keys[kid] = k
	}
	for cid, c := range t.claims {
		s.claims[cid] = c
	}
	for _, e := range t.entries {
		s.outbox[e.ID] = e
		s.outboxOrder = append(s.outboxOrder, e.ID)
	}
	return nil
}

type txKeys struct {
	t *txn
}

func (r *txKeys) FindByID(_ context.Context, keyID id.KeyID) (*models.Key, error) {
	if k, ok := r.t.keys[keyID]; ok {
		return k.Clone(), nil
	}
	r.t.base.mu.RLock()
	defer r.t.base.mu.RUnlock()
	k, ok := r.t.base.keys[keyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return k.Clone(), nil
}

func (r *txKeys) ListActiveByValue(_ context.Context, keyValue string) ([]*models.Key, error) {
	r.t.base.mu.RLock()
	defer r.t.base.mu.RUnlock()
	var out []*models.Key
	for _, k := range r.t.view() {
		if k.KeyValue == keyValue && live(k) {
			out = append(out, k.Clone())
		}
	}
	sortKeys(out)
	return out, nil
}

func (r *txKeys) ListByOwner(_ context.Context, owner id.UserID) ([]*models.Key, error) {
	r.t.base.mu.RLock()
	defer r.t.base.mu.RUnlock()
	var out []*models.Key
	for _, k := range r.t.view() {
		if k.OwnerUserID == owner {
			out = append(out, k.Clone())
		}
	}
	sortKeys(out)
	return out, nil
}

func (r *txKeys) Create(_ context.Context, key *models.Key) error {
	r.t.base.mu.RLock()
	defer r.t.base.mu.RUnlock()
	view := r.t.view()
	if _, exists := view[key.ID]; exists {
		return fmt.Errorf("key %s: %w", key.ID, sentinel.ErrConflict)
	}
	for _, existing := range view {
		if sameSlot(existing, key) {
			return fmt.Errorf("key %s: %w", key.ID, sentinel.ErrConflict)
		}
	}
	r.t.keys[key.ID] = key.Clone()
	r.t.created[key.ID] = true
	return nil
}

func (r *txKeys) Update(_ context.Context, key *models.Key) error {
	if _, ok := r.t.keys[key.ID]; !ok {
		r.t.base.mu.RLock()
		_, ok = r.t.base.keys[key.ID]
		r.t.base.mu.RUnlock()
		if !ok {
			return sentinel.ErrNotFound
		}
	}
	r.t.keys[key.ID] = key.Clone()
	return nil
}

type txClaims struct {
	t *txn
}

func (r *txClaims) find(claimID id.ClaimID) (*models.Claim, bool) {
	if c, ok := r.t.claims[claimID]; ok {
		return c, true
	}
	r.t.base.mu.RLock()
	defer r.t.base.mu.RUnlock()
	c, ok := r.t.base.claims[claimID]
	return c, ok
}

func (r *txClaims) Open(_ context.Context, claim *models.Claim) error {
	if _, exists := r.find(claim.ID); exists {
		return fmt.Errorf("claim %s: %w", claim.ID, sentinel.ErrConflict)
	}
	r.t.claims[claim.ID] = claim.Clone()
	return nil
}

func (r *txClaims) Update(_ context.Context, claim *models.Claim) error {
	if _, ok := r.find(claim.ID); !ok {
		return sentinel.ErrNotFound
	}
	r.t.claims[claim.ID] = claim.Clone()
	return nil
}

func (r *txClaims) Close(_ context.Context, claimID id.ClaimID, closedAt time.Time) error {
	c, ok := r.find(claimID)
	if !ok {
		return sentinel.ErrNotFound
	}
	closed := c.Clone()
	closed.ApplyClose(closedAt)
	r.t.claims[claimID] = closed
	return nil
}

type txOutbox struct {
	t *txn
}

func (r *txOutbox) Append(_ context.Context, entries ...*outbox.Entry) error {
	for _, e := range entries {
		r.t.entries = append(r.t.entries, e.Clone())
	}
	return nil
}
