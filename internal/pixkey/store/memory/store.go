// Package memory keeps Pix keys, claims and outbox entries in process. It
// mirrors the Postgres store's semantics: per-key exclusive transactions,
// atomic commits and one live key per (type, value).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pixkey/internal/pixkey/models"
	"pixkey/internal/pixkey/outbox"
	"pixkey/internal/pixkey/service"
	id "pixkey/pkg/domain"
	dErrors "pixkey/pkg/domain-errors"
	"pixkey/pkg/platform/sentinel"
)

// numShards spreads per-key locks so unrelated keys rarely contend.
const numShards = 128

// defaultTxTimeout is the maximum duration for a transition.
const defaultTxTimeout = 5 * time.Second

// Store is the in-memory backing for all Pix key repositories.
type Store struct {
	mu          sync.RWMutex
	keys        map[id.KeyID]*models.Key
	claims      map[id.ClaimID]*models.Claim
	outbox      map[uuid.UUID]*outbox.Entry
	outboxOrder []uuid.UUID

	shards  [numShards]sync.Mutex
	timeout time.Duration
}

type Option func(*Store)

// WithTxTimeout bounds how long RunInTx may hold a key.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

func New(opts ...Option) *Store {
	s := &Store{
		keys:    make(map[id.KeyID]*models.Key),
		claims:  make(map[id.ClaimID]*models.Claim),
		outbox:  make(map[uuid.UUID]*outbox.Entry),
		timeout: defaultTxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Keys returns the lock-free read repository.
func (s *Store) Keys() service.KeyRepository {
	return &keyReader{store: s}
}

// Seed inserts key and its open claim as-is, bypassing transitions. Tests use
// it to place keys in arbitrary states.
func (s *Store) Seed(key *models.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = key.Clone()
	if key.Claim != nil {
		s.claims[key.Claim.ID] = key.Claim.Clone()
	}
}

// Claim returns a stored claim, open or closed.
func (s *Store) Claim(claimID id.ClaimID) (*models.Claim, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[claimID]
	return c.Clone(), ok
}

// OutboxEntries returns every outbox entry in insertion order.
func (s *Store) OutboxEntries() []*outbox.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*outbox.Entry, 0, len(s.outboxOrder))
	for _, eid := range s.outboxOrder {
		out = append(out, s.outbox[eid].Clone())
	}
	return out
}

// RunInTx holds the key's shard for the duration of fn and applies the
// staged writes atomically when fn succeeds.
func (s *Store) RunInTx(ctx context.Context, keyID id.KeyID, fn func(ctx context.Context, stores service.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	shard := &s.shards[shardFor(keyID)]
	shard.Lock()
	defer shard.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	t := newTxn(s)
	if err := fn(ctx, t.stores()); err != nil {
		return err
	}
	return t.commit()
}

func shardFor(keyID id.KeyID) uint32 {
	return hashKey(keyID.String()) % numShards
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

// live reports whether k occupies its (type, value) slot.
func live(k *models.Key) bool {
	return k.State != models.StateCanceled && k.State != models.StateDeleted
}

func sameSlot(a, b *models.Key) bool {
	return a.ID != b.ID && a.KeyType == b.KeyType && a.KeyValue == b.KeyValue && live(a) && live(b)
}

func sortKeys(keys []*models.Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].ID.String() < keys[j].ID.String()
		}
		return keys[i].CreatedAt.Before(keys[j].CreatedAt)
	})
}

type keyReader struct {
	store *Store
}

func (r *keyReader) FindByID(_ context.Context, keyID id.KeyID) (*models.Key, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	k, ok := r.store.keys[keyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return k.Clone(), nil
}

func (r *keyReader) ListActiveByValue(_ context.Context, keyValue string) ([]*models.Key, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*models.Key
	for _, k := range r.store.keys {
		if k.KeyValue == keyValue && live(k) {
			out = append(out, k.Clone())
		}
	}
	sortKeys(out)
	return out, nil
}

func (r *keyReader) ListByOwner(_ context.Context, owner id.UserID) ([]*models.Key, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*models.Key
	for _, k := range r.store.keys {
		if k.OwnerUserID == owner {
			out = append(out, k.Clone())
		}
	}
	sortKeys(out)
	return out, nil
}

// Create and Update outside a transaction are single atomic writes.
func (r *keyReader) Create(ctx context.Context, key *models.Key) error {
	return r.store.RunInTx(ctx, key.ID, func(ctx context.Context, st service.Stores) error {
		return st.Keys.Create(ctx, key)
	})
}

func (r *keyReader) Update(ctx context.Context, key *models.Key) error {
	return r.store.RunInTx(ctx, key.ID, func(ctx context.Context, st service.Stores) error {
		return st.Keys.Update(ctx, key)
	})
}
