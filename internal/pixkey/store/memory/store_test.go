package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"pixkey/internal/pixkey/engine"
	"pixkey/internal/pixkey/models"
	"pixkey/internal/pixkey/outbox"
	"pixkey/internal/pixkey/service"
	id "pixkey/pkg/domain"
	dErrors "pixkey/pkg/domain-errors"
	"pixkey/pkg/platform/sentinel"
)

var now = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type StoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
	owner id.UserID
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = New()
	s.ctx = context.Background()
	s.owner = id.UserID(uuid.New())
}

func (s *StoreSuite) newKey(value string) *models.Key {
	k, err := models.NewKey(id.NewKeyID(), s.owner, models.KeyTypeEmail, value, now)
	s.Require().NoError(err)
	return k
}

func (s *StoreSuite) TestCreateEnforcesOneLiveKeyPerValue() {
	first := s.newKey("a@b.com")
	s.Require().NoError(s.store.Keys().Create(s.ctx, first))

	s.Run("second live key conflicts", func() {
		err := s.store.Keys().Create(s.ctx, s.newKey("a@b.com"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("slot frees once the first key is canceled", func() {
		first.State = models.StateCanceled
		s.Require().NoError(s.store.Keys().Update(s.ctx, first))
		s.NoError(s.store.Keys().Create(s.ctx, s.newKey("a@b.com")))
	})

	s.Run("different type, same value is allowed", func() {
		k := s.newKey("a@b.com")
		k.KeyType = models.KeyTypeDocument
		s.NoError(s.store.Keys().Create(s.ctx, k))
	})
}

func (s *StoreSuite) TestTransactionIsAtomic() {
	key := s.newKey("atomic@b.com")
	key.State = models.StateReady
	s.store.Seed(key)

	boom := errors.New("boom")
	err := s.store.RunInTx(s.ctx, key.ID, func(ctx context.Context, st service.Stores) error {
		k, err := st.Keys.FindByID(ctx, key.ID)
		s.Require().NoError(err)
		k.Claim = models.NewClaim(id.NewClaimID(), k.ID, models.ClaimTypeOwnership, models.ReasonDefaultOperation, now)
		k.State = models.StateClaimPending
		s.Require().NoError(st.Claims.Open(ctx, k.Claim))
		s.Require().NoError(st.Keys.Update(ctx, k))
		s.Require().NoError(st.Outbox.Append(ctx, &outbox.Entry{ID: uuid.New(), KeyID: k.ID, Status: outbox.StatusPending}))

		// visible inside the transaction
		staged, err := st.Keys.FindByID(ctx, key.ID)
		s.Require().NoError(err)
		s.Equal(models.StateClaimPending, staged.State)

		// invisible outside it
		committed, err := s.store.Keys().FindByID(ctx, key.ID)
		s.Require().NoError(err)
		s.Equal(models.StateReady, committed.State)
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.Keys().FindByID(s.ctx, key.ID)
	s.Require().NoError(err)
	s.Equal(models.StateReady, got.State)
	s.Nil(got.Claim)
	s.Empty(s.store.OutboxEntries())
}

func (s *StoreSuite) TestClaimLifecycle() {
	key := s.newKey("claim@b.com")
	key.State = models.StateOwnershipWaiting
	key.Claim = models.NewClaim(id.NewClaimID(), key.ID, models.ClaimTypeOwnership, models.ReasonUserRequested, now)
	s.store.Seed(key)

	err := s.store.RunInTx(s.ctx, key.ID, func(ctx context.Context, st service.Stores) error {
		return st.Claims.Close(ctx, key.Claim.ID, now.Add(time.Minute))
	})
	s.Require().NoError(err)

	c, ok := s.store.Claim(key.Claim.ID)
	s.Require().True(ok)
	s.False(c.IsOpen())
	s.Equal(now.Add(time.Minute), *c.ClosedAt)

	err = s.store.RunInTx(s.ctx, key.ID, func(ctx context.Context, st service.Stores) error {
		return st.Claims.Close(ctx, id.NewClaimID(), now)
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestQueries() {
	a := s.newKey("a@q.com")
	b := s.newKey("b@q.com")
	b.CreatedAt = now.Add(time.Second)
	b.State = models.StateDeleted
	other, err := models.NewKey(id.NewKeyID(), id.UserID(uuid.New()), models.KeyTypeEmail, "c@q.com", now)
	s.Require().NoError(err)
	s.store.Seed(a)
	s.store.Seed(b)
	s.store.Seed(other)

	owned, err := s.store.Keys().ListByOwner(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Require().Len(owned, 2)
	s.Equal(a.ID, owned[0].ID)

	active, err := s.store.Keys().ListActiveByValue(s.ctx, "b@q.com")
	s.Require().NoError(err)
	s.Empty(active, "DELETED keys are not live")

	_, err = s.store.Keys().FindByID(s.ctx, id.NewKeyID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestOutboxLifecycle() {
	e1 := &outbox.Entry{ID: uuid.New(), Kind: engine.EffectEmitEvent, Status: outbox.StatusPending, NextAttemptAt: now}
	e2 := &outbox.Entry{ID: uuid.New(), Kind: engine.EffectEmitEvent, Status: outbox.StatusPending, NextAttemptAt: now.Add(time.Hour)}
	key := s.newKey("outbox@b.com")
	s.store.Seed(key)
	s.Require().NoError(s.store.RunInTx(s.ctx, key.ID, func(ctx context.Context, st service.Stores) error {
		return st.Outbox.Append(ctx, e1, e2)
	}))

	due, err := s.store.ListDue(s.ctx, now, 10)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(e1.ID, due[0].ID)

	s.Require().NoError(s.store.MarkRetry(s.ctx, e1.ID, 1, now.Add(time.Minute), "timeout"))
	due, err = s.store.ListDue(s.ctx, now, 10)
	s.Require().NoError(err)
	s.Empty(due)

	s.Require().NoError(s.store.MarkDelivered(s.ctx, e1.ID, now))
	s.Require().NoError(s.store.MarkParked(s.ctx, e2.ID, 10, "gave up"))

	entries := s.store.OutboxEntries()
	s.Equal(outbox.StatusDelivered, entries[0].Status)
	s.Equal(outbox.StatusParked, entries[1].Status)

	due, err = s.store.ListDue(s.ctx, now.Add(24*time.Hour), 10)
	s.Require().NoError(err)
	s.Empty(due)

	s.ErrorIs(s.store.MarkDelivered(s.ctx, uuid.New(), now), sentinel.ErrNotFound)
}

func TestRunInTxSerializesSameKey(t *testing.T) {
	store := New()
	keyID := id.NewKeyID()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.RunInTx(context.Background(), keyID, func(context.Context, service.Stores) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestRunInTxHonoursCancellation(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := store.RunInTx(ctx, id.NewKeyID(), func(context.Context, service.Stores) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.False(t, called)
}
