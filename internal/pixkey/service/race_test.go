package service_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"pixkey/internal/pixkey/directory"
	"pixkey/internal/pixkey/events"
	"pixkey/internal/pixkey/models"
	"pixkey/internal/pixkey/outbox"
	"pixkey/internal/pixkey/service"
	"pixkey/internal/pixkey/store/memory"
	"pixkey/internal/platform/config"
	"pixkey/internal/platform/logger"
	id "pixkey/pkg/domain"
	dErrors "pixkey/pkg/domain-errors"
)

const racers = 32

type raceFixture struct {
	store   *memory.Store
	gateway *directory.Recorder
	emitter *events.Recorder
	svc     *service.Service
	owner   id.UserID
}

func newRaceFixture(t *testing.T) *raceFixture {
	t.Helper()
	store := memory.New()
	gw := directory.NewRecorder()
	em := events.NewRecorder()
	d := outbox.NewDispatcher(gw, em, store, config.DirectoryConfig{RetryAttempts: 1}, outbox.WithLogger(logger.Discard()))
	return &raceFixture{
		store:   store,
		gateway: gw,
		emitter: em,
		svc:     service.New(store.Keys(), store, d, service.WithLogger(logger.Discard())),
		owner:   id.UserID(uuid.New()),
	}
}

func (f *raceFixture) seed(t *testing.T, state models.KeyState, value string) *models.Key {
	t.Helper()
	key, err := models.NewKey(id.NewKeyID(), f.owner, models.KeyTypeEmail, value, time.Now())
	require.NoError(t, err)
	key.State = state
	if state.IsClaimInProgress() {
		key.Claim = models.NewClaim(id.NewClaimID(), key.ID, models.ClaimTypeOwnership, models.ReasonUserRequested, time.Now())
	}
	f.store.Seed(key)
	return key
}

// race fires racers concurrent calls and counts outcomes. Every failure must
// be a not-found-class rejection.
func race(t *testing.T, call func(ctx context.Context) error) int32 {
	t.Helper()
	var ok, rejected int32
	g, ctx := errgroup.WithContext(context.Background())
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		g.Go(func() error {
			<-start
			err := call(ctx)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case dErrors.HasCode(err, dErrors.CodeNotFound):
				atomic.AddInt32(&rejected, 1)
			default:
				return err
			}
			return nil
		})
	}
	close(start)
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(racers), ok+rejected)
	return ok
}

func TestConcurrentDismissCommitsOnce(t *testing.T) {
	for _, from := range []models.KeyState{models.StateOwnershipReady, models.StatePortabilityCanceled, models.StateAddKeyReady} {
		t.Run(string(from), func(t *testing.T) {
			f := newRaceFixture(t)
			key := f.seed(t, from, string(from)+"@race.com")

			wins := race(t, func(ctx context.Context) error {
				_, err := f.svc.Dismiss(ctx, key.ID, f.owner)
				return err
			})

			assert.Equal(t, int32(1), wins)
			got, err := f.store.Keys().FindByID(context.Background(), key.ID)
			require.NoError(t, err)
			assert.NoError(t, got.Validate())
		})
	}
}

func TestConcurrentCancelCodeCommitsOnce(t *testing.T) {
	f := newRaceFixture(t)
	key := f.seed(t, models.StateClaimPending, "cancel@race.com")

	wins := race(t, func(ctx context.Context) error {
		_, err := f.svc.CancelCode(ctx, key.ID, f.owner, models.ReasonUserRequested)
		return err
	})

	assert.Equal(t, int32(1), wins)
	assert.Len(t, f.gateway.CallsFor(directory.OpCancelClaim), 1)
	assert.Len(t, f.store.OutboxEntries(), 1)
}

func TestConcurrentReadyEmitsOnce(t *testing.T) {
	f := newRaceFixture(t)
	f.seed(t, models.StateReady, "ready@race.com")

	// replays are accepted, only the first transition emits
	wins := race(t, func(ctx context.Context) error {
		_, err := f.svc.ReadyOwnershipClaim(ctx, models.KeyTypeEmail, "ready@race.com")
		return err
	})

	assert.Equal(t, int32(racers), wins)
	assert.Equal(t, 1, f.emitter.Count("CLAIM_PENDING"))
}

func TestDifferentKeysDoNotBlockEachOther(t *testing.T) {
	f := newRaceFixture(t)
	keys := make([]*models.Key, racers)
	for i := range keys {
		keys[i] = f.seed(t, models.StateAddKeyReady, uuid.NewString()+"@race.com")
	}

	var g errgroup.Group
	for _, k := range keys {
		g.Go(func() error {
			_, err := f.svc.Dismiss(context.Background(), k.ID, f.owner)
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, k := range keys {
		got, err := f.store.Keys().FindByID(context.Background(), k.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateReady, got.State)
	}
}

func TestRaceMixedCommandsOnOneKey(t *testing.T) {
	f := newRaceFixture(t)
	key := f.seed(t, models.StateClaimNotConfirmed, "mixed@race.com")

	// Dismiss moves CLAIM_NOT_CONFIRMED to CLAIM_PENDING; CancelCode is only
	// legal afterwards. Whatever the interleaving, the key ends consistent.
	var g errgroup.Group
	for i := 0; i < racers; i++ {
		g.Go(func() error {
			var err error
			if i%2 == 0 {
				_, err = f.svc.Dismiss(context.Background(), key.ID, f.owner)
			} else {
				_, err = f.svc.CancelCode(context.Background(), key.ID, f.owner, models.ReasonUserRequested)
			}
			if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	got, err := f.store.Keys().FindByID(context.Background(), key.ID)
	require.NoError(t, err)
	assert.NoError(t, got.Validate())
	assert.Contains(t, []models.KeyState{models.StateClaimPending, models.StateClaimClosing}, got.State)
	assert.LessOrEqual(t, len(f.gateway.CallsFor(directory.OpCancelClaim)), 1)
}
