//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pixkey/internal/pixkey/models"
	id "pixkey/pkg/domain"
	"pixkey/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *RedisCache
	ctx   context.Context
}

func TestRedisCacheSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = New(s.redis.Client, WithTTL(time.Minute))
}

func (s *RedisCacheSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisCacheSuite) key(state models.KeyState) *models.Key {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	k, err := models.NewKey(id.NewKeyID(), id.UserID(uuid.New()), models.KeyTypeEmail, "cache@pix.com", now)
	s.Require().NoError(err)
	k.State = state
	if state.IsClaimInProgress() {
		k.Claim = models.NewClaim(id.NewClaimID(), k.ID, models.ClaimTypeOwnership, models.ReasonDefaultOperation, now)
	}
	return k
}

func (s *RedisCacheSuite) TestRoundTrip() {
	key := s.key(models.StateClaimPending)
	s.Require().NoError(s.cache.Set(s.ctx, key, 0))

	got, _, err := s.cache.Get(s.ctx, key.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(key.ID, got.ID)
	s.Equal(key.OwnerUserID, got.OwnerUserID)
	s.Equal(models.StateClaimPending, got.State)
	s.Require().NotNil(got.Claim)
	s.Equal(key.Claim.ID, got.Claim.ID)
	s.True(key.CreatedAt.Equal(got.CreatedAt))
}

func (s *RedisCacheSuite) TestMissAndInvalidate() {
	key := s.key(models.StateReady)

	got, gen, err := s.cache.Get(s.ctx, key.ID)
	s.Require().NoError(err)
	s.Nil(got)
	s.Zero(gen)

	s.Require().NoError(s.cache.Set(s.ctx, key, gen))
	s.Require().NoError(s.cache.Invalidate(s.ctx, key.ID))
	got, gen, err = s.cache.Get(s.ctx, key.ID)
	s.Require().NoError(err)
	s.Nil(got)
	s.Equal(int64(1), gen)

	s.Require().NoError(s.cache.Set(s.ctx, key, gen))
	got, _, err = s.cache.Get(s.ctx, key.ID)
	s.Require().NoError(err)
	s.NotNil(got)
}

func (s *RedisCacheSuite) TestFillAfterInvalidationIsDropped() {
	stale := s.key(models.StateReady)

	// reader misses and loads the pre-commit row
	_, gen, err := s.cache.Get(s.ctx, stale.ID)
	s.Require().NoError(err)

	// a commit lands before the reader fills
	s.Require().NoError(s.cache.Invalidate(s.ctx, stale.ID))
	s.Require().NoError(s.cache.Set(s.ctx, stale, gen))

	got, _, err := s.cache.Get(s.ctx, stale.ID)
	s.Require().NoError(err)
	s.Nil(got)
	s.Zero(s.redis.Client.Exists(s.ctx, cacheKey(stale.ID)).Val())

	ttl, err := s.redis.Client.TTL(s.ctx, fenceKey(stale.ID)).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisCacheSuite) TestEntriesExpire() {
	key := s.key(models.StateReady)
	s.Require().NoError(s.cache.Set(s.ctx, key, 0))

	ttl, err := s.redis.Client.TTL(s.ctx, cacheKey(key.ID)).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}

func (s *RedisCacheSuite) TestCorruptSnapshotIsAMiss() {
	keyID := id.NewKeyID()
	s.Require().NoError(s.redis.Client.Set(s.ctx, cacheKey(keyID), "not-json", time.Minute).Err())

	got, _, err := s.cache.Get(s.ctx, keyID)
	s.Require().NoError(err)
	s.Nil(got)
	s.Zero(s.redis.Client.Exists(s.ctx, cacheKey(keyID)).Val())
}
