// Package cache keeps short-lived JSON snapshots of keys in Redis for the
// lock-free status queries. Every commit bumps a per-key generation fence and
// drops the snapshot; a fill only lands if the fence has not moved since the
// reader's miss, so a slow reader cannot write back a pre-commit snapshot.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pixkey/internal/pixkey/models"
	id "pixkey/pkg/domain"
)

const (
	defaultTTL = time.Minute
	// fenceTTL outlives any read-to-fill window.
	fenceTTL = 24 * time.Hour
)

// fillScript writes the snapshot only while the fence still holds the
// generation the reader saw on its miss.
var fillScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisCache implements the service's KeyCache.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

type Option func(*RedisCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func New(client redis.Cmdable, opts ...Option) *RedisCache {
	c := &RedisCache{client: client, ttl: defaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type claimSnapshot struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Reason   string    `json:"reason"`
	OpenedAt time.Time `json:"opened_at"`
}

type keySnapshot struct {
	ID          string         `json:"id"`
	OwnerUserID string         `json:"owner_user_id,omitempty"`
	KeyType     string         `json:"key_type"`
	KeyValue    string         `json:"key_value"`
	State       string         `json:"state"`
	Claim       *claimSnapshot `json:"claim,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// The hash tag keeps a key's snapshot and fence in one cluster slot.
func cacheKey(keyID id.KeyID) string {
	return "pixkey:{" + keyID.String() + "}:key"
}

func fenceKey(keyID id.KeyID) string {
	return "pixkey:{" + keyID.String() + "}:fence"
}

// Get returns the cached key, or nil on a miss together with the generation
// to hand back to Set.
func (c *RedisCache) Get(ctx context.Context, keyID id.KeyID) (*models.Key, int64, error) {
	vals, err := c.client.MGet(ctx, cacheKey(keyID), fenceKey(keyID)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("cache get %s: %w", keyID, err)
	}
	gen, err := parseGeneration(vals[1])
	if err != nil {
		return nil, 0, fmt.Errorf("cache get %s: %w", keyID, err)
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, nil
	}
	var snap keySnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		// A snapshot we cannot read is treated as a miss and dropped.
		_ = c.client.Del(ctx, cacheKey(keyID)).Err()
		return nil, gen, nil
	}
	key, err := fromSnapshot(snap)
	if err != nil {
		_ = c.client.Del(ctx, cacheKey(keyID)).Err()
		return nil, gen, nil
	}
	return key, gen, nil
}

// Set fills the snapshot if no commit invalidated the key since the miss that
// returned gen. A skipped fill is not an error.
func (c *RedisCache) Set(ctx context.Context, key *models.Key, gen int64) error {
	raw, err := json.Marshal(toSnapshot(key))
	if err != nil {
		return fmt.Errorf("marshal key snapshot: %w", err)
	}
	err = fillScript.Run(ctx, c.client,
		[]string{cacheKey(key.ID), fenceKey(key.ID)},
		raw, strconv.FormatInt(gen, 10), c.ttl.Milliseconds(),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache set %s: %w", key.ID, err)
	}
	return nil
}

// Invalidate drops the snapshot and advances the fence in one transaction.
func (c *RedisCache) Invalidate(ctx context.Context, keyID id.KeyID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, fenceKey(keyID))
		pipe.Expire(ctx, fenceKey(keyID), fenceTTL)
		pipe.Del(ctx, cacheKey(keyID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate %s: %w", keyID, err)
	}
	return nil
}

func parseGeneration(v any) (int64, error) {
	switch g := v.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(g, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected fence value %T", v)
	}
}

func toSnapshot(k *models.Key) keySnapshot {
	snap := keySnapshot{
		ID:        k.ID.String(),
		KeyType:   string(k.KeyType),
		KeyValue:  k.KeyValue,
		State:     string(k.State),
		CreatedAt: k.CreatedAt,
		UpdatedAt: k.UpdatedAt,
	}
	if !k.OwnerUserID.IsNil() {
		snap.OwnerUserID = k.OwnerUserID.String()
	}
	if k.Claim != nil {
		snap.Claim = &claimSnapshot{
			ID:       k.Claim.ID.String(),
			Type:     string(k.Claim.Type),
			Reason:   string(k.Claim.Reason),
			OpenedAt: k.Claim.OpenedAt,
		}
	}
	return snap
}

func fromSnapshot(snap keySnapshot) (*models.Key, error) {
	keyID, err := id.ParseKeyID(snap.ID)
	if err != nil {
		return nil, err
	}
	key := &models.Key{
		ID:        keyID,
		KeyType:   models.KeyType(snap.KeyType),
		KeyValue:  snap.KeyValue,
		State:     models.KeyState(snap.State),
		CreatedAt: snap.CreatedAt,
		UpdatedAt: snap.UpdatedAt,
	}
	if snap.OwnerUserID != "" {
		if key.OwnerUserID, err = id.ParseUserID(snap.OwnerUserID); err != nil {
			return nil, err
		}
	}
	if snap.Claim != nil {
		claimID, err := id.ParseClaimID(snap.Claim.ID)
		if err != nil {
			return nil, err
		}
		key.Claim = &models.Claim{
			ID:       claimID,
			KeyID:    keyID,
			Type:     models.ClaimType(snap.Claim.Type),
			Reason:   models.ClaimReason(snap.Claim.Reason),
			OpenedAt: snap.Claim.OpenedAt,
		}
	}
	return key, key.Validate()
}
