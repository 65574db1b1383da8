package service

import (
	"context"
	"errors"

	"pixkey/internal/pixkey/models"
	id "pixkey/pkg/domain"
	dErrors "pixkey/pkg/domain-errors"
	"pixkey/pkg/platform/sentinel"
)

// GetKey returns the caller's key without taking the per-key lock. It may lag
// an in-flight transition but never shows a half-applied one.
func (s *Service) GetKey(ctx context.Context, keyID id.KeyID, userID id.UserID) (*models.Key, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	key, err := s.load(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if !key.IsOwnedBy(userID) {
		// other users' keys are indistinguishable from missing ones here
		return nil, dErrors.New(dErrors.CodeNotFound, "pix key not found")
	}
	return key, nil
}

// ListKeys returns the caller's keys, excluding DELETED ones.
func (s *Service) ListKeys(ctx context.Context, userID id.UserID) ([]*models.Key, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	keys, err := s.reads.ListByOwner(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pix keys")
	}
	out := make([]*models.Key, 0, len(keys))
	for _, k := range keys {
		if k.State != models.StateDeleted {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	var (
		gen  int64
		fill bool
	)
	if s.cache != nil {
		key, g, err := s.cache.Get(ctx, keyID)
		switch {
		case err != nil:
			// without a generation a fill could race a commit
			s.metrics.ObserveCacheLookup("error")
			s.logger.WarnContext(ctx, "key cache read failed", "key_id", keyID.String(), "error", err)
		case key != nil:
			s.metrics.ObserveCacheLookup("hit")
			return key, nil
		default:
			s.metrics.ObserveCacheLookup("miss")
			gen, fill = g, true
		}
	}

	key, err := s.reads.FindByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "pix key not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pix key")
	}

	if fill {
		if err := s.cache.Set(ctx, key, gen); err != nil {
			s.logger.WarnContext(ctx, "key cache write failed", "key_id", keyID.String(), "error", err)
		}
	}
	return key, nil
}

func (s *Service) invalidate(ctx context.Context, keyID id.KeyID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, keyID); err != nil {
		s.logger.WarnContext(ctx, "key cache invalidation failed", "key_id", keyID.String(), "error", err)
	}
}
