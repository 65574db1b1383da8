package service

import (
	"context"
	"errors"

	"pixkey/internal/pixkey/models"
	id "pixkey/pkg/domain"
	dErrors "pixkey/pkg/domain-errors"
	"pixkey/pkg/fingerprint"
	"pixkey/pkg/platform/sentinel"
)

// CreateKey registers a new key in PENDING for userID. The value is
// normalized for its type; an EVP key with no value gets a random one.
func (s *Service) CreateKey(ctx context.Context, userID id.UserID, keyType models.KeyType, keyValue string) (*models.Key, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}
	value, err := models.NormalizeKeyValue(keyType, keyValue)
	if err != nil {
		return nil, err
	}

	key, err := models.NewKey(id.NewKeyID(), userID, keyType, value, s.now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	err = s.tx.RunInTx(ctx, key.ID, func(ctx context.Context, st Stores) error {
		return st.Keys.Create(ctx, key)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "pix key already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register pix key")
	}

	s.metrics.IncKeysCreated()
	s.logAudit(ctx, "pix_key_registered",
		"key_id", key.ID.String(),
		"user_id", userID.String(),
		"key_type", string(key.KeyType),
		"key_value_hash", fingerprint.Of(key.KeyValue),
	)
	return key, nil
}
