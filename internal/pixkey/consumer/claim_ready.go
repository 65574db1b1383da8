package consumer

import (
	"context"
	"log/slog"

	"pixkey/internal/pixkey/models"
	dErrors "pixkey/pkg/domain-errors"
	"pixkey/pkg/fingerprint"
	"pixkey/pkg/requestcontext"
)

// ClaimNotifier is the slice of the key service the Directory drives.
type ClaimNotifier interface {
	ReadyOwnershipClaim(ctx context.Context, keyType models.KeyType, keyValue string) (*models.Key, error)
}

// ClaimReadyHandler applies OWNERSHIP_CLAIM_READY notifications.
type ClaimReadyHandler struct {
	service ClaimNotifier
	logger  *slog.Logger
}

func NewClaimReadyHandler(service ClaimNotifier, logger *slog.Logger) *ClaimReadyHandler {
	return &ClaimReadyHandler{service: service, logger: logger}
}

// Handle runs ReadyOwnershipClaim. Rejections and bad input are final and
// committed; anything else is returned so the notification is redelivered.
func (h *ClaimReadyHandler) Handle(ctx context.Context, n Notification) error {
	if n.ID != "" {
		ctx = requestcontext.WithRequestID(ctx, n.ID)
	}

	var keyType models.KeyType
	if n.KeyType != "" {
		parsed, err := models.ParseKeyType(n.KeyType)
		if err != nil {
			h.logger.WarnContext(ctx, "ownership claim ready with unknown key type",
				"key_type", n.KeyType,
				"key_value_hash", fingerprint.Of(n.KeyValue),
			)
			return nil
		}
		keyType = parsed
	}

	key, err := h.service.ReadyOwnershipClaim(ctx, keyType, n.KeyValue)
	switch {
	case err == nil:
		h.logger.InfoContext(ctx, "ownership claim ready applied",
			"key_id", key.ID.String(),
			"state", key.State.String(),
		)
		return nil
	case dErrors.HasCode(err, dErrors.CodeNotFound), dErrors.HasCode(err, dErrors.CodeInvalidInput):
		h.logger.WarnContext(ctx, "ownership claim ready rejected",
			"key_value_hash", fingerprint.Of(n.KeyValue),
			"error", err,
		)
		return nil
	case dErrors.HasCode(err, dErrors.CodeUnavailable):
		// The transition committed; the outbox relay owns the side effects.
		h.logger.WarnContext(ctx, "ownership claim ready committed with pending side effects",
			"key_value_hash", fingerprint.Of(n.KeyValue),
			"error", err,
		)
		return nil
	default:
		return err
	}
}
