package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pixkey/internal/pixkey/engine"
	"pixkey/internal/pixkey/models"
	"pixkey/internal/pixkey/outbox"
	id "pixkey/pkg/domain"
	dErrors "pixkey/pkg/domain-errors"
	"pixkey/pkg/fingerprint"
	"pixkey/pkg/platform/sentinel"
)

// notApplicableMsg is shared by "no such key" and "wrong state" so callers
// cannot tell them apart.
const notApplicableMsg = "pix key not found for this operation"

// StartOwnershipClaim asks the Directory to open the ownership claim.
func (s *Service) StartOwnershipClaim(ctx context.Context, keyID id.KeyID, userID id.UserID) (*models.Key, error) {
	return s.execute(ctx, keyID, engine.UserActor(userID), engine.StartOwnershipClaim())
}

// ApprovePortabilityClaim releases the key to the institution that requested it.
func (s *Service) ApprovePortabilityClaim(ctx context.Context, keyID id.KeyID, userID id.UserID) (*models.Key, error) {
	return s.execute(ctx, keyID, engine.UserActor(userID), engine.ApprovePortabilityClaim())
}

// CancelCode cancels a pending registration or closes a pending claim.
func (s *Service) CancelCode(ctx context.Context, keyID id.KeyID, userID id.UserID, reason models.ClaimReason) (*models.Key, error) {
	return s.execute(ctx, keyID, engine.UserActor(userID), engine.CancelCode(reason))
}

// CancelOwnershipClaim withdraws an ownership claim waiting on the Directory.
func (s *Service) CancelOwnershipClaim(ctx context.Context, keyID id.KeyID, userID id.UserID, reason models.ClaimReason) (*models.Key, error) {
	return s.execute(ctx, keyID, engine.UserActor(userID), engine.CancelOwnershipClaim(reason))
}

// Dismiss acknowledges a settled claim outcome.
func (s *Service) Dismiss(ctx context.Context, keyID id.KeyID, userID id.UserID) (*models.Key, error) {
	return s.execute(ctx, keyID, engine.UserActor(userID), engine.Dismiss())
}

// ReadyOwnershipClaim applies the Directory's ready notification. The value is
// normalized the way CreateKey stores it and must resolve to exactly one live
// key of keyType. An empty keyType matches the value against every type.
func (s *Service) ReadyOwnershipClaim(ctx context.Context, keyType models.KeyType, keyValue string) (*models.Key, error) {
	keyValue = strings.TrimSpace(keyValue)
	if keyValue == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "key value is required")
	}
	types := []models.KeyType{models.KeyTypeDocument, models.KeyTypeEmail, models.KeyTypePhone, models.KeyTypeEVP}
	if keyType != "" {
		if !keyType.IsValid() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid key type")
		}
		if _, err := models.NormalizeKeyValue(keyType, keyValue); err != nil {
			return nil, err
		}
		types = []models.KeyType{keyType}
	}

	keys, err := s.resolveLive(ctx, types, keyValue)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve pix key")
	}
	if len(keys) != 1 {
		s.metrics.ObserveRejection(string(engine.CmdReadyOwnershipClaim), "unresolved_value")
		s.logger.WarnContext(ctx, "ready notification did not resolve to one key",
			"key_type", string(keyType),
			"key_value_hash", fingerprint.Of(keyValue),
			"matches", len(keys),
		)
		return nil, dErrors.New(dErrors.CodeNotFound, notApplicableMsg)
	}
	return s.execute(ctx, keys[0].ID, engine.DirectoryActor(), engine.ReadyOwnershipClaim())
}

// resolveLive returns the live keys whose stored (type, value) equals the
// canonical form of raw under one of types.
func (s *Service) resolveLive(ctx context.Context, types []models.KeyType, raw string) ([]*models.Key, error) {
	var found []*models.Key
	seen := make(map[id.KeyID]struct{})
	for _, t := range types {
		value, err := models.NormalizeKeyValue(t, raw)
		if err != nil {
			continue
		}
		candidates, err := s.reads.ListActiveByValue(ctx, value)
		if err != nil {
			return nil, err
		}
		for _, k := range candidates {
			if k.KeyType != t {
				continue
			}
			if _, dup := seen[k.ID]; dup {
				continue
			}
			seen[k.ID] = struct{}{}
			found = append(found, k)
		}
	}
	return found, nil
}

func (s *Service) execute(ctx context.Context, keyID id.KeyID, actor engine.Actor, cmd engine.Command) (*models.Key, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "pixkey."+strings.ToLower(string(cmd.Kind)))
	defer span.End()
	span.SetAttributes(
		attribute.String("pixkey.key_id", keyID.String()),
		attribute.String("pixkey.command", string(cmd.Kind)),
	)
	defer func() {
		s.metrics.ObserveCommandDuration(string(cmd.Kind), time.Since(start).Seconds())
	}()

	if keyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "key ID required")
	}
	if actor.Kind == engine.ActorUser && actor.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user ID required")
	}

	var (
		result   *models.Key
		decision engine.Decision
		entries  []*outbox.Entry
	)
	err := s.tx.RunInTx(ctx, keyID, func(ctx context.Context, st Stores) error {
		key, err := st.Keys.FindByID(ctx, keyID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, notApplicableMsg)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pix key")
		}
		if actor.Kind == engine.ActorUser && !key.IsOwnedBy(actor.UserID) {
			return dErrors.New(dErrors.CodeForbidden, "pix key belongs to another user")
		}

		decision, err = engine.Decide(key.State, key.HasClaim(), cmd, actor)
		if err != nil {
			return err
		}
		if decision.IsNoop() {
			result = key
			return nil
		}

		now := s.now(ctx)
		entries = outbox.FromDecision(key, fingerprint.Of(key.KeyValue), decision, now)
		if err := applyDecision(ctx, st, key, decision, now); err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := st.Outbox.Append(ctx, entries...); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record side effects")
			}
		}
		result = key
		return nil
	})
	if err != nil {
		return nil, s.translateFailure(ctx, keyID, cmd, err, span)
	}

	if decision.IsNoop() {
		s.logger.DebugContext(ctx, "idempotent command, nothing to do",
			"key_id", keyID.String(), "command", string(cmd.Kind), "state", string(result.State))
		return result, nil
	}

	s.invalidate(ctx, keyID)
	s.metrics.ObserveTransition(string(cmd.Kind), string(decision.To))
	span.SetAttributes(
		attribute.String("pixkey.from", string(decision.From)),
		attribute.String("pixkey.to", string(decision.To)),
	)
	s.logAudit(ctx, "pix_key_transition",
		"key_id", keyID.String(),
		"key_value_hash", fingerprint.Of(result.KeyValue),
		"command", string(cmd.Kind),
		"from", string(decision.From),
		"to", string(decision.To),
		"claim_op", decision.Claim.Op.String(),
		"effects", len(entries),
		"actor", string(actor.Kind),
	)

	if err := s.dispatch(ctx, entries); err != nil {
		span.RecordError(err)
		return result, err
	}
	return result, nil
}

// applyDecision mutates key and its claim exactly as the decision says.
func applyDecision(ctx context.Context, st Stores, key *models.Key, d engine.Decision, now time.Time) error {
	switch d.Claim.Op {
	case engine.ClaimOpen:
		claim := models.NewClaim(id.NewClaimID(), key.ID, d.Claim.Type, d.Claim.Reason, now)
		if err := st.Claims.Open(ctx, claim); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to open claim")
		}
		key.Claim = claim
	case engine.ClaimKeep:
		if d.Claim.Reason != "" && key.Claim.Reason != d.Claim.Reason {
			key.Claim.Reason = d.Claim.Reason
			if err := st.Claims.Update(ctx, key.Claim); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update claim")
			}
		}
	case engine.ClaimClose:
		if err := st.Claims.Close(ctx, key.Claim.ID, now); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to close claim")
		}
		key.Claim = nil
	}

	key.State = d.To
	key.UpdatedAt = now
	if err := key.Validate(); err != nil {
		return err
	}
	if err := st.Keys.Update(ctx, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist pix key")
	}
	return nil
}

// dispatch delivers committed side effects. A failure leaves the entries
// pending for the relay and is reported as retryable; the transition stands.
func (s *Service) dispatch(ctx context.Context, entries []*outbox.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(entries); err != nil {
			s.logger.WarnContext(ctx, "side effects left for relay", "error", err, "count", len(entries))
		}
		return nil
	}
	if s.dispatcher == nil {
		return nil
	}
	if err := s.dispatcher.Deliver(ctx, entries); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "transition committed; side effect delivery will be retried")
	}
	return nil
}

func (s *Service) translateFailure(ctx context.Context, keyID id.KeyID, cmd engine.Command, err error, span trace.Span) error {
	var rej *engine.Rejection
	if errors.As(err, &rej) {
		s.metrics.ObserveRejection(string(cmd.Kind), string(rej.Reason))
		if rej.Reason == engine.RejectInconsistentKey {
			s.logger.ErrorContext(ctx, "stored pix key violates claim invariant",
				"key_id", keyID.String(), "state", string(rej.State))
		} else {
			s.logger.InfoContext(ctx, "command rejected",
				"key_id", keyID.String(), "command", string(cmd.Kind), "state", string(rej.State), "reason", string(rej.Reason))
		}
		return dErrors.New(dErrors.CodeNotFound, notApplicableMsg)
	}

	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotFound:
		s.metrics.ObserveRejection(string(cmd.Kind), "not_found")
		return err
	case dErrors.CodeForbidden:
		s.metrics.ObserveRejection(string(cmd.Kind), "forbidden")
		s.logger.WarnContext(ctx, "pix key owner mismatch", "key_id", keyID.String(), "command", string(cmd.Kind))
		return err
	case dErrors.CodeTimeout:
		return err
	}
	var coded *dErrors.Error
	if !errors.As(err, &coded) {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "pix key transition failed")
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "transition failed")
	s.logger.ErrorContext(ctx, "pix key transition failed", "key_id", keyID.String(), "command", string(cmd.Kind), "error", err)
	return err
}
