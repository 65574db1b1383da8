package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pixkey/internal/pixkey/engine"
	"pixkey/internal/pixkey/models"
	"pixkey/internal/pixkey/outbox"
	id "pixkey/pkg/domain"
	"pixkey/pkg/platform/sentinel"
)

const defaultDueLimit = 100

type outboxRepo struct {
	s *Store
}

func (r *outboxRepo) Append(ctx context.Context, entries ...*outbox.Entry) error {
	query := `
		INSERT INTO pix_outbox (
			id, key_id, kind, claim_type, reason, event_name, key_value_hash, state,
			idempotency_key, attempts, next_attempt_at, status, last_error, created_at, delivered_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	for _, e := range entries {
		_, err := r.s.execer(ctx).ExecContext(ctx, query,
			e.ID,
			uuid.UUID(e.KeyID),
			string(e.Kind),
			string(e.ClaimType),
			string(e.Reason),
			e.EventName,
			e.KeyValueHash,
			string(e.State),
			e.IdempotencyKey,
			e.Attempts,
			e.NextAttemptAt,
			string(e.Status),
			e.LastError,
			e.CreatedAt,
			nullableTime(e.DeliveredAt),
		)
		if err != nil {
			return fmt.Errorf("insert outbox entry: %w", translate(err))
		}
	}
	return nil
}

// ListDue returns pending entries whose next attempt is at or before cutoff,
// oldest first.
func (s *Store) ListDue(ctx context.Context, cutoff time.Time, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		limit = defaultDueLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key_id, kind, claim_type, reason, event_name, key_value_hash, state,
		       idempotency_key, attempts, next_attempt_at, status, last_error, created_at, delivered_at
		FROM pix_outbox
		WHERE status = $1 AND next_attempt_at <= $2
		ORDER BY created_at, id
		LIMIT $3`, string(outbox.StatusPending), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list due outbox entries: %w", err)
	}
	defer rows.Close()

	var out []*outbox.Entry
	for rows.Next() {
		var (
			e           outbox.Entry
			keyID       uuid.UUID
			kind        string
			claimType   string
			reason      string
			state       string
			status      string
			deliveredAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &keyID, &kind, &claimType, &reason, &e.EventName, &e.KeyValueHash, &state,
			&e.IdempotencyKey, &e.Attempts, &e.NextAttemptAt, &status, &e.LastError, &e.CreatedAt, &deliveredAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		e.KeyID = id.KeyID(keyID)
		e.Kind = engine.EffectKind(kind)
		e.ClaimType = models.ClaimType(claimType)
		e.Reason = models.ClaimReason(reason)
		e.State = models.KeyState(state)
		e.Status = outbox.Status(status)
		if deliveredAt.Valid {
			at := deliveredAt.Time
			e.DeliveredAt = &at
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return out, nil
}

func (s *Store) MarkDelivered(ctx context.Context, entryID uuid.UUID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pix_outbox
		SET status = $2, delivered_at = $3, last_error = ''
		WHERE id = $1`, entryID, string(outbox.StatusDelivered), at)
	if err != nil {
		return fmt.Errorf("mark outbox entry delivered: %w", err)
	}
	return requireOneRow(res, fmt.Sprintf("outbox entry %s", entryID))
}

func (s *Store) MarkRetry(ctx context.Context, entryID uuid.UUID, attempts int, next time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pix_outbox
		SET attempts = $2, next_attempt_at = $3, last_error = $4
		WHERE id = $1 AND status = $5`, entryID, attempts, next, lastErr, string(outbox.StatusPending))
	if err != nil {
		return fmt.Errorf("mark outbox entry for retry: %w", err)
	}
	return s.settledOrMissing(ctx, res, entryID)
}

func (s *Store) MarkParked(ctx context.Context, entryID uuid.UUID, attempts int, lastErr string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pix_outbox
		SET status = $2, attempts = $3, last_error = $4
		WHERE id = $1 AND status = $5`, entryID, string(outbox.StatusParked), attempts, lastErr, string(outbox.StatusPending))
	if err != nil {
		return fmt.Errorf("park outbox entry: %w", err)
	}
	return s.settledOrMissing(ctx, res, entryID)
}

// settledOrMissing treats a no-op update of an already settled entry as
// success and reports sentinel.ErrNotFound only when the row is absent.
func (s *Store) settledOrMissing(ctx context.Context, res sql.Result, entryID uuid.UUID) error {
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM pix_outbox WHERE id = $1`, entryID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("outbox entry %s: %w", entryID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check outbox entry %s: %w", entryID, err)
	}
	return nil
}
