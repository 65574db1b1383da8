package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pixkey/internal/pixkey/models"
	id "pixkey/pkg/domain"
)

type claimRepo struct {
	s *Store
}

func (r *claimRepo) Open(ctx context.Context, claim *models.Claim) error {
	query := `
		INSERT INTO pix_claims (id, key_id, claim_type, reason, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(claim.ID),
		uuid.UUID(claim.KeyID),
		string(claim.Type),
		string(claim.Reason),
		claim.OpenedAt,
		nullableTime(claim.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("open claim %s: %w", claim.ID, translate(err))
	}
	return nil
}

func (r *claimRepo) Update(ctx context.Context, claim *models.Claim) error {
	query := `
		UPDATE pix_claims
		SET claim_type = $2, reason = $3, closed_at = $4
		WHERE id = $1
	`
	res, err := r.s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(claim.ID),
		string(claim.Type),
		string(claim.Reason),
		nullableTime(claim.ClosedAt),
	)
	if err != nil {
		return fmt.Errorf("update claim %s: %w", claim.ID, translate(err))
	}
	return requireOneRow(res, fmt.Sprintf("claim %s", claim.ID))
}

func (r *claimRepo) Close(ctx context.Context, claimID id.ClaimID, closedAt time.Time) error {
	res, err := r.s.execer(ctx).ExecContext(ctx,
		`UPDATE pix_claims SET closed_at = $2 WHERE id = $1`,
		uuid.UUID(claimID), closedAt,
	)
	if err != nil {
		return fmt.Errorf("close claim %s: %w", claimID, translate(err))
	}
	return requireOneRow(res, fmt.Sprintf("claim %s", claimID))
}

// FindClaim loads a claim regardless of whether it is still open.
func (s *Store) FindClaim(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	var (
		claim  models.Claim
		rawID  uuid.UUID
		keyID  uuid.UUID
		ctype  string
		reason string
		closed sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, key_id, claim_type, reason, opened_at, closed_at
		FROM pix_claims WHERE id = $1`, uuid.UUID(claimID),
	).Scan(&rawID, &keyID, &ctype, &reason, &claim.OpenedAt, &closed)
	if err != nil {
		return nil, fmt.Errorf("find claim %s: %w", claimID, translate(err))
	}
	claim.ID = id.ClaimID(rawID)
	claim.KeyID = id.KeyID(keyID)
	claim.Type = models.ClaimType(ctype)
	claim.Reason = models.ClaimReason(reason)
	if closed.Valid {
		at := closed.Time
		claim.ClosedAt = &at
	}
	return &claim, nil
}
