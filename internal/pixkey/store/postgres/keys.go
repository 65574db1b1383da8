package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"pixkey/internal/pixkey/models"
	id "pixkey/pkg/domain"
	"pixkey/pkg/platform/sentinel"
)

const selectKey = `
	SELECT k.id, k.owner_user_id, k.key_type, k.key_value, k.state, k.created_at, k.updated_at,
	       c.id, c.claim_type, c.reason, c.opened_at
	FROM pix_keys k
	LEFT JOIN pix_claims c ON c.key_id = k.id AND c.closed_at IS NULL
`

type keyRepo struct {
	s         *Store
	forUpdate bool
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (*models.Key, error) {
	var (
		keyID     uuid.UUID
		owner     uuid.NullUUID
		keyType   string
		keyValue  string
		state     string
		key       models.Key
		claimID   uuid.NullUUID
		claimType sql.NullString
		reason    sql.NullString
		openedAt  sql.NullTime
	)
	if err := row.Scan(&keyID, &owner, &keyType, &keyValue, &state, &key.CreatedAt, &key.UpdatedAt,
		&claimID, &claimType, &reason, &openedAt); err != nil {
		return nil, err
	}
	key.ID = id.KeyID(keyID)
	if owner.Valid {
		key.OwnerUserID = id.UserID(owner.UUID)
	}
	key.KeyType = models.KeyType(keyType)
	key.KeyValue = keyValue
	key.State = models.KeyState(state)
	if claimID.Valid {
		key.Claim = &models.Claim{
			ID:       id.ClaimID(claimID.UUID),
			KeyID:    key.ID,
			Type:     models.ClaimType(claimType.String),
			Reason:   models.ClaimReason(reason.String),
			OpenedAt: openedAt.Time,
		}
	}
	return &key, nil
}

func (r *keyRepo) FindByID(ctx context.Context, keyID id.KeyID) (*models.Key, error) {
	query := selectKey + ` WHERE k.id = $1`
	if r.forUpdate {
		query += ` FOR UPDATE OF k`
	}
	key, err := scanKey(r.s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(keyID)))
	if err != nil {
		return nil, fmt.Errorf("find key %s: %w", keyID, translate(err))
	}
	return key, nil
}

func (r *keyRepo) ListActiveByValue(ctx context.Context, keyValue string) ([]*models.Key, error) {
	return r.list(ctx, selectKey+`
		WHERE k.key_value = $1 AND k.state <> ALL($2)
		ORDER BY k.created_at, k.id`, keyValue, releasedFilter())
}

func (r *keyRepo) ListByOwner(ctx context.Context, owner id.UserID) ([]*models.Key, error) {
	return r.list(ctx, selectKey+`
		WHERE k.owner_user_id = $1
		ORDER BY k.created_at, k.id`, uuid.UUID(owner))
}

func (r *keyRepo) list(ctx context.Context, query string, args ...any) ([]*models.Key, error) {
	rows, err := r.s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var out []*models.Key
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		out = append(out, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return out, nil
}

func (r *keyRepo) Create(ctx context.Context, key *models.Key) error {
	query := `
		INSERT INTO pix_keys (id, owner_user_id, key_type, key_value, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(key.ID),
		ownerParam(key.OwnerUserID),
		string(key.KeyType),
		key.KeyValue,
		string(key.State),
		key.CreatedAt,
		key.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create key %s: %w", key.ID, translate(err))
	}
	return nil
}

// Update writes the mutable columns. key_type and key_value never change.
func (r *keyRepo) Update(ctx context.Context, key *models.Key) error {
	query := `
		UPDATE pix_keys
		SET owner_user_id = $2, state = $3, updated_at = $4
		WHERE id = $1
	`
	res, err := r.s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(key.ID),
		ownerParam(key.OwnerUserID),
		string(key.State),
		key.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update key %s: %w", key.ID, translate(err))
	}
	return requireOneRow(res, fmt.Sprintf("key %s", key.ID))
}

func ownerParam(owner id.UserID) uuid.NullUUID {
	if owner.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(owner), Valid: true}
}

func requireOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	return nil
}
