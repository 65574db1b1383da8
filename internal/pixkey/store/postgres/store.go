// Package postgres persists Pix keys, their claims and the side-effect
// outbox in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"pixkey/internal/pixkey/models"
	"pixkey/internal/pixkey/service"
	id "pixkey/pkg/domain"
	dErrors "pixkey/pkg/domain-errors"
	"pixkey/pkg/platform/sentinel"
	txcontext "pixkey/pkg/platform/tx"
)

//go:embed schema.sql
var schemaSQL string

const (
	defaultTxTimeout = 5 * time.Second
	uniqueViolation  = "23505"
)

// releasedStates no longer hold their (type, value) slot.
var releasedStates = []string{string(models.StateCanceled), string(models.StateDeleted)}

// Store is the PostgreSQL implementation of the key, claim and outbox
// repositories.
type Store struct {
	db      *sql.DB
	timeout time.Duration
}

type Option func(*Store)

func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Keys returns the repository for lock-free reads and single-statement
// writes outside a transition.
func (s *Store) Keys() service.KeyRepository {
	return &keyRepo{s: s}
}

// RunInTx opens a transaction, takes the per-key advisory lock and runs fn
// with repositories bound to it. Key rows read inside fn are additionally
// locked with SELECT ... FOR UPDATE.
func (s *Store) RunInTx(ctx context.Context, keyID id.KeyID, fn func(ctx context.Context, stores service.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateCtx(ctx, fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serializes transitions and registrations on the same key id, including
	// a key that does not exist yet.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, keyID.String()); err != nil {
		return translateCtx(ctx, fmt.Errorf("lock key %s: %w", keyID, err))
	}

	txCtx := txcontext.WithTx(ctx, tx)
	if err := fn(txCtx, service.Stores{
		Keys:   &keyRepo{s: s, forUpdate: true},
		Claims: &claimRepo{s: s},
		Outbox: &outboxRepo{s: s},
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return translateCtx(ctx, translate(fmt.Errorf("commit: %w", err)))
	}
	return nil
}

func translateCtx(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return err
}

// translate maps driver errors onto sentinel errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, sentinel.ErrConflict)
	}
	return err
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func releasedFilter() any {
	return pq.Array(releasedStates)
}
