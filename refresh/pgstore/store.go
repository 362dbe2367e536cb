// Package pgstore implements refresh.Store on PostgreSQL through database/sql.
//
// The schema lives in the embedded migrations of internal/database. MarkUsed
// is a single conditional UPDATE, so concurrent rotations of one record have
// exactly one winner.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goRotate/refresh"
	"github.com/google/uuid"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a PostgreSQL-backed refresh.Store.
type Store struct {
	db  DBTX
	now func() time.Time
}

// New returns a Store bound to db.
func New(db DBTX) *Store {
	return &Store{db: db, now: time.Now}
}

// AtomicMarkUsed reports true: MarkUsed is a conditional UPDATE.
func (s *Store) AtomicMarkUsed() bool { return true }

// Create inserts a new unused record.
func (s *Store) Create(ctx context.Context, userID, tokenHash string) (*refresh.Record, error) {
	query := `
		INSERT INTO refresh_records (id, user_id, token_hash, used, created_at)
		VALUES ($1, $2, $3, FALSE, $4)
	`
	rec := &refresh.Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: s.now().UTC(),
	}
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.UserID, rec.TokenHash, rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: error performing sql request: %v", refresh.ErrUnavailable, err)
	}
	return rec, nil
}

// Find returns the record matching userID and tokenHash.
func (s *Store) Find(ctx context.Context, userID, tokenHash string) (*refresh.Record, error) {
	query := `
		SELECT id, user_id, token_hash, used, created_at, used_at
		FROM refresh_records
		WHERE user_id = $1 AND token_hash = $2
	`
	var (
		rec    refresh.Record
		usedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, userID, tokenHash).
		Scan(&rec.ID, &rec.UserID, &rec.TokenHash, &rec.Used, &rec.CreatedAt, &usedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, refresh.ErrNotFound
		}
		return nil, fmt.Errorf("%w: db error: %v", refresh.ErrUnavailable, err)
	}
	if usedAt.Valid {
		rec.UsedAt = usedAt.Time
	}
	return &rec, nil
}

// MarkUsed flips rec to used only while it is unused.
func (s *Store) MarkUsed(ctx context.Context, rec *refresh.Record) (bool, error) {
	if rec == nil {
		return false, refresh.ErrNotFound
	}

	query := `
		UPDATE refresh_records
		SET used = TRUE, used_at = $2
		WHERE id = $1 AND used = FALSE
	`
	res, err := s.db.ExecContext(ctx, query, rec.ID, s.now().UTC())
	if err != nil {
		return false, fmt.Errorf("%w: db error: %v", refresh.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: db error: %v", refresh.ErrUnavailable, err)
	}
	if n == 1 {
		return true, nil
	}

	exists, err := s.exists(ctx, rec.ID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, refresh.ErrNotFound
	}
	return false, nil
}

// InvalidateAll marks every unused record of userID used.
func (s *Store) InvalidateAll(ctx context.Context, userID string) (int, error) {
	query := `
		UPDATE refresh_records
		SET used = TRUE, used_at = $2
		WHERE user_id = $1 AND used = FALSE
	`
	res, err := s.db.ExecContext(ctx, query, userID, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: db error: %v", refresh.ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: db error: %v", refresh.ErrUnavailable, err)
	}
	return int(n), nil
}

func (s *Store) exists(ctx context.Context, id string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM refresh_records WHERE id = $1)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: db error: %v", refresh.ErrUnavailable, err)
	}
	return exists, nil
}
