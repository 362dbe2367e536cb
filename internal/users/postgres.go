package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goRotate "github.com/MrEthical07/goRotate"
	"github.com/MrEthical07/goRotate/password"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Postgres is an identity store over the users table created by the
// internal/database migrations.
type Postgres struct {
	db     *sql.DB
	hasher password.Hasher
	now    func() time.Time
}

// NewPostgres returns a store bound to db.
func NewPostgres(db *sql.DB, hasher password.Hasher) *Postgres {
	return &Postgres{db: db, hasher: hasher, now: time.Now}
}

func (r *Postgres) FindByID(ctx context.Context, id string) (goRotate.Principal, error) {
	query := `SELECT id, full_name, email FROM users WHERE id = $1`

	// Ids are UUIDs; anything else cannot exist and would fail the cast.
	if _, err := uuid.Parse(id); err != nil {
		return goRotate.Principal{}, fmt.Errorf("%w: %s", goRotate.ErrUnknownPrincipal, id)
	}

	var p goRotate.Principal
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.FullName, &p.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goRotate.Principal{}, fmt.Errorf("%w: %s", goRotate.ErrUnknownPrincipal, id)
		}
		return goRotate.Principal{}, fmt.Errorf("error performing sql request: %v", err)
	}
	return p, nil
}

func (r *Postgres) FindByEmail(ctx context.Context, email string) (goRotate.Principal, error) {
	query := `SELECT id, full_name, email FROM users WHERE email = $1`

	var p goRotate.Principal
	err := r.db.QueryRowContext(ctx, query, goRotate.NormalizeEmail(email)).Scan(&p.ID, &p.FullName, &p.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goRotate.Principal{}, goRotate.ErrUnknownPrincipal
		}
		return goRotate.Principal{}, fmt.Errorf("error performing sql request: %v", err)
	}
	return p, nil
}

func (r *Postgres) VerifyPassword(ctx context.Context, p goRotate.Principal, pw string) (bool, error) {
	query := `SELECT password_hash FROM users WHERE id = $1`

	var hash string
	if err := r.db.QueryRowContext(ctx, query, p.ID).Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, goRotate.ErrUnknownPrincipal
		}
		return false, fmt.Errorf("error performing sql request: %v", err)
	}
	return r.hasher.Verify(pw, hash)
}

// CreatePrincipal inserts a user. The unique index on email turns a
// concurrent duplicate signup into goRotate.ErrAccountExists.
func (r *Postgres) CreatePrincipal(ctx context.Context, req goRotate.CreateAccountRequest) (goRotate.Principal, error) {
	query := `
		INSERT INTO users (id, full_name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	hash, err := r.hasher.Hash(req.Password)
	if err != nil {
		return goRotate.Principal{}, fmt.Errorf("%w: %v", goRotate.ErrValidationFailed, err)
	}

	p := goRotate.Principal{
		ID:       uuid.NewString(),
		Email:    goRotate.NormalizeEmail(req.Email),
		FullName: req.FullName,
	}
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.FullName, p.Email, hash, r.now().UTC()); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return goRotate.Principal{}, goRotate.ErrAccountExists
		}
		return goRotate.Principal{}, fmt.Errorf("error performing sql request: %v", err)
	}
	return p, nil
}
