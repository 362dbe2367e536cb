package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/goRotate/refresh"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock, db
}

const (
	insertQuery     = `(?s)^\s*INSERT\s+INTO\s+refresh_records\s*\(id,\s*user_id,\s*token_hash,\s*used,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*FALSE,\s*\$4\)\s*$`
	selectQuery     = `(?s)^\s*SELECT\s+id,\s*user_id,\s*token_hash,\s*used,\s*created_at,\s*used_at\s+FROM\s+refresh_records\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+token_hash\s*=\s*\$2\s*$`
	markQuery       = `(?s)^\s*UPDATE\s+refresh_records\s+SET\s+used\s*=\s*TRUE,\s*used_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+used\s*=\s*FALSE\s*$`
	existsQuery     = `(?s)^SELECT\s+EXISTS\s*\(SELECT\s+1\s+FROM\s+refresh_records\s+WHERE\s+id\s*=\s*\$1\)$`
	invalidateQuery = `(?s)^\s*UPDATE\s+refresh_records\s+SET\s+used\s*=\s*TRUE,\s*used_at\s*=\s*\$2\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+used\s*=\s*FALSE\s*$`
)

func TestCreate_Success(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)

	mock.ExpectExec(insertQuery).
		WithArgs(sqlmock.AnyArg(), "u1", "hash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, err := store.Create(context.Background(), "u1", "hash")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if rec.ID == "" || rec.UserID != "u1" || rec.TokenHash != "hash" || rec.Used {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)

	mock.ExpectExec(insertQuery).
		WithArgs(sqlmock.AnyArg(), "u1", "hash", sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	_, err := store.Create(context.Background(), "u1", "hash")
	if !errors.Is(err, refresh.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !regexp.MustCompile(`error performing sql request: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFind_Found(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	used := created.Add(time.Minute)

	rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "used", "created_at", "used_at"}).
		AddRow("r1", "u1", "hash", true, created, used)
	mock.ExpectQuery(selectQuery).WithArgs("u1", "hash").WillReturnRows(rows)

	rec, err := store.Find(context.Background(), "u1", "hash")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if rec.ID != "r1" || !rec.Used || !rec.CreatedAt.Equal(created) || !rec.UsedAt.Equal(used) {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestFind_UnusedHasZeroUsedAt(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "used", "created_at", "used_at"}).
		AddRow("r1", "u1", "hash", false, time.Now(), nil)
	mock.ExpectQuery(selectQuery).WithArgs("u1", "hash").WillReturnRows(rows)

	rec, err := store.Find(context.Background(), "u1", "hash")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if rec.Used || !rec.UsedAt.IsZero() {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestFind_NotFound(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)
	mock.ExpectQuery(selectQuery).WithArgs("u1", "hash").WillReturnError(sql.ErrNoRows)

	if _, err := store.Find(context.Background(), "u1", "hash"); !errors.Is(err, refresh.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFind_DBError(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)
	mock.ExpectQuery(selectQuery).WithArgs("u1", "hash").WillReturnError(errors.New("conn reset"))

	if _, err := store.Find(context.Background(), "u1", "hash"); !errors.Is(err, refresh.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMarkUsed_Applied(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)
	mock.ExpectExec(markQuery).
		WithArgs("r1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := store.MarkUsed(context.Background(), &refresh.Record{ID: "r1", UserID: "u1"})
	if err != nil {
		t.Fatalf("MarkUsed error: %v", err)
	}
	if !applied {
		t.Fatal("expected update to apply")
	}
}

func TestMarkUsed_AlreadyUsed(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)
	mock.ExpectExec(markQuery).
		WithArgs("r1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(existsQuery).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	applied, err := store.MarkUsed(context.Background(), &refresh.Record{ID: "r1", UserID: "u1"})
	if err != nil {
		t.Fatalf("MarkUsed error: %v", err)
	}
	if applied {
		t.Fatal("expected update not to apply on a used record")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMarkUsed_Missing(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)
	mock.ExpectExec(markQuery).
		WithArgs("r1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(existsQuery).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	if _, err := store.MarkUsed(context.Background(), &refresh.Record{ID: "r1"}); !errors.Is(err, refresh.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkUsed_DBError(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)
	mock.ExpectExec(markQuery).
		WithArgs("r1", sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	if _, err := store.MarkUsed(context.Background(), &refresh.Record{ID: "r1"}); !errors.Is(err, refresh.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestInvalidateAll(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)
	mock.ExpectExec(invalidateQuery).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.InvalidateAll(context.Background(), "u1")
	if err != nil {
		t.Fatalf("InvalidateAll error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 invalidated, got %d", n)
	}
}

func TestInvalidateAll_DBError(t *testing.T) {
	store, mock, _ := newStoreWithMock(t)
	mock.ExpectExec(invalidateQuery).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	if _, err := store.InvalidateAll(context.Background(), "u1"); !errors.Is(err, refresh.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
