// Package refreshtest holds the behavioural suite shared by every
// refresh.Store backend.
package refreshtest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrEthical07/goRotate/refresh"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) refresh.Store

// Run executes the store suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("CreateThenFind", func(t *testing.T) { testCreateThenFind(t, newStore(t)) })
	t.Run("FindRequiresUserAndHash", func(t *testing.T) { testFindRequiresUserAndHash(t, newStore(t)) })
	t.Run("MarkUsedAppliesOnce", func(t *testing.T) { testMarkUsedAppliesOnce(t, newStore(t)) })
	t.Run("InvalidateAll", func(t *testing.T) { testInvalidateAll(t, newStore(t)) })
	t.Run("ConcurrentMarkUsedSingleWinner", func(t *testing.T) { testConcurrentMarkUsed(t, newStore(t)) })
}

func testCreateThenFind(t *testing.T, store refresh.Store) {
	ctx := context.Background()
	hash := refresh.HashToken("token-1")

	created, err := store.Create(ctx, "u1", hash)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.UserID != "u1" || created.TokenHash != hash || created.Used {
		t.Fatalf("unexpected created record: %+v", created)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("expected creation timestamp")
	}

	found, err := store.Find(ctx, "u1", hash)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != created.ID || found.Used {
		t.Fatalf("unexpected found record: %+v", found)
	}
}

func testFindRequiresUserAndHash(t *testing.T, store refresh.Store) {
	ctx := context.Background()
	hash := refresh.HashToken("token-1")

	if _, err := store.Create(ctx, "u1", hash); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.Find(ctx, "u2", hash); !errors.Is(err, refresh.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
	if _, err := store.Find(ctx, "u1", refresh.HashToken("token-2")); !errors.Is(err, refresh.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other token, got %v", err)
	}
}

func testMarkUsedAppliesOnce(t *testing.T, store refresh.Store) {
	ctx := context.Background()
	hash := refresh.HashToken("token-1")

	rec, err := store.Create(ctx, "u1", hash)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	applied, err := store.MarkUsed(ctx, rec)
	if err != nil {
		t.Fatalf("first mark used: %v", err)
	}
	if !applied {
		t.Fatal("expected first mark used to apply")
	}

	applied, err = store.MarkUsed(ctx, rec)
	if err != nil {
		t.Fatalf("second mark used: %v", err)
	}
	if applied {
		t.Fatal("expected second mark used to be a no-op")
	}

	found, err := store.Find(ctx, "u1", hash)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !found.Used {
		t.Fatal("expected record to be used")
	}
}

func testInvalidateAll(t *testing.T, store refresh.Store) {
	ctx := context.Background()

	var recs []*refresh.Record
	for _, tok := range []string{"a", "b", "c"} {
		rec, err := store.Create(ctx, "u1", refresh.HashToken(tok))
		if err != nil {
			t.Fatalf("create %s: %v", tok, err)
		}
		recs = append(recs, rec)
	}
	other, err := store.Create(ctx, "u2", refresh.HashToken("d"))
	if err != nil {
		t.Fatalf("create other: %v", err)
	}

	if _, err := store.MarkUsed(ctx, recs[0]); err != nil {
		t.Fatalf("mark used: %v", err)
	}

	changed, err := store.InvalidateAll(ctx, "u1")
	if err != nil {
		t.Fatalf("invalidate all: %v", err)
	}
	if changed != 2 {
		t.Fatalf("expected 2 records to change, got %d", changed)
	}

	for _, tok := range []string{"a", "b", "c"} {
		rec, err := store.Find(ctx, "u1", refresh.HashToken(tok))
		if err != nil {
			t.Fatalf("find %s: %v", tok, err)
		}
		if !rec.Used {
			t.Fatalf("expected record %s to be used", tok)
		}
	}

	untouched, err := store.Find(ctx, "u2", other.TokenHash)
	if err != nil {
		t.Fatalf("find other: %v", err)
	}
	if untouched.Used {
		t.Fatal("expected other user's record to stay unused")
	}

	changed, err = store.InvalidateAll(ctx, "u1")
	if err != nil {
		t.Fatalf("second invalidate all: %v", err)
	}
	if changed != 0 {
		t.Fatalf("expected idempotent invalidate, got %d changes", changed)
	}
}

func testConcurrentMarkUsed(t *testing.T, store refresh.Store) {
	ctx := context.Background()
	rec, err := store.Create(ctx, "u1", refresh.HashToken("contended"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 16
	var (
		wg      sync.WaitGroup
		winners atomic.Int64
		start   = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			applied, err := store.MarkUsed(ctx, rec)
			if err != nil {
				t.Errorf("mark used: %v", err)
				return
			}
			if applied {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if winners.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners.Load())
	}
}
