package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process [Store]. MarkUsed runs under the store mutex,
// which makes it a true conditional update.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
	byToken map[string]string
	byUser  map[string][]string
	now     func() time.Time
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		byToken: make(map[string]string),
		byUser:  make(map[string][]string),
		now:     time.Now,
	}
}

func tokenKey(userID, tokenHash string) string {
	return userID + "\x00" + tokenHash
}

func (s *MemoryStore) Create(ctx context.Context, userID, tokenHash string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenKey(userID, tokenHash)
	if _, exists := s.byToken[key]; exists {
		return nil, fmt.Errorf("%w: duplicate token hash", ErrUnavailable)
	}

	rec := &Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: s.now().UTC(),
	}
	s.records[rec.ID] = rec
	s.byToken[key] = rec.ID
	s.byUser[userID] = append(s.byUser[userID], rec.ID)

	out := *rec
	return &out, nil
}

func (s *MemoryStore) Find(ctx context.Context, userID, tokenHash string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byToken[tokenKey(userID, tokenHash)]
	if !ok {
		return nil, ErrNotFound
	}
	out := *s.records[id]
	return &out, nil
}

func (s *MemoryStore) MarkUsed(ctx context.Context, rec *Record) (bool, error) {
	if rec == nil {
		return false, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[rec.ID]
	if !ok {
		return false, ErrNotFound
	}
	if stored.Used {
		return false, nil
	}
	stored.Used = true
	stored.UsedAt = s.now().UTC()
	return true, nil
}

func (s *MemoryStore) InvalidateAll(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	changed := 0
	for _, id := range s.byUser[userID] {
		rec := s.records[id]
		if rec.Used {
			continue
		}
		rec.Used = true
		rec.UsedAt = now
		changed++
	}
	return changed, nil
}

// Records returns a snapshot of every record owned by userID in creation order.
func (s *MemoryStore) Records(userID string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.byUser[userID]
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.records[id])
	}
	return out
}
