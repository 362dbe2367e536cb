package goRotate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goRotate/refresh"
)

const (
	testAccessSecret  = "test-access-secret-0123456789"
	testRefreshSecret = "test-refresh-secret-9876543210"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte(testAccessSecret)
	cfg.JWT.RefreshSecret = []byte(testRefreshSecret)
	return cfg
}

type testIdentity struct {
	mu        sync.Mutex
	byID      map[string]Principal
	byEmail   map[string]string
	passwords map[string]string
	findErr   error
}

func newTestIdentity() *testIdentity {
	return &testIdentity{
		byID:      make(map[string]Principal),
		byEmail:   make(map[string]string),
		passwords: make(map[string]string),
	}
}

func (p *testIdentity) add(id, email, password string) Principal {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr := Principal{ID: id, Email: email}
	p.byID[id] = pr
	p.byEmail[email] = id
	p.passwords[id] = password
	return pr
}

func (p *testIdentity) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.byEmail, p.byID[id].Email)
	delete(p.byID, id)
}

func (p *testIdentity) FindByID(_ context.Context, id string) (Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.findErr != nil {
		return Principal{}, p.findErr
	}
	pr, ok := p.byID[id]
	if !ok {
		return Principal{}, fmt.Errorf("%w: %s", ErrUnknownPrincipal, id)
	}
	return pr, nil
}

func (p *testIdentity) FindByEmail(_ context.Context, email string) (Principal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.findErr != nil {
		return Principal{}, p.findErr
	}
	id, ok := p.byEmail[email]
	if !ok {
		return Principal{}, ErrUnknownPrincipal
	}
	return p.byID[id], nil
}

func (p *testIdentity) VerifyPassword(_ context.Context, pr Principal, password string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.passwords[pr.ID] == password, nil
}

// creatingIdentity adds signup support on top of testIdentity.
type creatingIdentity struct {
	*testIdentity
	seq int
}

func (p *creatingIdentity) CreatePrincipal(_ context.Context, req CreateAccountRequest) (Principal, error) {
	p.mu.Lock()
	if _, exists := p.byEmail[req.Email]; exists {
		p.mu.Unlock()
		return Principal{}, ErrAccountExists
	}
	p.seq++
	id := fmt.Sprintf("user-%d", p.seq)
	p.mu.Unlock()

	pr := p.add(id, req.Email, req.Password)
	pr.FullName = req.FullName
	return pr, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEngine struct {
	*Engine
	store    *refresh.MemoryStore
	identity *testIdentity
}

func newTestEngine(t *testing.T, configure ...func(*Builder)) *testEngine {
	t.Helper()

	store := refresh.NewMemoryStore()
	identity := newTestIdentity()
	identity.add("u1", "a@b.com", "correct-password")

	b := New().
		WithConfig(testConfig()).
		WithRefreshStore(store).
		WithIdentityProvider(identity).
		WithMetricsEnabled(true)
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, store: store, identity: identity}
}

func (te *testEngine) login(t *testing.T, userID string) *TokenPair {
	t.Helper()
	pair, err := te.Login(context.Background(), Principal{ID: userID, Email: userID + "@example.com"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return pair
}

func (te *testEngine) record(t *testing.T, userID, token string) refresh.Record {
	t.Helper()
	rec, err := te.store.Find(context.Background(), userID, refresh.HashToken(token))
	if err != nil {
		t.Fatalf("record lookup failed: %v", err)
	}
	return *rec
}

// countingStore records how often each store method is called.
type countingStore struct {
	refresh.Store
	mu    sync.Mutex
	calls map[string]int
}

func newCountingStore(inner refresh.Store) *countingStore {
	return &countingStore{Store: inner, calls: make(map[string]int)}
}

func (s *countingStore) count(name string) {
	s.mu.Lock()
	s.calls[name]++
	s.mu.Unlock()
}

func (s *countingStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *countingStore) Create(ctx context.Context, userID, tokenHash string) (*refresh.Record, error) {
	s.count("create")
	return s.Store.Create(ctx, userID, tokenHash)
}

func (s *countingStore) Find(ctx context.Context, userID, tokenHash string) (*refresh.Record, error) {
	s.count("find")
	return s.Store.Find(ctx, userID, tokenHash)
}

func (s *countingStore) MarkUsed(ctx context.Context, rec *refresh.Record) (bool, error) {
	s.count("mark")
	return s.Store.MarkUsed(ctx, rec)
}

func (s *countingStore) InvalidateAll(ctx context.Context, userID string) (int, error) {
	s.count("invalidate")
	return s.Store.InvalidateAll(ctx, userID)
}

// downStore fails every call.
type downStore struct{}

func (downStore) Create(context.Context, string, string) (*refresh.Record, error) {
	return nil, fmt.Errorf("%w: connection refused", refresh.ErrUnavailable)
}

func (downStore) Find(context.Context, string, string) (*refresh.Record, error) {
	return nil, fmt.Errorf("%w: connection refused", refresh.ErrUnavailable)
}

func (downStore) MarkUsed(context.Context, *refresh.Record) (bool, error) {
	return false, fmt.Errorf("%w: connection refused", refresh.ErrUnavailable)
}

func (downStore) InvalidateAll(context.Context, string) (int, error) {
	return 0, fmt.Errorf("%w: connection refused", refresh.ErrUnavailable)
}

func flipMiddleChar(token string) string {
	b := []byte(token)
	i := len(b) / 2
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}
