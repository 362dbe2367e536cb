package users

import (
	"context"
	"fmt"
	"sync"

	goRotate "github.com/MrEthical07/goRotate"
	"github.com/MrEthical07/goRotate/password"
	"github.com/google/uuid"
)

type memoryUser struct {
	principal goRotate.Principal
	hash      string
}

// Memory is an in-process identity store.
type Memory struct {
	hasher password.Hasher

	mu      sync.RWMutex
	byID    map[string]*memoryUser
	byEmail map[string]*memoryUser
}

// NewMemory returns an empty store hashing with hasher.
func NewMemory(hasher password.Hasher) *Memory {
	return &Memory{
		hasher:  hasher,
		byID:    make(map[string]*memoryUser),
		byEmail: make(map[string]*memoryUser),
	}
}

func (m *Memory) FindByID(_ context.Context, id string) (goRotate.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byID[id]
	if !ok {
		return goRotate.Principal{}, fmt.Errorf("%w: %s", goRotate.ErrUnknownPrincipal, id)
	}
	return u.principal, nil
}

func (m *Memory) FindByEmail(_ context.Context, email string) (goRotate.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byEmail[goRotate.NormalizeEmail(email)]
	if !ok {
		return goRotate.Principal{}, goRotate.ErrUnknownPrincipal
	}
	return u.principal, nil
}

func (m *Memory) VerifyPassword(_ context.Context, p goRotate.Principal, pw string) (bool, error) {
	m.mu.RLock()
	u, ok := m.byID[p.ID]
	m.mu.RUnlock()
	if !ok {
		return false, goRotate.ErrUnknownPrincipal
	}
	return m.hasher.Verify(pw, u.hash)
}

// CreatePrincipal hashes the password outside the lock and inserts the user
// unless the email is taken.
func (m *Memory) CreatePrincipal(_ context.Context, req goRotate.CreateAccountRequest) (goRotate.Principal, error) {
	hash, err := m.hasher.Hash(req.Password)
	if err != nil {
		return goRotate.Principal{}, fmt.Errorf("%w: %v", goRotate.ErrValidationFailed, err)
	}

	email := goRotate.NormalizeEmail(req.Email)
	u := &memoryUser{
		principal: goRotate.Principal{ID: uuid.NewString(), Email: email, FullName: req.FullName},
		hash:      hash,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byEmail[email]; exists {
		return goRotate.Principal{}, goRotate.ErrAccountExists
	}
	m.byID[u.principal.ID] = u
	m.byEmail[email] = u
	return u.principal, nil
}
