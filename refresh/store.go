package refresh

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record matches the user and token hash.
	ErrNotFound = errors.New("refresh record not found")
	// ErrUnavailable wraps every backend failure.
	ErrUnavailable = errors.New("refresh store unavailable")
)

// Record is one issued refresh token.
type Record struct {
	ID        string
	UserID    string
	TokenHash string
	Used      bool
	CreatedAt time.Time
	UsedAt    time.Time
}

// Store persists refresh records.
//
// All methods may block on I/O and must honour ctx cancellation. Failures
// other than [ErrNotFound] wrap [ErrUnavailable].
type Store interface {
	// Create persists a new unused record.
	Create(ctx context.Context, userID, tokenHash string) (*Record, error)
	// Find returns the record matching both userID and tokenHash, used or not.
	Find(ctx context.Context, userID, tokenHash string) (*Record, error)
	// MarkUsed flips rec to used only if it is currently unused and reports
	// whether the update applied.
	MarkUsed(ctx context.Context, rec *Record) (bool, error)
	// InvalidateAll marks every record of userID used and returns how many
	// records changed state.
	InvalidateAll(ctx context.Context, userID string) (int, error)
}

// AtomicMarker is implemented by stores that can state whether MarkUsed is a
// true conditional update. Stores that do not implement it are assumed atomic.
type AtomicMarker interface {
	AtomicMarkUsed() bool
}

// IsAtomic reports whether s guarantees an atomic conditional MarkUsed.
func IsAtomic(s Store) bool {
	if m, ok := s.(AtomicMarker); ok {
		return m.AtomicMarkUsed()
	}
	return true
}

// HashToken returns the hex SHA-256 digest stored in place of the raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// HashEqual compares a presented token against a stored digest in constant time.
func HashEqual(token, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(storedHash)) == 1
}
