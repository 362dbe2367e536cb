package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goRotate/jwt"
	"github.com/MrEthical07/goRotate/refresh"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureVerify
	RefreshFailureNotFound
	RefreshFailureLookup
	RefreshFailureReuse
	RefreshFailurePrincipalNotFound
	RefreshFailurePrincipalLookup
	RefreshFailureIssue
	RefreshFailurePersist
	RefreshFailureMarkUsed
	RefreshFailureRace
)

// RefreshResult carries either the rotated token pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string
	// Revoked is the number of records invalidated by reuse revocation.
	Revoked int
	Access  IssuedToken
	Refresh IssuedToken
}

type RefreshRecordStore interface {
	Create(ctx context.Context, userID, tokenHash string) (*refresh.Record, error)
	Find(ctx context.Context, userID, tokenHash string) (*refresh.Record, error)
	MarkUsed(ctx context.Context, rec *refresh.Record) (bool, error)
	InvalidateAll(ctx context.Context, userID string) (int, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	VerifyRefresh   func(string) (*jwt.Claims, error)
	HashToken       func(string) string
	LookupPrincipal func(context.Context, string) (Identity, error)
	IssueAccess     func(Identity) (IssuedToken, error)
	IssueRefresh    func(Identity) (IssuedToken, error)

	// AtomicMarkUsed is false for stores whose MarkUsed is not a conditional
	// update; the flow then re-reads the record right before marking it.
	AtomicMarkUsed bool
	RevokeOnReuse  bool

	Store             RefreshRecordStore
	PrincipalNotFound error
	Warn              func(string, ...any)
}

// RunRefresh rotates a refresh token.
//
// The replacement record is created before the presented record is marked
// used. If the conditional mark does not apply, another rotation won the race
// and the replacement is retired so that at most one successor stays active.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	warn := deps.Warn
	if warn == nil {
		warn = func(string, ...any) {}
	}

	claims, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureVerify, Err: err}
	}
	userID := claims.UserID
	presentedHash := deps.HashToken(refreshToken)

	rec, err := deps.Store.Find(ctx, userID, presentedHash)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) {
			return RefreshResult{Failure: RefreshFailureNotFound, Err: err, UserID: userID}
		}
		return RefreshResult{Failure: RefreshFailureLookup, Err: err, UserID: userID}
	}

	if rec.Used {
		revoked := 0
		if deps.RevokeOnReuse {
			n, revokeErr := deps.Store.InvalidateAll(ctx, userID)
			if revokeErr != nil {
				warn("goRotate: reuse revocation failed", "user_id", userID, "error", revokeErr)
			}
			revoked = n
		}
		return RefreshResult{
			Failure: RefreshFailureReuse,
			Err:     errors.New("refresh token already used"),
			UserID:  userID,
			Revoked: revoked,
		}
	}

	ident := Identity{ID: userID, Email: claims.Email}
	if deps.LookupPrincipal != nil {
		ident, err = deps.LookupPrincipal(ctx, userID)
		if err != nil {
			if deps.PrincipalNotFound != nil && errors.Is(err, deps.PrincipalNotFound) {
				return RefreshResult{Failure: RefreshFailurePrincipalNotFound, Err: err, UserID: userID}
			}
			return RefreshResult{Failure: RefreshFailurePrincipalLookup, Err: err, UserID: userID}
		}
	}

	access, err := deps.IssueAccess(ident)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: userID}
	}
	next, err := deps.IssueRefresh(ident)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: userID}
	}

	created, err := deps.Store.Create(ctx, userID, deps.HashToken(next.Token))
	if err != nil {
		return RefreshResult{Failure: RefreshFailurePersist, Err: err, UserID: userID}
	}

	// Stores without a conditional update get a fresh read right before the mark.
	if !deps.AtomicMarkUsed {
		current, err := deps.Store.Find(ctx, userID, presentedHash)
		if err != nil {
			retire(ctx, deps.Store, created, warn)
			if errors.Is(err, refresh.ErrNotFound) {
				return RefreshResult{Failure: RefreshFailureNotFound, Err: err, UserID: userID}
			}
			return RefreshResult{Failure: RefreshFailureLookup, Err: err, UserID: userID}
		}
		if current.Used {
			retire(ctx, deps.Store, created, warn)
			return RefreshResult{
				Failure: RefreshFailureRace,
				Err:     errors.New("refresh token consumed concurrently"),
				UserID:  userID,
			}
		}
		rec = current
	}

	applied, err := deps.Store.MarkUsed(ctx, rec)
	if err != nil {
		retire(ctx, deps.Store, created, warn)
		return RefreshResult{Failure: RefreshFailureMarkUsed, Err: err, UserID: userID}
	}
	if !applied {
		retire(ctx, deps.Store, created, warn)
		return RefreshResult{
			Failure: RefreshFailureRace,
			Err:     errors.New("refresh token consumed concurrently"),
			UserID:  userID,
		}
	}

	return RefreshResult{
		Failure: RefreshFailureNone,
		UserID:  userID,
		Access:  access,
		Refresh: next,
	}
}

func retire(ctx context.Context, store RefreshRecordStore, rec *refresh.Record, warn func(string, ...any)) {
	if _, err := store.MarkUsed(ctx, rec); err != nil {
		warn("goRotate: failed to retire replacement refresh record", "user_id", rec.UserID, "record_id", rec.ID, "error", err)
	}
}
