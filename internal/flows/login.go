package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goRotate/refresh"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidPrincipal
	LoginFailureIssue
	LoginFailurePersist
)

// LoginResult carries either the issued token pair or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	UserID  string
	Access  IssuedToken
	Refresh IssuedToken
}

type LoginRecordStore interface {
	Create(ctx context.Context, userID, tokenHash string) (*refresh.Record, error)
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	IssueAccess  func(Identity) (IssuedToken, error)
	IssueRefresh func(Identity) (IssuedToken, error)
	HashToken    func(string) string
	Store        LoginRecordStore
}

// RunLogin mints an access/refresh pair for an already verified principal and
// records the refresh token as unused. Nothing is returned to the caller unless
// the record was persisted.
func RunLogin(ctx context.Context, ident Identity, deps LoginDeps) LoginResult {
	if ident.ID == "" {
		return LoginResult{
			Failure: LoginFailureInvalidPrincipal,
			Err:     errors.New("principal id required"),
		}
	}

	access, err := deps.IssueAccess(ident)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, UserID: ident.ID}
	}
	next, err := deps.IssueRefresh(ident)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, UserID: ident.ID}
	}

	if _, err := deps.Store.Create(ctx, ident.ID, deps.HashToken(next.Token)); err != nil {
		return LoginResult{Failure: LoginFailurePersist, Err: err, UserID: ident.ID}
	}

	return LoginResult{
		Failure: LoginFailureNone,
		UserID:  ident.ID,
		Access:  access,
		Refresh: next,
	}
}
