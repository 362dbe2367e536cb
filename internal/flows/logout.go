package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goRotate/jwt"
)

// LogoutFailureKind classifies logout flow failures for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureVerify
	LogoutFailureInvalidPrincipal
	LogoutFailurePersist
)

type LogoutRecordStore interface {
	InvalidateAll(ctx context.Context, userID string) (int, error)
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	VerifyRefresh func(string) (*jwt.Claims, error)
	Store         LogoutRecordStore
}

type LogoutResult struct {
	Failure     LogoutFailureKind
	Err         error
	UserID      string
	Invalidated int
}

// RunLogout verifies the presented refresh token and ends every session of its
// principal. The record of the presented token is not required to exist.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	claims, err := deps.VerifyRefresh(refreshToken)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureVerify, Err: err}
	}
	return RunLogoutAll(ctx, claims.UserID, deps)
}

func RunLogoutAll(ctx context.Context, userID string, deps LogoutDeps) LogoutResult {
	if userID == "" {
		return LogoutResult{
			Failure: LogoutFailureInvalidPrincipal,
			Err:     errors.New("principal id required"),
		}
	}

	n, err := deps.Store.InvalidateAll(ctx, userID)
	if err != nil {
		return LogoutResult{Failure: LogoutFailurePersist, Err: err, UserID: userID}
	}
	return LogoutResult{Failure: LogoutFailureNone, UserID: userID, Invalidated: n}
}
