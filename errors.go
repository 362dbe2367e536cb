package goRotate

import (
	"errors"

	"github.com/MrEthical07/goRotate/jwt"
)

var (
	// ErrInvalidToken is returned when a token fails signature, structure or
	// expiry checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnknownToken is returned when a refresh token verifies but has no
	// stored record.
	ErrUnknownToken = errors.New("unknown refresh token")
	// ErrReusedToken is returned when a refresh token that was already used is
	// presented again, or when a concurrent rotation consumed it first. It is a
	// security signal.
	ErrReusedToken = errors.New("refresh token has already been used")
	// ErrUnknownPrincipal is returned when the identity behind a token or an
	// email no longer exists.
	ErrUnknownPrincipal = errors.New("unknown principal")
	// ErrPersistence wraps refresh or identity store failures. It is the only
	// error a caller may retry.
	ErrPersistence = errors.New("persistence failure")
	// ErrValidationFailed is returned for caller input rejected before any
	// token or store work.
	ErrValidationFailed = errors.New("validation failed")
	// ErrInvalidCredentials is returned when a password does not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExists is returned when signup hits an existing email.
	ErrAccountExists = errors.New("account already exists")
	// ErrEngineNotReady is returned when the engine was not built through
	// [Builder.Build] or lacks a dependency the operation needs.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind is a switchable classification of engine errors.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInvalidToken
	KindUnknownToken
	KindReusedToken
	KindUnknownPrincipal
	KindPersistence
	KindValidationFailed
	KindInvalidCredentials
	KindAccountExists
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInvalidToken:
		return "invalid_token"
	case KindUnknownToken:
		return "unknown_token"
	case KindReusedToken:
		return "reused_token"
	case KindUnknownPrincipal:
		return "unknown_principal"
	case KindPersistence:
		return "persistence"
	case KindValidationFailed:
		return "validation_failed"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindAccountExists:
		return "account_exists"
	default:
		return "internal"
	}
}

// KindOf classifies err. Errors produced outside the engine map to
// KindInternal; nil maps to KindNone.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrReusedToken):
		return KindReusedToken
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, jwt.ErrInvalidSignature),
		errors.Is(err, jwt.ErrExpired),
		errors.Is(err, jwt.ErrMalformed):
		return KindInvalidToken
	case errors.Is(err, ErrUnknownToken):
		return KindUnknownToken
	case errors.Is(err, ErrUnknownPrincipal):
		return KindUnknownPrincipal
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrValidationFailed):
		return KindValidationFailed
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrAccountExists):
		return KindAccountExists
	default:
		return KindInternal
	}
}

// Retryable reports whether the failed call may succeed if repeated unchanged.
func Retryable(err error) bool {
	return KindOf(err) == KindPersistence
}
