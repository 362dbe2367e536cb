package goRotate

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/goRotate/internal/audit"
	"github.com/rs/zerolog"
)

// Principal is an authenticated identity as known to the identity provider.
type Principal struct {
	ID       string
	Email    string
	FullName string
}

// TokenPair is returned by [Engine.Login] and [Engine.Refresh]. Both operations
// return the same shape.
type TokenPair struct {
	AccessToken      string
	AccessTokenTTL   time.Duration
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshTokenTTL  time.Duration
	RefreshExpiresAt time.Time
	PrincipalID      string
}

// AuthResult is returned by [Engine.ValidateAccess]. It carries the identity
// attached to a verified access token.
type AuthResult struct {
	UserID    string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

// IdentityProvider is the interface callers implement to connect the engine
// to their user database. Lookups that find nothing must return an error
// wrapping [ErrUnknownPrincipal].
//
//	Docs: README.md
type IdentityProvider interface {
	FindByID(ctx context.Context, id string) (Principal, error)
	FindByEmail(ctx context.Context, email string) (Principal, error)
	VerifyPassword(ctx context.Context, p Principal, password string) (bool, error)
}

// AccountCreator is implemented by identity providers that support signup.
// A duplicate email must be reported with an error wrapping [ErrAccountExists].
type AccountCreator interface {
	CreatePrincipal(ctx context.Context, req CreateAccountRequest) (Principal, error)
}

// CreateAccountRequest is the signup input accepted by [Engine.CreateAccount].
type CreateAccountRequest struct {
	FullName string
	Email    string
	Password string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine’s audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink is an [AuditSink] that writes events through a zerolog logger.
type LogSink = internalaudit.LogSink

// NATSSink is an [AuditSink] that publishes JSON events to a NATS subject.
type NATSSink = internalaudit.NATSSink

// MultiSink is an [AuditSink] forwarding each event to several sinks.
type MultiSink = internalaudit.MultiSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLogSink creates a [LogSink] writing at info level, or warn level for
// failed events.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}

// NewNATSSink creates a [NATSSink]. conn is usually a *nats.Conn.
func NewNATSSink(conn internalaudit.Publisher, subject string, onError func(error)) *NATSSink {
	return internalaudit.NewNATSSink(conn, subject, onError)
}
