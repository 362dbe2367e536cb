package goRotate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	internalaudit "github.com/MrEthical07/goRotate/internal/audit"
	"github.com/MrEthical07/goRotate/internal/flows"
	"github.com/MrEthical07/goRotate/jwt"
	"github.com/MrEthical07/goRotate/refresh"
	"github.com/rs/zerolog"
)

// Engine is the token lifecycle manager. It is safe for concurrent use after
// [Builder.Build].
type Engine struct {
	config     Config
	flows      flows.Service
	store      refresh.Store
	identity   IdentityProvider
	accessJWT  *jwt.Manager
	refreshJWT *jwt.Manager
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	logger     zerolog.Logger
}

// Close flushes and stops the audit dispatcher. The refresh store is owned by
// the caller and is not closed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process counters. It is empty when
// metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n int) {
	if e == nil || e.metrics == nil || n <= 0 {
		return
	}
	e.metrics.Add(id, uint64(n))
}

func (e *Engine) ready() bool {
	return e != nil && e.flows.Initialized()
}

// Login issues a token pair for an already authenticated principal and records
// the refresh token as unused.
//
// Login fails with [ErrValidationFailed] when p has no ID and with
// [ErrPersistence] when the record could not be stored; no tokens are returned
// in either case.
func (e *Engine) Login(ctx context.Context, p Principal) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Login(ctx, flows.Identity{ID: p.ID, Email: p.Email})
	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureInvalidPrincipal:
		e.metricInc(MetricLoginFailure)
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, res.Err)
	case flows.LoginFailurePersist:
		e.metricInc(MetricLoginFailure)
		e.metricInc(MetricPersistenceFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, p.ID, ErrPersistence, reasonMetadata("record_create_failed"))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, res.Err)
	default:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, p.ID, res.Err, reasonMetadata("issue_failed"))
		return nil, fmt.Errorf("goRotate: issue tokens: %w", res.Err)
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricRecordCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.UserID, nil, nil)

	return e.tokenPair(res.UserID, res.Access, res.Refresh), nil
}

// LoginWithPassword looks the principal up by email, verifies the password
// through the identity provider and then performs [Engine.Login].
func (e *Engine) LoginWithPassword(ctx context.Context, email, password string) (*TokenPair, error) {
	if !e.ready() || e.identity == nil {
		return nil, ErrEngineNotReady
	}

	email = NormalizeEmail(email)
	if email == "" || password == "" {
		e.metricInc(MetricLoginFailure)
		return nil, fmt.Errorf("%w: email and password required", ErrValidationFailed)
	}

	p, err := e.identity.FindByEmail(ctx, email)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		if errors.Is(err, ErrUnknownPrincipal) {
			e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrUnknownPrincipal, func() map[string]string {
				return map[string]string{"identifier": email}
			})
			return nil, ErrUnknownPrincipal
		}
		e.metricInc(MetricPersistenceFailure)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	ok, err := e.identity.VerifyPassword(ctx, p, password)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, p.ID, err, reasonMetadata("password_verify_error"))
		return nil, fmt.Errorf("goRotate: verify password: %w", err)
	}
	if !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, p.ID, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	return e.Login(ctx, p)
}

// Refresh rotates refreshToken: the presented token is consumed and a new
// pair is returned. A token can be rotated successfully at most once; any
// later presentation fails with [ErrReusedToken].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Refresh(ctx, refreshToken)
	if res.Failure != flows.RefreshFailureNone {
		return nil, e.refreshFailure(ctx, res)
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricRecordCreated)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, nil, nil)

	return e.tokenPair(res.UserID, res.Access, res.Refresh), nil
}

func (e *Engine) refreshFailure(ctx context.Context, res flows.RefreshResult) error {
	e.metricInc(MetricRefreshFailure)

	switch res.Failure {
	case flows.RefreshFailureVerify:
		err := fmt.Errorf("%w: %w", ErrInvalidToken, res.Err)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", err, reasonMetadata("verify_failed"))
		return err

	case flows.RefreshFailureNotFound:
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, ErrUnknownToken, reasonMetadata("record_not_found"))
		return ErrUnknownToken

	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.metricAdd(MetricRefreshRevoked, res.Revoked)
		e.logger.Warn().
			Str("event", auditEventRefreshReuseDetected).
			Str("user_id", res.UserID).
			Int("revoked", res.Revoked).
			Msg("refresh token reuse detected")
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, res.UserID, ErrReusedToken, func() map[string]string {
			return map[string]string{
				"revoke_on_reuse": strconv.FormatBool(e.config.Refresh.RevokeOnReuse),
				"revoked":         strconv.Itoa(res.Revoked),
			}
		})
		return ErrReusedToken

	case flows.RefreshFailureRace:
		e.metricInc(MetricRefreshRaceLost)
		e.logger.Warn().
			Str("event", "refresh_race_lost").
			Str("user_id", res.UserID).
			Msg("refresh token consumed by a concurrent rotation")
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, res.UserID, ErrReusedToken, reasonMetadata("concurrent_rotation"))
		return ErrReusedToken

	case flows.RefreshFailurePrincipalNotFound:
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, ErrUnknownPrincipal, reasonMetadata("principal_not_found"))
		return ErrUnknownPrincipal

	case flows.RefreshFailureMarkUsed:
		if errors.Is(res.Err, refresh.ErrNotFound) {
			e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, ErrUnknownToken, reasonMetadata("record_vanished"))
			return ErrUnknownToken
		}
		return e.persistenceFailure(ctx, res.UserID, res.Err, "mark_used_failed")

	case flows.RefreshFailureLookup:
		return e.persistenceFailure(ctx, res.UserID, res.Err, "record_lookup_failed")

	case flows.RefreshFailurePrincipalLookup:
		return e.persistenceFailure(ctx, res.UserID, res.Err, "principal_lookup_failed")

	case flows.RefreshFailurePersist:
		return e.persistenceFailure(ctx, res.UserID, res.Err, "record_create_failed")

	default:
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.Err, reasonMetadata("issue_failed"))
		return fmt.Errorf("goRotate: issue tokens: %w", res.Err)
	}
}

func (e *Engine) persistenceFailure(ctx context.Context, userID string, cause error, reason string) error {
	e.metricInc(MetricPersistenceFailure)
	err := fmt.Errorf("%w: %v", ErrPersistence, cause)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, err, reasonMetadata(reason))
	return err
}

// Logout verifies refreshToken and invalidates every refresh record of its
// principal, ending all of the principal's sessions. Logging out twice is not
// an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.logoutResult(ctx, e.flows.Logout(ctx, refreshToken), MetricLogout, auditEventLogout)
}

// LogoutAll invalidates every refresh record of userID without requiring a
// token. It is meant for administrative termination.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.logoutResult(ctx, e.flows.LogoutAll(ctx, userID), MetricLogoutAll, auditEventLogoutAll)
}

func (e *Engine) logoutResult(ctx context.Context, res flows.LogoutResult, metric MetricID, event string) error {
	switch res.Failure {
	case flows.LogoutFailureNone:
	case flows.LogoutFailureVerify:
		err := fmt.Errorf("%w: %w", ErrInvalidToken, res.Err)
		e.emitAudit(ctx, event, false, "", err, nil)
		return err
	case flows.LogoutFailureInvalidPrincipal:
		return fmt.Errorf("%w: %v", ErrValidationFailed, res.Err)
	default:
		e.metricInc(MetricPersistenceFailure)
		err := fmt.Errorf("%w: %v", ErrPersistence, res.Err)
		e.emitAudit(ctx, event, false, res.UserID, err, nil)
		return err
	}

	e.metricInc(metric)
	e.metricAdd(MetricRecordsInvalidated, res.Invalidated)
	e.emitAudit(ctx, event, true, res.UserID, nil, func() map[string]string {
		return map[string]string{"invalidated": strconv.Itoa(res.Invalidated)}
	})
	return nil
}

// ValidateAccess verifies an access token. It performs no store round-trip;
// access tokens stay valid until they expire.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	res := e.flows.Validate(tokenStr)
	if res.Failure != flows.ValidateFailureNone {
		e.metricInc(MetricValidateFailure)
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, res.Err)
	}
	e.metricInc(MetricValidateSuccess)

	out := &AuthResult{
		UserID:  res.Claims.UserID,
		Email:   res.Claims.Email,
		TokenID: res.Claims.ID,
	}
	if res.Claims.ExpiresAt != nil {
		out.ExpiresAt = res.Claims.ExpiresAt.Time
	}
	return out, nil
}

func (e *Engine) tokenPair(userID string, access, next flows.IssuedToken) *TokenPair {
	return &TokenPair{
		AccessToken:      access.Token,
		AccessTokenTTL:   e.accessJWT.TTL(),
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     next.Token,
		RefreshTokenTTL:  e.refreshJWT.TTL(),
		RefreshExpiresAt: next.ExpiresAt,
		PrincipalID:      userID,
	}
}

func (e *Engine) flowDeps() flows.Deps {
	issueAccess := issuer(e.accessJWT)
	issueRefresh := issuer(e.refreshJWT)

	var lookup func(context.Context, string) (flows.Identity, error)
	if e.identity != nil {
		lookup = func(ctx context.Context, id string) (flows.Identity, error) {
			p, err := e.identity.FindByID(ctx, id)
			if err != nil {
				return flows.Identity{}, err
			}
			return flows.Identity{ID: p.ID, Email: p.Email}, nil
		}
	}

	return flows.Deps{
		Login: flows.LoginDeps{
			IssueAccess:  issueAccess,
			IssueRefresh: issueRefresh,
			HashToken:    refresh.HashToken,
			Store:        e.store,
		},
		Refresh: flows.RefreshDeps{
			VerifyRefresh:     e.refreshJWT.Verify,
			HashToken:         refresh.HashToken,
			LookupPrincipal:   lookup,
			IssueAccess:       issueAccess,
			IssueRefresh:      issueRefresh,
			AtomicMarkUsed:    refresh.IsAtomic(e.store),
			RevokeOnReuse:     e.config.Refresh.RevokeOnReuse,
			Store:             e.store,
			PrincipalNotFound: ErrUnknownPrincipal,
			Warn:              e.logFlowError,
		},
		Logout: flows.LogoutDeps{
			VerifyRefresh: e.refreshJWT.Verify,
			Store:         e.store,
		},
		Validate: flows.ValidateDeps{
			VerifyAccess: e.accessJWT.Verify,
		},
	}
}

func (e *Engine) logFlowError(msg string, keyvals ...any) {
	e.logger.Error().Fields(keyvals).Msg(msg)
}

func issuer(m *jwt.Manager) func(flows.Identity) (flows.IssuedToken, error) {
	return func(ident flows.Identity) (flows.IssuedToken, error) {
		token, expiresAt, err := m.Issue(ident.ID, ident.Email)
		if err != nil {
			return flows.IssuedToken{}, err
		}
		return flows.IssuedToken{Token: token, ExpiresAt: expiresAt}, nil
	}
}
