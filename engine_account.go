package goRotate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NormalizeEmail trims and lower-cases an email address. Identity providers
// should store emails in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount registers a new principal through the configured identity
// provider, which must implement [AccountCreator]. The email is normalized
// before it reaches the provider.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Principal, error) {
	if e == nil || e.identity == nil {
		return nil, ErrEngineNotReady
	}
	creator, ok := e.identity.(AccountCreator)
	if !ok {
		return nil, ErrEngineNotReady
	}

	req.Email = NormalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Email == "" || req.Password == "" {
		e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", ErrValidationFailed, nil)
		return nil, fmt.Errorf("%w: email and password required", ErrValidationFailed)
	}

	p, err := creator.CreatePrincipal(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountExists):
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreationDuplicate, false, "", ErrAccountExists, func() map[string]string {
				return map[string]string{"identifier": req.Email}
			})
			return nil, ErrAccountExists
		case errors.Is(err, ErrValidationFailed):
			e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", err, nil)
			return nil, err
		default:
			e.metricInc(MetricPersistenceFailure)
			wrapped := fmt.Errorf("%w: %v", ErrPersistence, err)
			e.emitAudit(ctx, auditEventAccountCreationFailure, false, "", wrapped, nil)
			return nil, wrapped
		}
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreationSuccess, true, p.ID, nil, nil)
	return &p, nil
}
