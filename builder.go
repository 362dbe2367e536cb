package goRotate

import (
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/goRotate/internal/audit"
	"github.com/MrEthical07/goRotate/internal/flows"
	"github.com/MrEthical07/goRotate/jwt"
	"github.com/MrEthical07/goRotate/refresh"
	"github.com/rs/zerolog"
)

// Builder assembles an [Engine]. A Builder can be built once.
//
// Builder instances are intended to be configured during initialization and
// then discarded.
type Builder struct {
	config Config
	store  refresh.Store

	identity  IdentityProvider
	auditSink AuditSink
	logger    zerolog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRefreshStore sets the store holding refresh records. Required.
func (b *Builder) WithRefreshStore(store refresh.Store) *Builder {
	b.store = store
	return b
}

// WithIdentityProvider sets the user database adapter. Without one, Refresh
// trusts the identity embedded in the refresh token and LoginWithPassword and
// CreateAccount return [ErrEngineNotReady].
func (b *Builder) WithIdentityProvider(p IdentityProvider) *Builder {
	b.identity = p
	return b
}

// WithAuditSink sets the sink the audit dispatcher forwards to. It only takes
// effect when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger used for reuse warnings and compensation errors.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the clock used for token issuance and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the access validation latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready [Engine].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.store == nil {
		return nil, errors.New("refresh store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	access, err := jwt.NewManager(jwt.Config{
		Secret: cfg.JWT.AccessSecret,
		TTL:    cfg.JWT.AccessTTL,
		Leeway: cfg.JWT.Leeway,
		Issuer: cfg.JWT.Issuer,
		Now:    b.now,
	})
	if err != nil {
		return nil, err
	}
	rm, err := jwt.NewManager(jwt.Config{
		Secret: cfg.JWT.RefreshSecret,
		TTL:    cfg.JWT.RefreshTTL,
		Leeway: cfg.JWT.Leeway,
		Issuer: cfg.JWT.Issuer,
		Now:    b.now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		store:      b.store,
		identity:   b.identity,
		accessJWT:  access,
		refreshJWT: rm,
		logger:     b.logger,
		metrics:    NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}
	engine.flows = flows.New(engine.flowDeps())

	b.built = true

	return engine, nil
}
