package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	goRotate "github.com/MrEthical07/goRotate"
	"github.com/MrEthical07/goRotate/middleware"
)

// Engine is the subset of *goRotate.Engine the handlers need.
type Engine interface {
	LoginWithPassword(ctx context.Context, email, password string) (*goRotate.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*goRotate.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	CreateAccount(ctx context.Context, req goRotate.CreateAccountRequest) (*goRotate.Principal, error)
	ValidateAccess(ctx context.Context, token string) (*goRotate.AuthResult, error)
}

// Options controls transport behaviour.
type Options struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
	CookieSecure   bool
	CookieDomain   string

	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
	// Wrap is applied around the whole router, e.g. tracing.
	Wrap func(http.Handler) http.Handler
}

// API wires the engine to HTTP handlers.
type API struct {
	engine Engine
	opts   Options
}

// New returns an API serving engine.
func New(engine Engine, opts Options) (*API, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	return &API{engine: engine, opts: opts}, nil
}

// Routes constructs the chi router containing all endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(hlog.NewHandler(a.opts.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimiddleware.Recoverer)
	if len(a.opts.AllowedOrigins) > 0 {
		r.Use(corsHandler(a.opts.AllowedOrigins))
	}
	r.Use(requestContext)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if a.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.opts.Metrics)
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Put("/signup", a.handleSignup)
		r.Post("/login", a.handleLogin)
		r.Get("/refreshAccessToken", a.handleRefresh)
		r.Delete("/logout", a.handleLogout)
		r.With(middleware.Guard(a.engine)).Get("/me", a.handleMe)
	})

	if a.opts.Wrap != nil {
		return a.opts.Wrap(r)
	}
	return r
}

// corsHandler allows the configured origins. Credentialed requests carry the
// refresh cookie, so they are only allowed for explicitly listed origins.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !wildcard,
		MaxAge:           int((10 * time.Minute).Seconds()),
	})
}

// requestContext forwards caller details to engine audit events.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := goRotate.WithClientIP(r.Context(), r.RemoteAddr)
		ctx = goRotate.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
