package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	goRotate "github.com/MrEthical07/goRotate"
	"github.com/MrEthical07/goRotate/internal/audit"
	"github.com/MrEthical07/goRotate/internal/config"
	"github.com/MrEthical07/goRotate/internal/database"
	"github.com/MrEthical07/goRotate/internal/httpapi"
	"github.com/MrEthical07/goRotate/internal/telemetry"
	"github.com/MrEthical07/goRotate/internal/users"
	otelexport "github.com/MrEthical07/goRotate/metrics/export/otel"
	promexport "github.com/MrEthical07/goRotate/metrics/export/prometheus"
	"github.com/MrEthical07/goRotate/password"
	"github.com/MrEthical07/goRotate/refresh"
	"github.com/MrEthical07/goRotate/refresh/pgstore"
	"github.com/MrEthical07/goRotate/refresh/redisstore"
)

func newServeCommand() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before serving (postgres only)")
	return cmd
}

// deps holds everything serve opens and must release.
type deps struct {
	db      *sql.DB
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func serve(ctx context.Context, migrate bool) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	d := &deps{}
	defer d.close()

	store, err := openStore(ctx, cfg, d, logger)
	if err != nil {
		return err
	}
	if migrate {
		if d.db == nil {
			return errors.New("--migrate requires DB_DSN")
		}
		if err := database.Migrate(ctx, d.db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	hasher, err := password.New(cfg.PasswordAlgorithm)
	if err != nil {
		return err
	}
	var identity goRotate.IdentityProvider = users.NewMemory(hasher)
	if d.db != nil {
		identity = users.NewPostgres(d.db, hasher)
	}

	engine, err := goRotate.New().
		WithConfig(cfg.Engine()).
		WithRefreshStore(store).
		WithIdentityProvider(identity).
		WithAuditSink(auditSink(cfg, d, logger)).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	closeMetrics, err := exportOTelMetrics(ctx, cfg.OTLPEndpoint, engine, logger)
	if err != nil {
		return err
	}
	defer closeMetrics()

	api, err := httpapi.New(engine, httpapi.Options{
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		CookieSecure:   cfg.CookieSecure,
		CookieDomain:   cfg.CookieDomain,
		Metrics:        promexport.Handler(promexport.NewCollector(engine)),
		Wrap:           telemetry.Middleware(serviceName),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("store", cfg.Store).Msg("starting " + serviceName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown server")
	}
	return nil
}

// openStore selects the refresh record backend. A configured DB_DSN is
// opened regardless so identities can live in postgres.
func openStore(ctx context.Context, cfg config.Config, d *deps, logger zerolog.Logger) (refresh.Store, error) {
	if cfg.DBDSN != "" {
		db, err := database.Open(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		d.db = db
		d.closers = append(d.closers, func() {
			if err := db.Close(); err != nil {
				logger.Error().Err(err).Msg("close database")
			}
		})
	}

	switch strings.ToLower(cfg.Store) {
	case config.StoreRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		d.closers = append(d.closers, func() { _ = client.Close() })
		store := redisstore.New(client, cfg.RedisPrefix)
		if _, err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return store, nil
	case config.StorePostgres:
		return pgstore.New(d.db), nil
	default:
		return refresh.NewMemoryStore(), nil
	}
}

func auditSink(cfg config.Config, d *deps, logger zerolog.Logger) goRotate.AuditSink {
	if cfg.NATSURL == "" {
		return goRotate.NewLogSink(logger)
	}
	conn, err := audit.ConnectNATS(cfg.NATSURL, serviceName)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, auditing to log")
		return goRotate.NewLogSink(logger)
	}
	d.closers = append(d.closers, conn.Close)
	return goRotate.MultiSink{
		goRotate.NewLogSink(logger),
		goRotate.NewNATSSink(conn, cfg.NATSSubject, func(err error) {
			logger.Warn().Err(err).Msg("publish audit event")
		}),
	}
}

// exportOTelMetrics pushes engine counters over OTLP when a collector is
// configured. The returned func unregisters the callback and flushes.
func exportOTelMetrics(ctx context.Context, endpoint string, engine *goRotate.Engine, logger zerolog.Logger) (func(), error) {
	mp, err := telemetry.InitMetrics(ctx, serviceName, endpoint)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	if mp == nil {
		return func() {}, nil
	}

	exporter, err := otelexport.NewExporter(mp.Meter(serviceName), engine)
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, fmt.Errorf("register otel metrics: %w", err)
	}

	return func() {
		if err := exporter.Close(); err != nil {
			logger.Error().Err(err).Msg("unregister otel metrics")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown metrics")
		}
	}, nil
}
