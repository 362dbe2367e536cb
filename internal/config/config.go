// Package config loads the rotord service configuration from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	goRotate "github.com/MrEthical07/goRotate"
)

// Store backends accepted by STORE.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds runtime configuration for the rotord service.
type Config struct {
	Addr string `env:"ADDR,default=:8080"`

	AccessSecret  string        `env:"JWT_ACCESS_SECRET_KEY,required"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET_KEY,required"`
	AccessTTL     time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRATION_TIME,default=10m"`
	RefreshTTL    time.Duration `env:"JWT_REFRESH_TOKEN_EXPIRATION_TIME,default=48h"`
	Issuer        string        `env:"JWT_ISSUER"`
	RevokeOnReuse bool          `env:"REVOKE_ON_REUSE,default=false"`

	Store       string `env:"STORE,default=memory"`
	RedisAddr   string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPrefix string `env:"REDIS_PREFIX,default=rt"`
	DBDSN       string `env:"DB_DSN"`

	NATSURL      string `env:"NATS_URL"`
	NATSSubject  string `env:"NATS_SUBJECT,default=gorotate.audit"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	AllowedOrigins    []string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`
	CookieSecure      bool     `env:"COOKIE_SECURE,default=false"`
	CookieDomain      string   `env:"COOKIE_DOMAIN"`
	PasswordAlgorithm string   `env:"PASSWORD_ALGORITHM,default=bcrypt"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints not expressible in tags.
func (c Config) Validate() error {
	switch strings.ToLower(c.Store) {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR required when STORE=redis")
		}
	case StorePostgres:
		if c.DBDSN == "" {
			return errors.New("DB_DSN required when STORE=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORE %q", c.Store)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// Engine maps the service settings onto the library configuration.
func (c Config) Engine() goRotate.Config {
	cfg := goRotate.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(c.AccessSecret)
	cfg.JWT.RefreshSecret = []byte(c.RefreshSecret)
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.JWT.Issuer = c.Issuer
	cfg.Refresh.RevokeOnReuse = c.RevokeOnReuse
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Audit.Enabled = true
	return cfg
}
