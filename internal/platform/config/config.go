package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"consentd/internal/consent/store"
	"consentd/pkg/secrets"
)

// DevScopeSecret signs scope cookies when no secret is configured. It is only
// fit for local development.
const DevScopeSecret = "dev-scope-secret-change-in-production"

// Server captures consentd configuration. Every field is read from a
// CONSENTD_* environment variable.
type Server struct {
	Addr        string `env:"CONSENTD_ADDR" envDefault:":8080"`
	Environment string `env:"CONSENTD_ENV" envDefault:"development"`

	// At most one slot backend may be configured. None keeps slots in memory.
	DBPath       string `env:"CONSENTD_DB_PATH"`
	RedisURL     string `env:"CONSENTD_REDIS_URL"`
	DatabaseURL  string `env:"CONSENTD_DATABASE_URL"`
	SlotMaxBytes int    `env:"CONSENTD_SLOT_MAX_BYTES" envDefault:"4096"`

	ScopeSecret  string        `env:"CONSENTD_SCOPE_SECRET"`
	ScopeTTL     time.Duration `env:"CONSENTD_SCOPE_TTL" envDefault:"8760h"`
	SecureCookie bool          `env:"CONSENTD_SECURE_COOKIE" envDefault:"true"`

	// ShadowTTL bounds how long an unsaved decision is served for its scope.
	ShadowTTL      time.Duration `env:"CONSENTD_SHADOW_TTL" envDefault:"30m"`
	VisitorIdleTTL time.Duration `env:"CONSENTD_VISITOR_IDLE_TTL" envDefault:"30m"`
	SweepInterval  time.Duration `env:"CONSENTD_SWEEP_INTERVAL" envDefault:"1m"`

	CountryHeader     string `env:"CONSENTD_COUNTRY_HEADER" envDefault:"CF-IPCountry"`
	SubdivisionHeader string `env:"CONSENTD_SUBDIVISION_HEADER" envDefault:"CF-Region-Code"`
	StrictUSCA        bool   `env:"CONSENTD_STRICT_US_CA"`

	IntegrationsFile string   `env:"CONSENTD_INTEGRATIONS_FILE" envDefault:"configs/integrations.yaml"`
	TrustedProxies   []string `env:"CONSENTD_TRUSTED_PROXIES" envSeparator:","`
	BotMarkers       []string `env:"CONSENTD_BOT_MARKERS" envSeparator:","`

	MaxBodyBytes    int64         `env:"CONSENTD_MAX_BODY_BYTES" envDefault:"4096"`
	ShutdownTimeout time.Duration `env:"CONSENTD_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"CONSENTD_LOG_LEVEL" envDefault:"info"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.ScopeSecret == "" {
		cfg.ScopeSecret = DevScopeSecret
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Server) Validate() error {
	var errs []error
	if c.ScopeTTL <= 0 {
		errs = append(errs, errors.New("CONSENTD_SCOPE_TTL must be positive"))
	}
	if err := c.Slots().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("CONSENTD_DB_PATH, CONSENTD_REDIS_URL, CONSENTD_DATABASE_URL: %w", err))
	}
	if c.SlotMaxBytes < 0 {
		errs = append(errs, errors.New("CONSENTD_SLOT_MAX_BYTES must not be negative"))
	}
	if c.ShadowTTL < 0 {
		errs = append(errs, errors.New("CONSENTD_SHADOW_TTL must not be negative"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("CONSENTD_SWEEP_INTERVAL must be positive"))
	}
	if c.Environment != "development" && c.UsesDevSecret() {
		errs = append(errs, errors.New("CONSENTD_SCOPE_SECRET is required outside development"))
	} else if err := secrets.CheckSigningKey(c.ScopeSecret); err != nil {
		errs = append(errs, fmt.Errorf("CONSENTD_SCOPE_SECRET: %w", err))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Slots returns the slot backend selection. Redis slots expire together with
// the scope cookie that addresses them.
func (c Server) Slots() store.BackendConfig {
	return store.BackendConfig{
		DBPath:        c.DBPath,
		RedisURL:      c.RedisURL,
		DatabaseURL:   c.DatabaseURL,
		MaxValueBytes: c.SlotMaxBytes,
		RetentionTTL:  c.ScopeTTL,
	}
}

// UsesDevSecret reports whether scope cookies are signed with DevScopeSecret.
func (c Server) UsesDevSecret() bool {
	return c.ScopeSecret == DevScopeSecret
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("CONSENTD_LOG_LEVEL: unknown level %q", raw)
	}
}
