package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// BackendConfig selects a slot backend. At most one of DBPath, RedisURL and
// DatabaseURL may be set; none keeps slots in memory.
type BackendConfig struct {
	DBPath        string
	RedisURL      string
	DatabaseURL   string
	MaxValueBytes int
	// RetentionTTL expires Redis slots after their last write.
	RetentionTTL time.Duration
}

// Name reports the backend cfg selects.
func (c BackendConfig) Name() string {
	switch {
	case c.DatabaseURL != "":
		return BackendPostgres
	case c.RedisURL != "":
		return BackendRedis
	case c.DBPath != "":
		return BackendSQLite
	default:
		return BackendMemory
	}
}

// Validate rejects configurations naming more than one durable backend.
func (c BackendConfig) Validate() error {
	set := 0
	for _, v := range []string{c.DBPath, c.RedisURL, c.DatabaseURL} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return errors.New("configure at most one slot backend")
	}
	return nil
}

// Backend is an opened slot backend plus its lifecycle hooks.
type Backend struct {
	Name  string
	Slots Slots
}

type pinger interface {
	Ping(ctx context.Context) error
}

type metricsRegistrar interface {
	RegisterMetrics(reg prometheus.Registerer) error
}

// Open connects the backend cfg selects.
func Open(ctx context.Context, cfg BackendConfig) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		slots Slots
		err   error
	)
	switch cfg.Name() {
	case BackendPostgres:
		slots, err = NewPostgresSlots(ctx, PostgresConfig{URL: cfg.DatabaseURL, MaxValueBytes: cfg.MaxValueBytes})
	case BackendRedis:
		slots, err = NewRedisSlots(ctx, RedisConfig{URL: cfg.RedisURL, MaxValueBytes: cfg.MaxValueBytes, TTL: cfg.RetentionTTL})
	case BackendSQLite:
		slots, err = NewSQLiteSlots(cfg.DBPath, cfg.MaxValueBytes)
	default:
		slots = NewMemorySlots(cfg.MaxValueBytes)
	}
	if err != nil {
		return nil, err
	}
	return &Backend{Name: cfg.Name(), Slots: slots}, nil
}

// Durable reports whether decisions survive a restart.
func (b *Backend) Durable() bool {
	return b.Name != BackendMemory
}

// Ping probes the backend. Backends without a connection always succeed.
func (b *Backend) Ping(ctx context.Context) error {
	if p, ok := b.Slots.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// RegisterMetrics exports connection pool metrics when the backend has a pool.
func (b *Backend) RegisterMetrics(reg prometheus.Registerer) error {
	if r, ok := b.Slots.(metricsRegistrar); ok {
		return r.RegisterMetrics(reg)
	}
	return nil
}

func (b *Backend) Close() error {
	if c, ok := b.Slots.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
