package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"consentd/internal/sentinel"
)

// PostgresConfig configures PostgresSlots. Zero pool values use the defaults
// below.
type PostgresConfig struct {
	URL             string
	MaxValueBytes   int
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c PostgresConfig) withDefaults() PostgresConfig {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	return c
}

// PostgresSlots persists slot values in a consent_slots table shared by every
// consentd replica.
type PostgresSlots struct {
	db            *sql.DB
	maxValueBytes int
}

// NewPostgresSlots opens a pool on cfg.URL, checks connectivity and creates
// the slot table when missing.
func NewPostgresSlots(ctx context.Context, cfg PostgresConfig) (*PostgresSlots, error) {
	cfg = cfg.withDefaults()
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migratePostgres(pingCtx, db); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("migrate consent slot table: %w", err)
	}
	return &PostgresSlots{db: db, maxValueBytes: cfg.MaxValueBytes}, nil
}

func migratePostgres(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS consent_slots (
			scope      TEXT        NOT NULL,
			key        TEXT        NOT NULL,
			value      BYTEA       NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (scope, key)
		)
	`)
	return err
}

func (s *PostgresSlots) Get(ctx context.Context, scope, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM consent_slots WHERE scope = $1 AND key = $2", scope, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read consent slot: %w: %w", sentinel.ErrUnavailable, err)
	}
	return value, nil
}

func (s *PostgresSlots) Set(ctx context.Context, scope, key string, value []byte) error {
	if s.maxValueBytes > 0 && len(value) > s.maxValueBytes {
		return sentinel.ErrQuotaExceeded
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consent_slots (scope, key, value, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (scope, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		scope, key, value,
	)
	if err != nil {
		return fmt.Errorf("write consent slot: %w", classifyPostgres(err))
	}
	return nil
}

func (s *PostgresSlots) Delete(ctx context.Context, scope, key string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM consent_slots WHERE scope = $1 AND key = $2", scope, key,
	); err != nil {
		return fmt.Errorf("delete consent slot: %w", classifyPostgres(err))
	}
	return nil
}

// classifyPostgres maps server-side limit errors to quota and anything that
// never reached the server to unavailable.
func classifyPostgres(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 53 is insufficient resources, class 54 program limit exceeded.
		if strings.HasPrefix(pgErr.Code, "53") || strings.HasPrefix(pgErr.Code, "54") {
			return fmt.Errorf("%w: %w", sentinel.ErrQuotaExceeded, err)
		}
		return err
	}
	return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
}

func (s *PostgresSlots) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresSlots) Close() error {
	return s.db.Close()
}

// RegisterMetrics exports database/sql pool statistics.
func (s *PostgresSlots) RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(collectors.NewDBStatsCollector(s.db, "consent_slots"))
}
