package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	_ "modernc.org/sqlite"

	"consentd/internal/sentinel"
)

// SQLiteSlots persists slot values in a SQLite database.
type SQLiteSlots struct {
	db            *sql.DB
	maxValueBytes int
}

// NewSQLiteSlots opens (or creates) a SQLite database at dbPath and runs the
// schema migration. A positive maxValueBytes acts as the per-slot quota.
func NewSQLiteSlots(dbPath string, maxValueBytes int) (*SQLiteSlots, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open consent slot db: %w", err)
	}
	// WAL mode for concurrent readers while a visitor writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate consent slot db: %w", err)
	}
	return &SQLiteSlots{db: db, maxValueBytes: maxValueBytes}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS consent_slots (
			scope      TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (scope, key)
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteSlots) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable. Used by the readiness probe.
func (s *SQLiteSlots) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RegisterMetrics exports database/sql pool statistics.
func (s *SQLiteSlots) RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(collectors.NewDBStatsCollector(s.db, "consent_slots"))
}

func (s *SQLiteSlots) Get(ctx context.Context, scope, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM consent_slots WHERE scope = ? AND key = ?", scope, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read consent slot: %w: %w", sentinel.ErrUnavailable, err)
	}
	return value, nil
}

func (s *SQLiteSlots) Set(ctx context.Context, scope, key string, value []byte) error {
	if s.maxValueBytes > 0 && len(value) > s.maxValueBytes {
		return sentinel.ErrQuotaExceeded
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consent_slots (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		scope, key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write consent slot: %w", err)
	}
	return nil
}

func (s *SQLiteSlots) Delete(ctx context.Context, scope, key string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM consent_slots WHERE scope = ? AND key = ?", scope, key,
	); err != nil {
		return fmt.Errorf("delete consent slot: %w", err)
	}
	return nil
}
