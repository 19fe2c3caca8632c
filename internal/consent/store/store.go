package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"consentd/internal/consent/metrics"
	"consentd/internal/consent/models"
	"consentd/internal/sentinel"
)

// SlotKey is the fixed, versioned key of the consent slot. Values written
// under an older key are never read, which forces re-consent instead of
// misinterpreting an old shape.
const SlotKey = "consent.v1"

// Slots is a durable key/value backend partitioned by visitor-storage-scope.
//
// Error Contract:
//   - Get returns sentinel.ErrNotFound when nothing is stored
//   - Set returns sentinel.ErrQuotaExceeded when the value does not fit
//   - Any method may return sentinel.ErrUnavailable when the backend is disabled
//   - Delete succeeds when nothing is stored
type Slots interface {
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Set(ctx context.Context, scope, key string, value []byte) error
	Delete(ctx context.Context, scope, key string) error
}

// FailureKind classifies a rejected write.
type FailureKind string

const (
	FailureQuota       FailureKind = "quota"
	FailureUnavailable FailureKind = "unavailable"
	FailureWrite       FailureKind = "write"
)

// StorageError reports that the slot rejected a write. It is never fatal.
type StorageError struct {
	Kind  FailureKind
	Scope string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("consent slot write failed (%s): %v", e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Store serializes one visitor's consent record into its slot.
type Store struct {
	slots   Slots
	scope   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Store)

// WithLogger sets the logger used for discarded values and failed clears.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics instance for the store.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New binds a Store to one visitor-storage-scope of slots.
func New(slots Slots, scope string, opts ...Option) *Store {
	s := &Store{slots: slots, scope: scope}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scope returns the visitor-storage-scope the store is bound to.
func (s *Store) Scope() string {
	return s.scope
}

// Load returns the stored record. A missing, unreadable, or schema-invalid
// value is reported as absent; Load never fails.
func (s *Store) Load(ctx context.Context) (*models.Record, bool) {
	defer s.observe("load", time.Now())

	raw, err := s.slots.Get(ctx, s.scope, SlotKey)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.log(ctx, slog.LevelWarn, "consent slot read failed", "error", err)
		}
		return nil, false
	}

	record, err := decodeRecord(raw)
	if err != nil {
		s.log(ctx, slog.LevelDebug, "discarding invalid consent value", "error", err)
		if s.metrics != nil {
			s.metrics.IncrementSchemaInvalid()
		}
		return nil, false
	}
	return record, true
}

// Save overwrites the slot. Failures are returned as *StorageError.
func (s *Store) Save(ctx context.Context, record *models.Record) error {
	defer s.observe("save", time.Now())

	if record == nil {
		return &StorageError{Kind: FailureWrite, Scope: s.scope, Err: sentinel.ErrInvalidInput}
	}
	raw, err := encodeRecord(record)
	if err != nil {
		return &StorageError{Kind: FailureWrite, Scope: s.scope, Err: err}
	}
	if err := s.slots.Set(ctx, s.scope, SlotKey, raw); err != nil {
		return &StorageError{Kind: classify(err), Scope: s.scope, Err: err}
	}
	return nil
}

// Clear removes the slot. It always succeeds from the caller's point of view;
// backend failures are logged.
func (s *Store) Clear(ctx context.Context) {
	defer s.observe("clear", time.Now())

	if err := s.slots.Delete(ctx, s.scope, SlotKey); err != nil {
		s.log(ctx, slog.LevelWarn, "consent slot clear failed", "error", err)
	}
}

func classify(err error) FailureKind {
	switch {
	case errors.Is(err, sentinel.ErrQuotaExceeded):
		return FailureQuota
	case errors.Is(err, sentinel.ErrUnavailable):
		return FailureUnavailable
	default:
		return FailureWrite
	}
}

func (s *Store) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveStoreOperationLatency(op, time.Since(start).Seconds())
	}
}

func (s *Store) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Log(ctx, level, msg, append([]any{"scope", s.scope}, args...)...)
}
