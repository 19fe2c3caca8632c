package service

import (
	"log/slog"
	"time"

	"consentd/internal/consent/metrics"
	"consentd/internal/consent/store"
	platformsync "consentd/pkg/platform/sync"
)

// Sessions hands out Managers bound to a visitor-storage-scope. Managers from
// the same Sessions share one shadow cache and one set of scope locks, so a
// failed write stays visible to later requests of the same visitor until the
// shadow expires.
type Sessions struct {
	slots   store.Slots
	shadows *ShadowCache
	tx      ScopeTx
	logger  *slog.Logger
	metrics *metrics.Metrics
	opts    []Option
}

// NewSessions creates a Manager factory over slots. shadowTTL bounds how long
// an unpersisted decision is remembered; zero keeps it for the process life.
func NewSessions(slots store.Slots, shadowTTL time.Duration, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Sessions {
	return &Sessions{
		slots:   slots,
		shadows: NewShadowCache(shadowTTL),
		tx:      NewScopeTx(platformsync.NewShardedMutex(), m),
		logger:  logger,
		metrics: m,
		opts:    opts,
	}
}

// Manager returns a Manager for scope.
func (s *Sessions) Manager(scope string) *Manager {
	st := store.New(s.slots, scope, store.WithLogger(s.logger), store.WithMetrics(s.metrics))
	opts := append([]Option{
		WithLogger(s.logger),
		WithMetrics(s.metrics),
		WithShadows(s.shadows),
		WithScopeTx(s.tx),
	}, s.opts...)
	return NewManager(st, opts...)
}

// Shadows exposes the shared shadow cache for sweeping.
func (s *Sessions) Shadows() *ShadowCache {
	return s.shadows
}
