package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"consentd/internal/consent/metrics"
	"consentd/internal/consent/models"
	"consentd/internal/consent/store"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/middleware/requesttime"
)

// Store defines the persistence interface for one visitor's consent record.
// Error Contract:
// - Load reports absence with false and never fails
// - Save returns *store.StorageError when the slot rejects the write
// - Clear never fails from the caller's point of view
type Store interface {
	Scope() string
	Load(ctx context.Context) (*models.Record, bool)
	Save(ctx context.Context, record *models.Record) error
	Clear(ctx context.Context)
}

type Option func(*Manager)

// Manager owns the consent decision of one visitor-storage-scope: it answers
// category checks, builds replacement records and persists them.
type Manager struct {
	store   Store
	shadows *ShadowCache
	tx      ScopeTx
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func(ctx context.Context) time.Time
	newID   func() string
}

func NewManager(st Store, opts ...Option) *Manager {
	m := &Manager{
		store:   st,
		shadows: NewShadowCache(0),
		tracer:  otel.Tracer("consentd/consent/service"),
		now:     requesttime.Now,
		newID:   NewConsentID,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tx == nil {
		m.tx = NewScopeTx(nil, m.metrics)
	}
	return m
}

// WithMetrics sets the metrics instance for the manager
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithLogger sets the logger instance for the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(mgr *Manager) {
		mgr.logger = logger
	}
}

// WithShadows shares a shadow cache between managers of the same process so a
// failed write is remembered for the rest of the visitor's session.
func WithShadows(c *ShadowCache) Option {
	return func(mgr *Manager) {
		if c != nil {
			mgr.shadows = c
		}
	}
}

// WithScopeTx sets the write serialization boundary.
func WithScopeTx(tx ScopeTx) Option {
	return func(mgr *Manager) {
		mgr.tx = tx
	}
}

// WithClock replaces the request-scoped clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(mgr *Manager) {
		if now != nil {
			mgr.now = func(context.Context) time.Time { return now() }
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(mgr *Manager) {
		if gen != nil {
			mgr.newID = gen
		}
	}
}

// NewConsentID returns a fresh consent identifier.
func NewConsentID() string {
	return "consent_" + uuid.NewString()
}

// Scope returns the visitor-storage-scope this manager serves.
func (m *Manager) Scope() string {
	return m.store.Scope()
}

// GetCurrent returns the effective record: the session shadow when a previous
// write failed, otherwise whatever the store holds.
func (m *Manager) GetCurrent(ctx context.Context) (*models.Record, bool) {
	rec, _, ok := m.Lookup(ctx)
	return rec, ok
}

// Lookup is GetCurrent that also reports whether the record is stored. A
// session shadow comes back with persisted false.
func (m *Manager) Lookup(ctx context.Context) (rec *models.Record, persisted bool, ok bool) {
	if rec, ok := m.shadows.Get(m.store.Scope()); ok {
		return rec, false, true
	}
	rec, ok = m.store.Load(ctx)
	return rec, true, ok
}

// IsCategoryAllowed reports whether a consumer of category may run. Without a
// record only essential is allowed.
func (m *Manager) IsCategoryAllowed(ctx context.Context, category models.Category) bool {
	var allowed bool
	if category == models.CategoryEssential {
		allowed = true
	} else if rec, ok := m.GetCurrent(ctx); ok {
		allowed = rec.Allows(category)
	}
	if m.metrics != nil {
		m.metrics.IncrementCategoryCheck(category.String(), allowed)
	}
	return allowed
}

// BuildRecord derives the replacement record for a decision. The consent ID
// of the current record is carried over; it is re-read here, never cached.
func (m *Manager) BuildRecord(ctx context.Context, prefs models.Preferences, source models.Source, region models.Region) (*models.Record, error) {
	consentID := ""
	if prior, ok := m.GetCurrent(ctx); ok {
		consentID = prior.ConsentID
	}
	if consentID == "" {
		consentID = m.newID()
	}
	return models.NewRecord(consentID, prefs, source, m.now(ctx), region)
}

// Persist writes record to the store. When the slot rejects it, the record
// becomes the session shadow and a CodeStorageWrite error is returned; callers
// should treat that as a warning.
func (m *Manager) Persist(ctx context.Context, record *models.Record) error {
	if record == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "consent record required")
	}
	ctx, span := m.tracer.Start(ctx, "consent.persist",
		trace.WithAttributes(
			attribute.String("consent.scope", m.store.Scope()),
			attribute.String("consent.source", string(record.Source)),
		))
	defer span.End()

	scope := m.store.Scope()
	if err := m.store.Save(ctx, record); err != nil {
		m.shadows.Put(scope, record)
		span.RecordError(err)
		span.SetStatus(codes.Error, "slot write rejected")
		kind := string(store.FailureWrite)
		if se, ok := asStorageError(err); ok {
			kind = string(se.Kind)
		}
		if m.metrics != nil {
			m.metrics.IncrementStorageWriteFailure(kind)
		}
		if m.logger != nil {
			m.logger.WarnContext(ctx, "consent decision kept in memory only",
				"scope", scope,
				"consent_id", record.ConsentID,
				"kind", kind,
				"error", err,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeStorageWrite, "consent decision could not be remembered")
	}
	m.shadows.Drop(scope)
	return nil
}

// Decide builds and persists a decision under the scope's write lock. The
// returned record is non-nil whenever the decision took effect, including when
// err carries CodeStorageWrite.
func (m *Manager) Decide(ctx context.Context, prefs models.Preferences, source models.Source, region models.Region) (*models.Record, error) {
	return m.Update(ctx, prefs, func(models.Preferences) models.Preferences { return prefs }, source, region)
}

// Update re-reads the current preferences under the scope's write lock and
// applies fn to them before deciding. Without a record fn receives base.
func (m *Manager) Update(ctx context.Context, base models.Preferences, fn func(models.Preferences) models.Preferences, source models.Source, region models.Region) (*models.Record, error) {
	var record *models.Record
	var persistErr error
	err := m.tx.RunInScope(ctx, m.store.Scope(), func() error {
		current := base
		if prior, ok := m.GetCurrent(ctx); ok {
			current = prior.Preferences
		}
		rec, err := m.BuildRecord(ctx, fn(current), source, region)
		if err != nil {
			return err
		}
		record = rec
		persistErr = m.Persist(ctx, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.IncrementDecision(string(source), decisionAction(record.Preferences))
	}
	return record, persistErr
}

// Clear removes the record and any session shadow. Used for retention expiry
// and explicit "clear site data" requests. When the scope lock cannot be
// taken nothing is removed and the lock error is returned.
func (m *Manager) Clear(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "consent.clear",
		trace.WithAttributes(attribute.String("consent.scope", m.store.Scope())))
	defer span.End()

	scope := m.store.Scope()
	err := m.tx.RunInScope(context.WithoutCancel(ctx), scope, func() error {
		m.store.Clear(ctx)
		m.shadows.Drop(scope)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scope busy")
		if m.logger != nil {
			m.logger.WarnContext(ctx, "consent record not cleared", "scope", scope, "error", err)
		}
		return err
	}
	if m.metrics != nil {
		m.metrics.IncrementRecordsCleared()
	}
	return nil
}

// AcceptAllPreferences grants every category.
func (m *Manager) AcceptAllPreferences() models.Preferences {
	return models.AcceptAll()
}

// RejectAllPreferences grants only essential.
func (m *Manager) RejectAllPreferences() models.Preferences {
	return models.RejectAll()
}

// IsNotRemembered reports whether err only means the decision could not be
// written to the slot.
func IsNotRemembered(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeStorageWrite)
}

func decisionAction(p models.Preferences) string {
	switch p.Normalize() {
	case models.AcceptAll():
		return "accept_all"
	case models.RejectAll():
		return "reject_all"
	default:
		return "custom"
	}
}
