// Package binding exposes a visitor's consent decision to the banner and
// preferences surfaces as a small state machine, and broadcasts every change
// to gated consumers.
package binding

import (
	"context"
	"log/slog"
	"sync"

	"consentd/internal/consent/metrics"
	"consentd/internal/consent/models"
	"consentd/internal/consent/policy"
	"consentd/internal/platform/eventbus"
	dErrors "consentd/pkg/domain-errors"
)

// Phase is the lifecycle position of a Binding.
type Phase string

const (
	// PhaseInitial is the deterministic pre-hydration state. Server-rendered
	// output and the first client render agree on it.
	PhaseInitial          Phase = "initial"
	PhaseHydratedEmpty    Phase = "hydrated_empty"
	PhaseHydratedExisting Phase = "hydrated_existing"
	PhaseUpdated          Phase = "updated"
)

// State is a snapshot of the binding.
type State struct {
	Phase       Phase
	HasConsent  bool
	Preferences models.Preferences
	Record      *models.Record
	// Persisted is false after a decision the slot refused to store.
	Persisted bool
}

// InitialState grants essential only and reports no consent.
func InitialState() State {
	return State{
		Phase:       PhaseInitial,
		Preferences: models.RejectAll(),
		Persisted:   true,
	}
}

// Manager is the decision API the binding drives.
type Manager interface {
	Scope() string
	Lookup(ctx context.Context) (rec *models.Record, persisted bool, ok bool)
	Decide(ctx context.Context, prefs models.Preferences, source models.Source, region models.Region) (*models.Record, error)
	Update(ctx context.Context, base models.Preferences, fn func(models.Preferences) models.Preferences, source models.Source, region models.Region) (*models.Record, error)
	Clear(ctx context.Context) error
}

// Bus is the broadcast channel changes are published on.
type Bus interface {
	Publish(ctx context.Context, event eventbus.Event) eventbus.Event
	Subscribe(eventType eventbus.EventType, handler eventbus.Handler) func()
}

// ChangeHandler receives consent changes for the binding's scope.
type ChangeHandler func(ctx context.Context, change models.Change)

type Option func(*Binding)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Binding) {
		b.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Binding) {
		b.metrics = m
	}
}

// Binding is shared by every surface of one visitor. Mutations are serialized
// by mu and publish while still holding it, so subscribers observe changes in
// write order. Handlers may read State but must not mutate the binding.
type Binding struct {
	manager Manager
	bus     Bus
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu sync.Mutex

	stateMu sync.RWMutex
	state   State
}

func New(manager Manager, bus Bus, opts ...Option) *Binding {
	b := &Binding{
		manager: manager,
		bus:     bus,
		state:   InitialState(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current snapshot.
func (b *Binding) State() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return cloneState(b.state)
}

// Hydrate re-reads the Manager and moves the state to what it holds now, so
// decisions written by another process or expired records are picked up. The
// record this binding already holds keeps its phase. When ctx ends during the
// read the state is returned unchanged.
func (b *Binding) Hydrate(ctx context.Context) State {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, persisted, ok := b.manager.Lookup(ctx)
	if ctx.Err() != nil {
		return b.State()
	}

	prior := b.State()
	next := State{Phase: PhaseHydratedEmpty, Preferences: models.RejectAll(), Persisted: true}
	if ok {
		if prior.Record != nil && prior.Persisted == persisted && prior.Record.Equal(*rec) {
			return prior
		}
		next = State{
			Phase:       PhaseHydratedExisting,
			HasConsent:  true,
			Preferences: rec.Preferences,
			Record:      rec,
			Persisted:   persisted,
		}
	}
	b.setState(next)
	return cloneState(next)
}

// AcceptAll grants every category from the banner.
func (b *Binding) AcceptAll(ctx context.Context, region models.Region) (State, error) {
	return b.decide(ctx, models.AcceptAll(), models.SourceBanner, region)
}

// RejectAll grants essential only from the banner.
func (b *Binding) RejectAll(ctx context.Context, region models.Region) (State, error) {
	return b.decide(ctx, models.RejectAll(), models.SourceBanner, region)
}

// SavePreferences stores a fine-grained choice from the preferences panel.
func (b *Binding) SavePreferences(ctx context.Context, prefs models.Preferences, region models.Region) (State, error) {
	return b.decide(ctx, prefs, models.SourcePreferences, region)
}

// DoNotSell applies the opt-out to the current preferences: marketing is
// rejected, and analytics as well when strict. Without a record the reject-all
// preferences are the base.
func (b *Binding) DoNotSell(ctx context.Context, region models.Region, strict bool) (State, error) {
	return b.mutate(ctx, models.SourceBanner, region, func() (*models.Record, error) {
		return b.manager.Update(ctx, models.RejectAll(), func(current models.Preferences) models.Preferences {
			return policy.DoNotSellPreferences(current, strict)
		}, models.SourceBanner, region)
	})
}

// Reset clears the stored record and broadcasts the reject-all preferences so
// consumers deactivate. When the record cannot be cleared the state is left
// alone and nothing is broadcast.
func (b *Binding) Reset(ctx context.Context) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prior := b.State()
	if err := b.manager.Clear(ctx); err != nil {
		return prior, err
	}

	next := State{Phase: PhaseHydratedEmpty, Preferences: models.RejectAll(), Persisted: true}
	b.setState(next)

	change := models.Change{
		Scope:       b.manager.Scope(),
		Preferences: next.Preferences,
		Persisted:   true,
		Cleared:     true,
	}
	if prior.Record != nil {
		change.ConsentID = prior.Record.ConsentID
	}
	b.publish(ctx, change)
	return cloneState(next), nil
}

// Subscribe registers handler for changes to this binding's scope. The
// returned function unsubscribes.
func (b *Binding) Subscribe(handler ChangeHandler) func() {
	scope := b.manager.Scope()
	return b.bus.Subscribe(models.EventConsentChanged, func(ctx context.Context, event eventbus.Event) {
		change, ok := event.Payload.(models.Change)
		if !ok || change.Scope != scope {
			return
		}
		handler(ctx, change)
	})
}

func (b *Binding) decide(ctx context.Context, prefs models.Preferences, source models.Source, region models.Region) (State, error) {
	return b.mutate(ctx, source, region, func() (*models.Record, error) {
		return b.manager.Decide(ctx, prefs, source, region)
	})
}

// mutate runs one decision. A nil record means nothing took effect: state is
// unchanged and nothing is broadcast. A record with a CodeStorageWrite error
// took effect for this session only.
func (b *Binding) mutate(ctx context.Context, source models.Source, region models.Region, run func() (*models.Record, error)) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := run()
	if rec == nil {
		if err == nil {
			err = dErrors.New(dErrors.CodeInternal, "consent decision produced no record")
		}
		return b.State(), err
	}

	persisted := err == nil
	next := State{
		Phase:       PhaseUpdated,
		HasConsent:  true,
		Preferences: rec.Preferences,
		Record:      rec,
		Persisted:   persisted,
	}
	b.setState(next)

	if !persisted && b.logger != nil {
		b.logger.WarnContext(ctx, "consent decision not remembered; banner will show again on reload",
			"scope", b.manager.Scope(),
			"source", string(source),
			"error", err,
		)
	}

	b.publish(ctx, models.Change{
		Scope:       b.manager.Scope(),
		ConsentID:   rec.ConsentID,
		Preferences: rec.Preferences,
		Source:      source,
		Region:      region,
		Persisted:   persisted,
		At:          rec.Timestamp,
	})
	return cloneState(next), err
}

func (b *Binding) setState(next State) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.state = next
}

func (b *Binding) publish(ctx context.Context, change models.Change) {
	b.bus.Publish(ctx, eventbus.Event{
		Type:    models.EventConsentChanged,
		At:      change.At,
		Payload: change,
	})
	if b.metrics != nil {
		b.metrics.IncrementBroadcasts()
	}
}

// IsNotRemembered reports whether err only means the decision was kept in
// memory instead of the slot.
func IsNotRemembered(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeStorageWrite)
}

func cloneState(s State) State {
	if s.Record != nil {
		rec := *s.Record
		s.Record = &rec
	}
	return s
}
