// Package visitor serves one consent binding per visitor-storage-scope. Every
// request of the same visitor drives the same binding, so surfaces opened in
// parallel see decisions in write order and gated integrations follow them.
// Reads always go back to the Manager; the binding and gate only order this
// process's requests and are never a read cache.
package visitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"consentd/internal/consent/binding"
	"consentd/internal/consent/gate"
	"consentd/internal/consent/metrics"
	"consentd/internal/consent/models"
	"consentd/internal/consent/policy"
	"consentd/internal/consent/service"
	dErrors "consentd/pkg/domain-errors"
)

// View is what a surface renders for one visitor.
type View struct {
	State      binding.State
	Banner     policy.Banner
	ShowBanner bool
	Active     []gate.Integration
}

// defaultIdleTTL bounds how long an unused binding stays subscribed.
const defaultIdleTTL = 30 * time.Minute

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithIdleTTL sets how long a binding survives without requests.
func WithIdleTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.idleTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// entry serializes one scope's requests in this process. mu is held across
// a refresh or a mutation so the gate is never reconciled out of order.
type entry struct {
	mu       sync.Mutex
	binding  *binding.Binding
	manager  *service.Manager
	gate     *gate.Gate
	stop     func()
	lastSeen time.Time
}

// refresh re-reads the Manager and reconciles the gate with it. mu must be
// held.
func (e *entry) refresh(ctx context.Context) binding.State {
	state := e.binding.Hydrate(ctx)
	e.gate.Apply(ctx, state.Preferences)
	return state
}

// Service is the consent API of the HTTP surface.
type Service struct {
	sessions *service.Sessions
	bus      binding.Bus
	catalog  *gate.Catalog
	policy   *policy.Policy
	logger   *slog.Logger
	metrics  *metrics.Metrics
	idleTTL  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

func New(sessions *service.Sessions, bus binding.Bus, catalog *gate.Catalog, pol *policy.Policy, opts ...Option) *Service {
	s := &Service{
		sessions: sessions,
		bus:      bus,
		catalog:  catalog,
		policy:   pol,
		idleTTL:  defaultIdleTTL,
		now:      time.Now,
		entries:  make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// State returns the visitor's view on a page load. An empty scope, as served
// to crawlers, always gets the initial state. A decision the slot never
// stored still gates this session but brings the banner back.
func (s *Service) State(ctx context.Context, scope string, region models.Region) View {
	if scope == "" {
		return s.initialView(region)
	}
	e := s.lookup(scope)
	e.mu.Lock()
	defer e.mu.Unlock()

	view := s.view(e.refresh(ctx), e.gate, region)
	if !view.State.Persisted {
		view.ShowBanner = true
	}
	return view
}

func (s *Service) AcceptAll(ctx context.Context, scope string, region models.Region) (View, error) {
	return s.mutate(ctx, scope, region, func(b *binding.Binding) (binding.State, error) {
		return b.AcceptAll(ctx, region)
	})
}

func (s *Service) RejectAll(ctx context.Context, scope string, region models.Region) (View, error) {
	return s.mutate(ctx, scope, region, func(b *binding.Binding) (binding.State, error) {
		return b.RejectAll(ctx, region)
	})
}

func (s *Service) SavePreferences(ctx context.Context, scope string, prefs models.Preferences, region models.Region) (View, error) {
	return s.mutate(ctx, scope, region, func(b *binding.Binding) (binding.State, error) {
		return b.SavePreferences(ctx, prefs, region)
	})
}

// DoNotSell applies the opt-out for region, strict where the policy says so.
func (s *Service) DoNotSell(ctx context.Context, scope string, region models.Region) (View, error) {
	strict := s.policy.IsStrict(region)
	return s.mutate(ctx, scope, region, func(b *binding.Binding) (binding.State, error) {
		return b.DoNotSell(ctx, region, strict)
	})
}

// Reset forgets the visitor's decision.
func (s *Service) Reset(ctx context.Context, scope string, region models.Region) (View, error) {
	return s.mutate(ctx, scope, region, func(b *binding.Binding) (binding.State, error) {
		return b.Reset(ctx)
	})
}

// IsCategoryAllowed answers a gated consumer. Without a scope only essential
// is allowed.
func (s *Service) IsCategoryAllowed(ctx context.Context, scope string, category models.Category) bool {
	if scope == "" {
		return category == models.CategoryEssential
	}
	return s.lookup(scope).manager.IsCategoryAllowed(ctx, category)
}

// Integrations returns the integrations active for scope's current record.
func (s *Service) Integrations(ctx context.Context, scope string) []gate.Integration {
	if scope == "" {
		return s.catalog.AllowedBy(models.RejectAll())
	}
	e := s.lookup(scope)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gate.Sync(ctx, e.manager)
	return e.gate.Active()
}

// IntegrationAllowed reports whether the named integration may run for scope.
// Names missing from the catalog are CodeNotFound.
func (s *Service) IntegrationAllowed(ctx context.Context, scope, name string) (bool, error) {
	in, ok := s.catalog.Lookup(name)
	if !ok {
		return false, dErrors.Newf(dErrors.CodeNotFound, "unknown integration %q", name)
	}
	if scope == "" {
		return in.Category == models.CategoryEssential, nil
	}
	e := s.lookup(scope)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gate.Sync(ctx, e.manager)
	return e.gate.Allowed(name), nil
}

// Sweep drops bindings idle longer than the idle TTL and returns how many
// were dropped.
func (s *Service) Sweep() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	var stale []*entry
	for scope, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e)
			delete(s.entries, scope)
		}
	}
	s.mu.Unlock()

	for _, e := range stale {
		e.stop()
	}
	return len(stale)
}

// Len reports how many bindings are live.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Service) mutate(ctx context.Context, scope string, region models.Region, run func(*binding.Binding) (binding.State, error)) (View, error) {
	if scope == "" {
		return s.initialView(region), dErrors.New(dErrors.CodeBadRequest, "no visitor scope")
	}
	e := s.lookup(scope)
	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := run(e.binding)
	return s.view(state, e.gate, region), err
}

// lookup returns the scope's entry, creating it on first use.
func (s *Service) lookup(scope string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[scope]
	if !ok {
		mgr := s.sessions.Manager(scope)
		b := binding.New(mgr, s.bus, binding.WithLogger(s.logger), binding.WithMetrics(s.metrics))
		g := gate.New(s.catalog, s.logger)
		e = &entry{binding: b, manager: mgr, gate: g, stop: g.Watch(b)}
		s.entries[scope] = e
	}
	e.lastSeen = s.now()
	return e
}

func (s *Service) view(state binding.State, g *gate.Gate, region models.Region) View {
	return View{
		State:      state,
		Banner:     s.policy.ForRegion(region),
		ShowBanner: policy.ShouldShowBanner(state.HasConsent),
		Active:     g.Active(),
	}
}

func (s *Service) initialView(region models.Region) View {
	state := binding.InitialState()
	return View{
		State:      state,
		Banner:     s.policy.ForRegion(region),
		ShowBanner: policy.ShouldShowBanner(state.HasConsent),
		Active:     s.catalog.AllowedBy(state.Preferences),
	}
}
