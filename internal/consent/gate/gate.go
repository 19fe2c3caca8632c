// Package gate activates third-party integrations only while their consent
// category is allowed.
package gate

import (
	"context"
	"log/slog"
	"sync"

	contracts "consentd/contracts/consent"
	"consentd/internal/consent/binding"
	"consentd/internal/consent/models"
)

// Subscriber delivers consent changes.
type Subscriber interface {
	Subscribe(handler binding.ChangeHandler) func()
}

// Diff lists integrations switched by one change.
type Diff struct {
	Activated   []string
	Deactivated []string
}

// Gate tracks which integrations are active for one visitor. It starts with
// nothing active beyond essential consumers.
type Gate struct {
	catalog *Catalog
	logger  *slog.Logger

	mu     sync.RWMutex
	active map[string]struct{}
}

func New(catalog *Catalog, logger *slog.Logger) *Gate {
	g := &Gate{
		catalog: catalog,
		logger:  logger,
		active:  make(map[string]struct{}),
	}
	g.apply(context.Background(), models.RejectAll())
	return g
}

// Sync activates integrations from the checker's current answers.
func (g *Gate) Sync(ctx context.Context, checker contracts.Checker) Diff {
	prefs := models.RejectAll()
	for _, c := range models.OptionalCategories() {
		prefs = prefs.With(c, checker.IsCategoryAllowed(ctx, c))
	}
	return g.apply(ctx, prefs)
}

// Watch follows changes from sub until the returned function is called.
func (g *Gate) Watch(sub Subscriber) func() {
	return sub.Subscribe(func(ctx context.Context, change models.Change) {
		g.apply(ctx, change.Preferences)
	})
}

// Apply replaces the active set with what prefs allows.
func (g *Gate) Apply(ctx context.Context, prefs models.Preferences) Diff {
	return g.apply(ctx, prefs)
}

// Active returns the active integrations sorted by name.
func (g *Gate) Active() []Integration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Integration, 0, len(g.active))
	for _, in := range g.catalog.All() {
		if _, ok := g.active[in.Name]; ok {
			out = append(out, in)
		}
	}
	return out
}

// Allowed reports whether the named integration is active. Unknown names are
// never allowed.
func (g *Gate) Allowed(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.active[name]
	return ok
}

func (g *Gate) apply(ctx context.Context, prefs models.Preferences) Diff {
	next := make(map[string]struct{})
	for _, in := range g.catalog.AllowedBy(prefs) {
		next[in.Name] = struct{}{}
	}

	g.mu.Lock()
	var diff Diff
	for _, in := range g.catalog.All() {
		_, was := g.active[in.Name]
		_, is := next[in.Name]
		switch {
		case is && !was:
			diff.Activated = append(diff.Activated, in.Name)
		case was && !is:
			diff.Deactivated = append(diff.Deactivated, in.Name)
		}
	}
	g.active = next
	g.mu.Unlock()

	if g.logger != nil && (len(diff.Activated) > 0 || len(diff.Deactivated) > 0) {
		g.logger.DebugContext(ctx, "integrations switched",
			"activated", diff.Activated,
			"deactivated", diff.Deactivated,
		)
	}
	return diff
}
