package binding

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"consentd/internal/consent/metrics"
	"consentd/internal/consent/models"
	"consentd/internal/consent/service"
	"consentd/internal/consent/store"
	"consentd/internal/platform/eventbus"
	dErrors "consentd/pkg/domain-errors"
)

const testScope = "scope-1"

type BindingSuite struct {
	suite.Suite
	slots    *store.MemorySlots
	sessions *service.Sessions
	bus      *eventbus.Bus
	metrics  *metrics.Metrics
	binding  *Binding
	changes  []models.Change
	mu       sync.Mutex
}

func (s *BindingSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.slots = store.NewMemorySlots(0)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.sessions = service.NewSessions(s.slots, 0, logger, s.metrics)
	s.bus = eventbus.New(logger)
	s.binding = s.newBinding(testScope)
	s.changes = nil
	s.binding.Subscribe(func(_ context.Context, change models.Change) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.changes = append(s.changes, change)
	})
}

func (s *BindingSuite) newBinding(scope string) *Binding {
	return New(s.sessions.Manager(scope), s.bus, WithMetrics(s.metrics))
}

func (s *BindingSuite) received() []models.Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Change(nil), s.changes...)
}

func TestBindingSuite(t *testing.T) {
	suite.Run(t, new(BindingSuite))
}

func (s *BindingSuite) TestInitialStateIsDeterministic() {
	a, b := InitialState(), InitialState()
	assert.Equal(s.T(), a, b)
	assert.Equal(s.T(), PhaseInitial, a.Phase)
	assert.False(s.T(), a.HasConsent)
	assert.Equal(s.T(), []models.Category{models.CategoryEssential}, a.Preferences.Granted())

	// A fresh binding starts there even when a record exists.
	_, err := s.binding.AcceptAll(context.Background(), models.RegionGlobal)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), InitialState(), s.newBinding(testScope).State())
}

func (s *BindingSuite) TestHydrate() {
	ctx := context.Background()

	s.T().Run("no record", func(t *testing.T) {
		st := s.binding.Hydrate(ctx)
		assert.Equal(t, PhaseHydratedEmpty, st.Phase)
		assert.False(t, st.HasConsent)
		assert.Nil(t, st.Record)
	})

	s.T().Run("existing record", func(t *testing.T) {
		prefs := models.Preferences{Functional: true, Analytics: true}
		_, err := s.sessions.Manager(testScope).Decide(ctx, prefs, models.SourcePreferences, models.RegionEU)
		require.NoError(t, err)

		st := s.newBinding(testScope).Hydrate(ctx)
		assert.Equal(t, PhaseHydratedExisting, st.Phase)
		assert.True(t, st.HasConsent)
		assert.Equal(t, prefs.Normalize(), st.Preferences)
	})

	s.T().Run("second call re-reads the manager", func(t *testing.T) {
		// The suite binding hydrated as empty before the record was written.
		st := s.binding.Hydrate(ctx)
		assert.Equal(t, PhaseHydratedExisting, st.Phase)
		assert.True(t, st.Preferences.Analytics)
	})

	assert.Empty(s.T(), s.received(), "hydration never broadcasts")
}

func (s *BindingSuite) TestFirstVisitAcceptAll() {
	ctx := context.Background()
	m := s.sessions.Manager(testScope)

	assert.False(s.T(), m.IsCategoryAllowed(ctx, models.CategoryAnalytics))
	assert.False(s.T(), m.IsCategoryAllowed(ctx, models.CategoryMarketing))

	st, err := s.binding.AcceptAll(ctx, models.RegionEU)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), PhaseUpdated, st.Phase)
	assert.True(s.T(), st.Persisted)
	assert.Equal(s.T(), models.AcceptAll(), st.Preferences)

	rec, ok := m.GetCurrent(ctx)
	require.True(s.T(), ok)
	assert.NotEmpty(s.T(), rec.ConsentID)
	assert.Equal(s.T(), models.SourceBanner, rec.Source)

	changes := s.received()
	require.Len(s.T(), changes, 1)
	assert.Equal(s.T(), models.AcceptAll(), changes[0].Preferences)
	assert.Equal(s.T(), rec.ConsentID, changes[0].ConsentID)
	assert.True(s.T(), changes[0].Persisted)
	assert.Equal(s.T(), 1.0, promtestutil.ToFloat64(s.metrics.Broadcasts))
}

func (s *BindingSuite) TestRejectThenRefineKeepsID() {
	ctx := context.Background()

	first, err := s.binding.RejectAll(ctx, models.RegionEU)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.RejectAll(), first.Preferences)

	second, err := s.binding.SavePreferences(ctx, models.Preferences{Analytics: true}, models.RegionEU)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), first.Record.ConsentID, second.Record.ConsentID)
	assert.Equal(s.T(), models.SourcePreferences, second.Record.Source)
	assert.Equal(s.T(), models.Preferences{Essential: true, Analytics: true}, second.Preferences)

	m := s.sessions.Manager(testScope)
	assert.True(s.T(), m.IsCategoryAllowed(ctx, models.CategoryAnalytics))
	assert.False(s.T(), m.IsCategoryAllowed(ctx, models.CategoryMarketing))
	assert.Len(s.T(), s.received(), 2)
}

func (s *BindingSuite) TestSavePreferencesCoercesEssential() {
	st, err := s.binding.SavePreferences(context.Background(), models.Preferences{Essential: false, Marketing: true}, models.RegionGlobal)
	require.NoError(s.T(), err)
	assert.True(s.T(), st.Preferences.Essential)
	assert.True(s.T(), s.received()[0].Preferences.Essential)
}

func (s *BindingSuite) TestBroadcastFollowsPersist() {
	ctx := context.Background()
	m := s.sessions.Manager(testScope)
	var sawPersisted bool
	unsubscribe := s.binding.Subscribe(func(ctx context.Context, change models.Change) {
		sawPersisted = m.IsCategoryAllowed(ctx, models.CategoryMarketing)
	})
	defer unsubscribe()

	_, err := s.binding.AcceptAll(ctx, models.RegionGlobal)
	require.NoError(s.T(), err)
	assert.True(s.T(), sawPersisted, "subscribers must observe the written record")
}

func (s *BindingSuite) TestStorageFailureStillUpdatesAndBroadcasts() {
	ctx := context.Background()
	s.slots.Disable()

	st, err := s.binding.AcceptAll(ctx, models.RegionGlobal)
	require.Error(s.T(), err)
	assert.True(s.T(), IsNotRemembered(err))
	assert.Equal(s.T(), PhaseUpdated, st.Phase)
	assert.False(s.T(), st.Persisted)
	assert.True(s.T(), s.sessions.Manager(testScope).IsCategoryAllowed(ctx, models.CategoryMarketing))

	changes := s.received()
	require.Len(s.T(), changes, 1)
	assert.False(s.T(), changes[0].Persisted)

	// After a reload in a new process the banner shows again.
	s.slots.Enable()
	fresh := service.NewSessions(s.slots, 0, nil, nil)
	st = New(fresh.Manager(testScope), s.bus).Hydrate(ctx)
	assert.Equal(s.T(), PhaseHydratedEmpty, st.Phase)
}

func (s *BindingSuite) TestFailedMutationDoesNotBroadcast() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	before := s.binding.State()
	_, err := s.binding.AcceptAll(ctx, models.RegionGlobal)
	require.Error(s.T(), err)
	assert.False(s.T(), IsNotRemembered(err))
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.Equal(s.T(), before, s.binding.State())
	assert.Empty(s.T(), s.received())
}

func (s *BindingSuite) TestDoNotSell() {
	ctx := context.Background()

	s.T().Run("without a record starts from reject all", func(t *testing.T) {
		st, err := s.binding.DoNotSell(ctx, models.RegionUS, false)
		require.NoError(t, err)
		assert.Equal(t, models.RejectAll(), st.Preferences)
	})

	s.T().Run("keeps other categories", func(t *testing.T) {
		_, err := s.binding.AcceptAll(ctx, models.RegionUS)
		require.NoError(t, err)
		st, err := s.binding.DoNotSell(ctx, models.RegionUS, false)
		require.NoError(t, err)
		assert.True(t, st.Preferences.Analytics)
		assert.True(t, st.Preferences.Functional)
		assert.False(t, st.Preferences.Marketing)
		assert.Equal(t, models.SourceBanner, st.Record.Source)
	})

	s.T().Run("strict also rejects analytics", func(t *testing.T) {
		_, err := s.binding.AcceptAll(ctx, models.RegionUSCA)
		require.NoError(t, err)
		st, err := s.binding.DoNotSell(ctx, models.RegionUSCA, true)
		require.NoError(t, err)
		assert.False(t, st.Preferences.Analytics)
		assert.False(t, st.Preferences.Marketing)
		assert.True(t, st.Preferences.Functional)
		assert.Equal(t, models.RegionUSCA, st.Record.Region)
	})
}

func (s *BindingSuite) TestReset() {
	ctx := context.Background()
	accepted, err := s.binding.AcceptAll(ctx, models.RegionGlobal)
	require.NoError(s.T(), err)

	st, err := s.binding.Reset(ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), PhaseHydratedEmpty, st.Phase)
	assert.False(s.T(), st.HasConsent)

	_, ok := s.sessions.Manager(testScope).GetCurrent(ctx)
	assert.False(s.T(), ok)

	changes := s.received()
	require.Len(s.T(), changes, 2)
	assert.True(s.T(), changes[1].Cleared)
	assert.Equal(s.T(), models.RejectAll(), changes[1].Preferences)
	assert.Equal(s.T(), accepted.Record.ConsentID, changes[1].ConsentID)
}

// busyTx never acquires the scope lock.
type busyTx struct{}

func (busyTx) RunInScope(context.Context, string, func() error) error {
	return dErrors.New(dErrors.CodeTimeout, "consent write aborted: scope busy")
}

func (s *BindingSuite) TestResetKeepsStateWhenClearFails() {
	ctx := context.Background()
	_, err := s.binding.AcceptAll(ctx, models.RegionGlobal)
	require.NoError(s.T(), err)

	busy := service.NewSessions(s.slots, 0, nil, nil, service.WithScopeTx(busyTx{}))
	b := New(busy.Manager(testScope), s.bus)
	before := b.Hydrate(ctx)
	require.True(s.T(), before.HasConsent)

	st, err := b.Reset(ctx)
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.Equal(s.T(), before, st)
	assert.Equal(s.T(), before, b.State())

	changes := s.received()
	require.Len(s.T(), changes, 1, "a failed reset must not broadcast")
	assert.False(s.T(), changes[0].Cleared)
	assert.True(s.T(), s.sessions.Manager(testScope).IsCategoryAllowed(ctx, models.CategoryAnalytics))
}

func (s *BindingSuite) TestHydrateKeepsOwnDecision() {
	ctx := context.Background()
	accepted, err := s.binding.AcceptAll(ctx, models.RegionEU)
	require.NoError(s.T(), err)

	st := s.binding.Hydrate(ctx)
	assert.Equal(s.T(), PhaseUpdated, st.Phase)
	assert.Equal(s.T(), accepted, st)
}

func (s *BindingSuite) TestHydrateSeesDecisionFromAnotherProcess() {
	ctx := context.Background()
	_, err := s.binding.AcceptAll(ctx, models.RegionEU)
	require.NoError(s.T(), err)

	// a second process over the same slots
	other := New(service.NewSessions(s.slots, 0, nil, nil).Manager(testScope), eventbus.New(nil))
	_, err = other.RejectAll(ctx, models.RegionEU)
	require.NoError(s.T(), err)

	st := s.binding.Hydrate(ctx)
	assert.Equal(s.T(), PhaseHydratedExisting, st.Phase)
	assert.Equal(s.T(), models.RejectAll(), st.Preferences)

	// and a record cleared elsewhere
	_, err = other.Reset(ctx)
	require.NoError(s.T(), err)
	st = s.binding.Hydrate(ctx)
	assert.Equal(s.T(), PhaseHydratedEmpty, st.Phase)
	assert.False(s.T(), st.HasConsent)
}

func (s *BindingSuite) TestHydrateWithEndedContextKeepsState() {
	_, err := s.binding.AcceptAll(context.Background(), models.RegionEU)
	require.NoError(s.T(), err)
	before := s.binding.State()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(s.T(), before, s.binding.Hydrate(ctx))

	// the next read is not stuck on a cached empty state
	assert.True(s.T(), s.binding.Hydrate(context.Background()).HasConsent)
}

func (s *BindingSuite) TestHydrateReportsUnpersistedDecision() {
	ctx := context.Background()
	s.slots.Disable()
	_, err := s.binding.AcceptAll(ctx, models.RegionEU)
	require.True(s.T(), IsNotRemembered(err))
	s.slots.Enable()

	st := s.binding.Hydrate(ctx)
	assert.True(s.T(), st.HasConsent)
	assert.False(s.T(), st.Persisted)

	// a fresh binding in the same process sees the shadow as unpersisted too
	st = s.newBinding(testScope).Hydrate(ctx)
	assert.Equal(s.T(), PhaseHydratedExisting, st.Phase)
	assert.False(s.T(), st.Persisted)
}

func (s *BindingSuite) TestSubscribeIsScoped() {
	other := s.newBinding("scope-2")
	var otherChanges int
	unsubscribe := other.Subscribe(func(context.Context, models.Change) { otherChanges++ })

	_, err := s.binding.AcceptAll(context.Background(), models.RegionGlobal)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 0, otherChanges)

	_, err = other.RejectAll(context.Background(), models.RegionGlobal)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, otherChanges)
	assert.Len(s.T(), s.received(), 1)

	unsubscribe()
	_, err = other.AcceptAll(context.Background(), models.RegionGlobal)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, otherChanges)
}

func (s *BindingSuite) TestConcurrentSurfacesLastWriteWins() {
	ctx := context.Background()
	// Both surfaces share the visitor's binding.
	banner := s.binding
	panel := s.binding

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			if i%2 == 0 {
				_, _ = banner.AcceptAll(ctx, models.RegionEU)
				return
			}
			_, _ = panel.SavePreferences(ctx, models.Preferences{Functional: true}, models.RegionEU)
		})
	}
	wg.Wait()

	rec, ok := s.sessions.Manager(testScope).GetCurrent(ctx)
	require.True(s.T(), ok)

	changes := s.received()
	require.Len(s.T(), changes, 20)
	ids := make(map[string]struct{})
	for _, c := range changes {
		ids[c.ConsentID] = struct{}{}
	}
	assert.Len(s.T(), ids, 1)
	assert.Equal(s.T(), changes[len(changes)-1].Preferences, rec.Preferences)
}
