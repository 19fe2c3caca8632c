package store

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentd/internal/consent/metrics"
	"consentd/internal/consent/models"
	"consentd/internal/sentinel"
)

func newRecord(t *testing.T, region models.Region) *models.Record {
	t.Helper()
	rec, err := models.NewRecord("consent_abc", models.Preferences{Functional: true, Marketing: true},
		models.SourcePreferences, time.Date(2026, 10, 1, 9, 30, 0, 123456789, time.UTC), region)
	require.NoError(t, err)
	return rec
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := New(NewMemorySlots(0), "scope-1")

	for _, region := range []models.Region{models.RegionGlobal, models.RegionEU, models.RegionUSCA} {
		rec := newRecord(t, region)
		require.NoError(t, st.Save(ctx, rec))

		loaded, ok := st.Load(ctx)
		require.True(t, ok)
		assert.True(t, rec.Equal(*loaded), "round trip must be lossless for region %q", region)
	}
}

func TestStore_LoadAfterClear(t *testing.T) {
	ctx := context.Background()
	st := New(NewMemorySlots(0), "scope-1")
	require.NoError(t, st.Save(ctx, newRecord(t, models.RegionEU)))

	st.Clear(ctx)
	loaded, ok := st.Load(ctx)
	assert.False(t, ok)
	assert.Nil(t, loaded)

	// clearing an empty slot is still fine
	st.Clear(ctx)
}

func TestStore_ScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	slots := NewMemorySlots(0)
	a := New(slots, "scope-a")
	b := New(slots, "scope-b")

	require.NoError(t, a.Save(ctx, newRecord(t, models.RegionEU)))
	_, ok := b.Load(ctx)
	assert.False(t, ok)
}

func TestStore_SchemaInvalidIsAbsent(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{"consentId": "consent_abc", "preferences": {`},
		{name: "missing preferences", raw: `{"consentId":"consent_abc","source":"banner","timestamp":"2026-10-01T09:30:00Z"}`},
		{name: "essential false", raw: `{"consentId":"consent_abc","preferences":{"essential":false,"functional":true,"analytics":true,"marketing":true},"source":"banner","timestamp":"2026-10-01T09:30:00Z"}`},
		{name: "unknown source", raw: `{"consentId":"consent_abc","preferences":{"essential":true,"functional":true,"analytics":true,"marketing":true},"source":"footer","timestamp":"2026-10-01T09:30:00Z"}`},
		{name: "flag not boolean", raw: `{"consentId":"consent_abc","preferences":{"essential":true,"functional":"yes","analytics":true,"marketing":true},"source":"banner","timestamp":"2026-10-01T09:30:00Z"}`},
		{name: "bad timestamp", raw: `{"consentId":"consent_abc","preferences":{"essential":true,"functional":true,"analytics":true,"marketing":true},"source":"banner","timestamp":"yesterday"}`},
		{name: "unknown region", raw: `{"consentId":"consent_abc","preferences":{"essential":true,"functional":true,"analytics":true,"marketing":true},"source":"banner","timestamp":"2026-10-01T09:30:00Z","region":"Atlantis"}`},
		{name: "empty id", raw: `{"consentId":"","preferences":{"essential":true,"functional":true,"analytics":true,"marketing":true},"source":"banner","timestamp":"2026-10-01T09:30:00Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			slots := NewMemorySlots(0)
			require.NoError(t, slots.Set(ctx, "scope-1", SlotKey, []byte(tt.raw)))

			st := New(slots, "scope-1", WithMetrics(m))
			loaded, ok := st.Load(ctx)
			assert.False(t, ok)
			assert.Nil(t, loaded)
		})
	}
	assert.Equal(t, float64(len(tests)), testutil.ToFloat64(m.SchemaInvalidLoads))
}

func TestStore_OtherKeysAreIgnored(t *testing.T) {
	ctx := context.Background()
	slots := NewMemorySlots(0)
	legacy := `{"consentId":"consent_old","preferences":{"essential":true,"functional":true,"analytics":true,"marketing":true},"source":"banner","timestamp":"2024-01-01T00:00:00Z"}`
	require.NoError(t, slots.Set(ctx, "scope-1", "consent.v0", []byte(legacy)))

	_, ok := New(slots, "scope-1").Load(ctx)
	assert.False(t, ok)
}

func TestStore_SaveFailuresAreTyped(t *testing.T) {
	ctx := context.Background()

	t.Run("quota", func(t *testing.T) {
		st := New(NewMemorySlots(16), "scope-1")
		err := st.Save(ctx, newRecord(t, models.RegionEU))

		var storageErr *StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, FailureQuota, storageErr.Kind)
		assert.ErrorIs(t, err, sentinel.ErrQuotaExceeded)
	})

	t.Run("disabled", func(t *testing.T) {
		slots := NewMemorySlots(0)
		slots.Disable()
		st := New(slots, "scope-1")
		err := st.Save(ctx, newRecord(t, models.RegionEU))

		var storageErr *StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, FailureUnavailable, storageErr.Kind)
		assert.Equal(t, "scope-1", storageErr.Scope)

		// reads on disabled storage look like an empty slot
		_, ok := st.Load(ctx)
		assert.False(t, ok)
	})

	t.Run("nil record", func(t *testing.T) {
		err := New(NewMemorySlots(0), "scope-1").Save(ctx, nil)
		var storageErr *StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, FailureWrite, storageErr.Kind)
	})
}

func TestMemorySlots_CopyIntegrity(t *testing.T) {
	ctx := context.Background()
	slots := NewMemorySlots(0)
	value := []byte(`{"a":1}`)
	require.NoError(t, slots.Set(ctx, "scope-1", "k", value))

	value[0] = 'X'
	got, err := slots.Get(ctx, "scope-1", "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	got[0] = 'Y'
	again, err := slots.Get(ctx, "scope-1", "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(again))

	require.NoError(t, slots.Delete(ctx, "scope-1", "k"))
	_, err = slots.Get(ctx, "scope-1", "k")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
