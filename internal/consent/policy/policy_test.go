package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"consentd/internal/consent/models"
)

func TestForRegion(t *testing.T) {
	p := New()

	tests := []struct {
		name   string
		region models.Region
		model  Model
		offers []Affordance
		equal  bool
	}{
		{"EU is opt-in with equal prominence", models.RegionEU, ModelOptIn, []Affordance{AffordanceAcceptAll, AffordanceRejectAll}, true},
		{"UK follows EU", models.RegionUK, ModelOptIn, []Affordance{AffordanceAcceptAll, AffordanceRejectAll}, true},
		{"California offers do not sell", models.RegionUSCA, ModelOptOut, []Affordance{AffordanceAcceptAll, AffordanceDoNotSell}, false},
		{"other US offers do not sell", models.RegionUS, ModelOptOut, []Affordance{AffordanceAcceptAll, AffordanceDoNotSell}, false},
		{"unresolved falls back to opt-in", models.RegionGlobal, ModelOptIn, []Affordance{AffordanceAcceptAll, AffordanceRejectAll}, true},
		{"unknown tag falls back to opt-in", models.Region("BR"), ModelOptIn, []Affordance{AffordanceAcceptAll, AffordanceRejectAll}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := p.ForRegion(tt.region)
			assert.Equal(t, tt.model, b.Model)
			assert.Equal(t, tt.equal, b.EqualProminence)
			for _, a := range tt.offers {
				assert.True(t, b.Offers(a), "missing %s", a)
			}
			assert.True(t, b.Offers(AffordancePreferences))
		})
	}
}

func TestForRegion_OptOutNeverOffersRejectAll(t *testing.T) {
	b := New().ForRegion(models.RegionUS)
	assert.False(t, b.Offers(AffordanceRejectAll))
	assert.False(t, New().ForRegion(models.RegionEU).Offers(AffordanceDoNotSell))
}

func TestStrictness(t *testing.T) {
	assert.False(t, New().ForRegion(models.RegionUSCA).StrictDoNotSell)

	strict := New(WithStrictUSCA(true))
	assert.True(t, strict.ForRegion(models.RegionUSCA).StrictDoNotSell)
	assert.False(t, strict.ForRegion(models.RegionUS).StrictDoNotSell)
	assert.False(t, strict.IsStrict(models.RegionEU))
}

func TestDoNotSellPreferences(t *testing.T) {
	t.Run("rejects marketing only", func(t *testing.T) {
		got := DoNotSellPreferences(models.AcceptAll(), false)
		assert.Equal(t, models.Preferences{Essential: true, Functional: true, Analytics: true}, got)
	})

	t.Run("strict also rejects analytics", func(t *testing.T) {
		got := DoNotSellPreferences(models.AcceptAll(), true)
		assert.Equal(t, models.Preferences{Essential: true, Functional: true}, got)
	})

	t.Run("never grants anything new", func(t *testing.T) {
		got := DoNotSellPreferences(models.Preferences{}, true)
		assert.Equal(t, models.RejectAll(), got)
	})
}

func TestShouldShowBanner(t *testing.T) {
	assert.True(t, ShouldShowBanner(false))
	assert.False(t, ShouldShowBanner(true))
}
