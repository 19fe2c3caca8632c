// Package policy picks banner affordances per jurisdiction. It never changes
// what is stored: every region persists the same four category flags.
package policy

import "consentd/internal/consent/models"

// Model is the consent model a region follows.
type Model string

const (
	ModelOptIn  Model = "opt_in"
	ModelOptOut Model = "opt_out"
)

// Affordance is a banner action offered to the visitor.
type Affordance string

const (
	AffordanceAcceptAll   Affordance = "accept_all"
	AffordanceRejectAll   Affordance = "reject_all"
	AffordanceDoNotSell   Affordance = "do_not_sell"
	AffordancePreferences Affordance = "preferences"
)

// Banner describes what the banner surface should offer.
type Banner struct {
	Region          models.Region `json:"region"`
	Model           Model         `json:"model"`
	Affordances     []Affordance  `json:"affordances"`
	EqualProminence bool          `json:"equal_prominence"`
	// StrictDoNotSell reports whether Do Not Sell also rejects analytics.
	StrictDoNotSell bool `json:"strict_do_not_sell"`
}

// Offers reports whether the banner includes a.
func (b Banner) Offers(a Affordance) bool {
	for _, have := range b.Affordances {
		if have == a {
			return true
		}
	}
	return false
}

// Policy maps regions to banners.
type Policy struct {
	strictUSCA bool
}

type Option func(*Policy)

// WithStrictUSCA makes Do Not Sell in California reject analytics as well as
// marketing.
func WithStrictUSCA(strict bool) Option {
	return func(p *Policy) {
		p.strictUSCA = strict
	}
}

func New(opts ...Option) *Policy {
	p := &Policy{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ForRegion returns the banner for region. Unknown and unresolved regions get
// the opt-in banner.
func (p *Policy) ForRegion(region models.Region) Banner {
	switch region {
	case models.RegionUSCA, models.RegionUS:
		return Banner{
			Region:          region,
			Model:           ModelOptOut,
			Affordances:     []Affordance{AffordanceAcceptAll, AffordanceDoNotSell, AffordancePreferences},
			StrictDoNotSell: p.IsStrict(region),
		}
	case models.RegionEU, models.RegionUK:
		return optIn(region)
	default:
		return optIn(models.RegionGlobal)
	}
}

// IsStrict reports whether Do Not Sell in region also rejects analytics.
func (p *Policy) IsStrict(region models.Region) bool {
	return region == models.RegionUSCA && p.strictUSCA
}

func optIn(region models.Region) Banner {
	return Banner{
		Region:          region,
		Model:           ModelOptIn,
		Affordances:     []Affordance{AffordanceAcceptAll, AffordanceRejectAll, AffordancePreferences},
		EqualProminence: true,
	}
}

// DoNotSellPreferences applies the opt-out to current: marketing is rejected,
// and analytics too when strict. Other flags are kept.
func DoNotSellPreferences(current models.Preferences, strict bool) models.Preferences {
	reject := models.RejectAll()
	next := current.With(models.CategoryMarketing, reject.Marketing)
	if strict {
		next = next.With(models.CategoryAnalytics, reject.Analytics)
	}
	return next
}

// ShouldShowBanner reports whether the banner must be presented. It is shown
// until an explicit decision exists, whatever the region.
func ShouldShowBanner(hasConsent bool) bool {
	return !hasConsent
}
