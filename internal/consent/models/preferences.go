package models

// Preferences is the full set of category flags for one visitor.
// Essential is always true; Normalize coerces it silently.
type Preferences struct {
	Essential  bool `json:"essential"`
	Functional bool `json:"functional"`
	Analytics  bool `json:"analytics"`
	Marketing  bool `json:"marketing"`
}

// Normalize returns a copy with Essential forced on.
func (p Preferences) Normalize() Preferences {
	p.Essential = true
	return p
}

// Allows reports whether the given category is granted.
func (p Preferences) Allows(c Category) bool {
	switch c {
	case CategoryEssential:
		return true
	case CategoryFunctional:
		return p.Functional
	case CategoryAnalytics:
		return p.Analytics
	case CategoryMarketing:
		return p.Marketing
	default:
		return false
	}
}

// With returns a copy with the given category set. Essential cannot be turned off.
func (p Preferences) With(c Category, allowed bool) Preferences {
	switch c {
	case CategoryFunctional:
		p.Functional = allowed
	case CategoryAnalytics:
		p.Analytics = allowed
	case CategoryMarketing:
		p.Marketing = allowed
	}
	return p.Normalize()
}

// Granted lists the categories currently allowed, essential first.
func (p Preferences) Granted() []Category {
	out := []Category{CategoryEssential}
	for _, c := range OptionalCategories() {
		if p.Allows(c) {
			out = append(out, c)
		}
	}
	return out
}

// AcceptAll grants every category.
func AcceptAll() Preferences {
	return Preferences{Essential: true, Functional: true, Analytics: true, Marketing: true}
}

// RejectAll grants only essential.
func RejectAll() Preferences {
	return Preferences{Essential: true}
}
