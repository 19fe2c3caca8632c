package models

import (
	"time"

	dErrors "consentd/pkg/domain-errors"
)

// EventConsentChanged is published on the consent bus after every decision.
const EventConsentChanged = "consent.changed"

// Record is the persisted consent decision of one visitor-storage-scope.
//
// ConsentID is generated on the first explicit decision and preserved by every
// later write, so support and audit requests can be correlated with it.
// Timestamp is the time of the latest write, not of creation. Region is
// informational: it never changes how Preferences are interpreted.
type Record struct {
	ConsentID   string
	Preferences Preferences
	Source      Source
	Timestamp   time.Time
	Region      Region
}

// NewRecord creates a Record with domain invariant checks.
// Essential is coerced on rather than rejected.
func NewRecord(consentID string, prefs Preferences, source Source, at time.Time, region Region) (*Record, error) {
	if consentID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consent ID required")
	}
	if !source.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid consent source")
	}
	if at.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "decision time required")
	}
	if !region.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid region")
	}
	return &Record{
		ConsentID:   consentID,
		Preferences: prefs.Normalize(),
		Source:      source,
		Timestamp:   at.UTC().Round(0),
		Region:      region,
	}, nil
}

// Allows reports whether the record grants the category.
func (r *Record) Allows(c Category) bool {
	if c == CategoryEssential {
		return true
	}
	if r == nil {
		return false
	}
	return r.Preferences.Allows(c)
}

// Equal compares two records field by field, using time.Equal for Timestamp.
func (r Record) Equal(other Record) bool {
	return r.ConsentID == other.ConsentID &&
		r.Preferences == other.Preferences &&
		r.Source == other.Source &&
		r.Timestamp.Equal(other.Timestamp) &&
		r.Region == other.Region
}

// Change is the payload broadcast to gated consumers after a decision.
// It always carries the full preference set, never a partial patch.
type Change struct {
	// Scope is the visitor-storage-scope the decision belongs to.
	Scope       string
	ConsentID   string
	Preferences Preferences
	Source      Source
	Region      Region
	// Persisted is false when the slot rejected the write and the decision
	// only lives in memory for the current session.
	Persisted bool
	// Cleared is set when the record was removed rather than replaced.
	Cleared bool
	At      time.Time
}
