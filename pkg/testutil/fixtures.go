package testutil

import (
	"time"

	"consentd/internal/consent/models"
)

// TestScopes provides deterministic visitor-storage-scopes for tests.
var TestScopes = struct {
	Scope1 string
	Scope2 string
}{
	Scope1: "11111111-1111-4111-8111-111111111111",
	Scope2: "22222222-2222-4222-8222-222222222222",
}

// TestTime is the fixed instant fixtures are stamped with.
var TestTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// RecordBuilder provides a fluent interface for building consent records.
type RecordBuilder struct {
	record models.Record
}

// NewRecordBuilder creates a banner accept-all record with a fixed ID and time.
func NewRecordBuilder() *RecordBuilder {
	return &RecordBuilder{
		record: models.Record{
			ConsentID:   "consent_00000000-0000-4000-8000-000000000001",
			Preferences: models.AcceptAll(),
			Source:      models.SourceBanner,
			Timestamp:   TestTime,
		},
	}
}

func (b *RecordBuilder) WithID(consentID string) *RecordBuilder {
	b.record.ConsentID = consentID
	return b
}

func (b *RecordBuilder) WithPreferences(prefs models.Preferences) *RecordBuilder {
	b.record.Preferences = prefs
	return b
}

func (b *RecordBuilder) RejectAll() *RecordBuilder {
	b.record.Preferences = models.RejectAll()
	return b
}

func (b *RecordBuilder) FromPreferences() *RecordBuilder {
	b.record.Source = models.SourcePreferences
	return b
}

func (b *RecordBuilder) WithRegion(region models.Region) *RecordBuilder {
	b.record.Region = region
	return b
}

func (b *RecordBuilder) At(t time.Time) *RecordBuilder {
	b.record.Timestamp = t
	return b
}

// Build returns a copy, so one builder can produce several records.
func (b *RecordBuilder) Build() *models.Record {
	rec := b.record
	return &rec
}
