package handler

import (
	"time"

	"consentd/internal/consent/gate"
	"consentd/internal/consent/models"
	"consentd/internal/consent/policy"
	"consentd/internal/consent/visitor"
)

// StateResponse is returned by every state-returning endpoint.
type StateResponse struct {
	Phase        string             `json:"phase"`
	HasConsent   bool               `json:"has_consent"`
	Preferences  models.Preferences `json:"preferences"`
	Record       *RecordResponse    `json:"record,omitempty"`
	Persisted    bool               `json:"persisted"`
	ShowBanner   bool               `json:"show_banner"`
	Banner       policy.Banner      `json:"banner"`
	Integrations []gate.Integration `json:"integrations"`
}

// RecordResponse mirrors the stored record.
type RecordResponse struct {
	ConsentID   string             `json:"consent_id"`
	Preferences models.Preferences `json:"preferences"`
	Source      models.Source      `json:"source"`
	Timestamp   time.Time          `json:"timestamp"`
	Region      models.Region      `json:"region,omitempty"`
}

// AllowedResponse answers a gated consumer.
type AllowedResponse struct {
	Category models.Category `json:"category"`
	Allowed  bool            `json:"allowed"`
}

// IntegrationAllowedResponse answers a single integration's loader.
type IntegrationAllowedResponse struct {
	Integration string `json:"integration"`
	Allowed     bool   `json:"allowed"`
}

// IntegrationsResponse lists the integrations that may run.
type IntegrationsResponse struct {
	Integrations []gate.Integration `json:"integrations"`
}

func toStateResponse(view visitor.View) *StateResponse {
	return &StateResponse{
		Phase:        string(view.State.Phase),
		HasConsent:   view.State.HasConsent,
		Preferences:  view.State.Preferences,
		Record:       toRecordResponse(view.State.Record),
		Persisted:    view.State.Persisted,
		ShowBanner:   view.ShowBanner,
		Banner:       view.Banner,
		Integrations: nonNil(view.Active),
	}
}

func toRecordResponse(rec *models.Record) *RecordResponse {
	if rec == nil {
		return nil
	}
	return &RecordResponse{
		ConsentID:   rec.ConsentID,
		Preferences: rec.Preferences,
		Source:      rec.Source,
		Timestamp:   rec.Timestamp,
		Region:      rec.Region,
	}
}

func toIntegrationsResponse(active []gate.Integration) *IntegrationsResponse {
	return &IntegrationsResponse{Integrations: nonNil(active)}
}

func nonNil(in []gate.Integration) []gate.Integration {
	if in == nil {
		return []gate.Integration{}
	}
	return in
}
