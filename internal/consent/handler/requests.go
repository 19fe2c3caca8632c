package handler

import (
	"strings"

	"consentd/internal/consent/models"
	dErrors "consentd/pkg/domain-errors"
)

// PreferencesRequest replaces the visitor's choice. Every optional category
// must be present; essential may be omitted and is always granted.
type PreferencesRequest struct {
	Essential  *bool `json:"essential,omitempty"`
	Functional *bool `json:"functional"`
	Analytics  *bool `json:"analytics"`
	Marketing  *bool `json:"marketing"`
}

// Validate checks that the request is well-formed.
func (r *PreferencesRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	var missing []string
	if r.Functional == nil {
		missing = append(missing, string(models.CategoryFunctional))
	}
	if r.Analytics == nil {
		missing = append(missing, string(models.CategoryAnalytics))
	}
	if r.Marketing == nil {
		missing = append(missing, string(models.CategoryMarketing))
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing categories: "+strings.Join(missing, ", "))
	}
	return nil
}

// ToPreferences converts a validated request. A refused essential flag is
// coerced back to granted.
func (r *PreferencesRequest) ToPreferences() models.Preferences {
	return models.Preferences{
		Essential:  true,
		Functional: *r.Functional,
		Analytics:  *r.Analytics,
		Marketing:  *r.Marketing,
	}
}
