package models

import (
	"fmt"
	"strings"

	"consentd/internal/sentinel"
)

// Category labels a class of cookies or trackers a visitor can allow.
type Category string

const (
	CategoryEssential  Category = "essential"
	CategoryFunctional Category = "functional"
	CategoryAnalytics  Category = "analytics"
	CategoryMarketing  Category = "marketing"
)

// validCategories is the single source of truth for supported categories.
var validCategories = map[Category]bool{
	CategoryEssential:  true,
	CategoryFunctional: true,
	CategoryAnalytics:  true,
	CategoryMarketing:  true,
}

// IsValid checks if the category is one of the supported enum values.
func (c Category) IsValid() bool {
	return validCategories[c]
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory converts a raw string into a Category.
func ParseCategory(raw string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown category %q: %w", raw, sentinel.ErrInvalidInput)
	}
	return c, nil
}

// OptionalCategories lists the categories a visitor can toggle.
func OptionalCategories() []Category {
	return []Category{CategoryFunctional, CategoryAnalytics, CategoryMarketing}
}

// Source names the surface that produced the latest write.
type Source string

const (
	SourceBanner      Source = "banner"
	SourcePreferences Source = "preferences"
)

// IsValid checks if the source is one of the supported enum values.
func (s Source) IsValid() bool {
	return s == SourceBanner || s == SourcePreferences
}

// Region is the jurisdiction classification in effect for a visitor.
// The zero value means no region was resolved (global default).
type Region string

const (
	RegionGlobal Region = ""
	RegionEU     Region = "EU"
	RegionUK     Region = "UK"
	RegionUSCA   Region = "US-CA"
	RegionUS     Region = "US"
)

// IsValid reports whether r is one of the closed set of region tags.
func (r Region) IsValid() bool {
	switch r {
	case RegionGlobal, RegionEU, RegionUK, RegionUSCA, RegionUS:
		return true
	}
	return false
}

// IsUS reports whether the region follows a US opt-out model.
func (r Region) IsUS() bool {
	return r == RegionUS || r == RegionUSCA
}
