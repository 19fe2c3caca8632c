// Package region classifies a visitor into a jurisdiction tag. The tag only
// selects banner affordances; it never changes how preferences are stored.
package region

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"consentd/internal/consent/models"
)

const (
	DefaultCountryHeader     = "CF-IPCountry"
	DefaultSubdivisionHeader = "CF-Region-Code"
)

// Resolver classifies a request.
type Resolver interface {
	Resolve(r *http.Request) models.Region
}

// euLike lists EU member states plus EEA members and Switzerland, which get
// the same opt-in banner.
var euLike = map[string]struct{}{
	"AT": {}, "BE": {}, "BG": {}, "HR": {}, "CY": {}, "CZ": {}, "DK": {}, "EE": {},
	"FI": {}, "FR": {}, "DE": {}, "GR": {}, "HU": {}, "IE": {}, "IT": {}, "LV": {},
	"LT": {}, "LU": {}, "MT": {}, "NL": {}, "PL": {}, "PT": {}, "RO": {}, "SK": {},
	"SI": {}, "ES": {}, "SE": {},
	"IS": {}, "LI": {}, "NO": {},
	"CH": {},
}

// HeaderResolver reads the country a CDN attached to the request and falls
// back to an exact region in Accept-Language.
type HeaderResolver struct {
	countryHeader     string
	subdivisionHeader string
}

// NewHeaderResolver creates a resolver. Empty header names use the defaults.
func NewHeaderResolver(countryHeader, subdivisionHeader string) *HeaderResolver {
	if countryHeader == "" {
		countryHeader = DefaultCountryHeader
	}
	if subdivisionHeader == "" {
		subdivisionHeader = DefaultSubdivisionHeader
	}
	return &HeaderResolver{countryHeader: countryHeader, subdivisionHeader: subdivisionHeader}
}

func (h *HeaderResolver) Resolve(r *http.Request) models.Region {
	country := normalizeCountry(r.Header.Get(h.countryHeader))
	subdivision := ""
	if country != "" {
		subdivision = r.Header.Get(h.subdivisionHeader)
	} else {
		country = acceptLanguageCountry(r.Header.Get("Accept-Language"))
	}
	return Classify(country, subdivision)
}

// Classify maps an ISO 3166-1 country and optional subdivision to a region.
// The subdivision may be bare ("CA") or prefixed ("US-CA").
func Classify(country, subdivision string) models.Region {
	country = normalizeCountry(country)
	switch {
	case country == "":
		return models.RegionGlobal
	case country == "GB":
		return models.RegionUK
	case country == "US":
		sub := strings.ToUpper(strings.TrimSpace(subdivision))
		sub = strings.TrimPrefix(sub, "US-")
		if sub == "CA" {
			return models.RegionUSCA
		}
		return models.RegionUS
	}
	if _, ok := euLike[country]; ok {
		return models.RegionEU
	}
	return models.RegionGlobal
}

// normalizeCountry upper-cases the code and drops CDN placeholders for
// unknown origin (XX) and Tor (T1).
func normalizeCountry(raw string) string {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if len(c) != 2 || c == "XX" || c == "T1" {
		return ""
	}
	return c
}

// acceptLanguageCountry returns the first region stated explicitly in the
// header, in preference order. Inferred regions (en => US) are ignored.
func acceptLanguageCountry(header string) string {
	if header == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return ""
	}
	for _, tag := range tags {
		if reg, conf := tag.Region(); conf == language.Exact {
			if reg.IsCountry() {
				return reg.String()
			}
		}
	}
	return ""
}

type contextKey struct{}

// WithRegion stores region in ctx.
func WithRegion(ctx context.Context, region models.Region) context.Context {
	return context.WithValue(ctx, contextKey{}, region)
}

// FromContext returns the region stored by Middleware, or the global region.
func FromContext(ctx context.Context) models.Region {
	r, _ := ctx.Value(contextKey{}).(models.Region)
	return r
}

// Middleware resolves the region once per request.
func Middleware(resolver Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithRegion(r.Context(), resolver.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
