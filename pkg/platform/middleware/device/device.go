// Package device classifies the requesting user agent.
package device

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"consentd/pkg/requestcontext"
)

// Config holds configuration for the Device middleware.
type Config struct {
	// ExtraBotMarkers are case-insensitive substrings that mark a User-Agent
	// as automated in addition to the parser's own detection, e.g. uptime
	// probes that present browser-like strings.
	ExtraBotMarkers []string
}

// Device marks crawlers in the request context. It should be registered after
// the metadata middleware, which extracts the User-Agent.
func Device(cfg *Config) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = &Config{}
	}
	markers := make([]string, 0, len(cfg.ExtraBotMarkers))
	for _, m := range cfg.ExtraBotMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userAgent := requestcontext.UserAgent(ctx)
			if userAgent == "" {
				userAgent = r.Header.Get("User-Agent")
			}
			ctx = requestcontext.WithCrawler(ctx, isCrawler(userAgent, markers))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IsCrawler reports whether userAgent belongs to an automated agent. An empty
// User-Agent is not treated as a crawler.
func IsCrawler(userAgent string) bool {
	return isCrawler(userAgent, nil)
}

func isCrawler(userAgent string, markers []string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return false
	}
	if useragent.New(userAgent).Bot() {
		return true
	}
	lower := strings.ToLower(userAgent)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Describe returns a short "Browser on OS" label for logs.
func Describe(userAgent string) string {
	if userAgent == "" {
		return "unknown"
	}
	ua := useragent.New(userAgent)
	if ua.Bot() {
		name, _ := ua.Browser()
		return "bot " + strings.TrimSpace(name)
	}
	browser, _ := ua.Browser()
	os := ua.OS()
	if ua.Mobile() && ua.Platform() != "" {
		os = ua.Platform()
	}
	if browser == "" {
		browser = "unknown browser"
	}
	if os == "" {
		os = "unknown OS"
	}
	return strings.TrimSpace(browser + " on " + os)
}
