package device

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"consentd/pkg/requestcontext"
)

const (
	chromeMac = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	googlebot = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestIsCrawler(t *testing.T) {
	assert.True(t, IsCrawler(googlebot))
	assert.False(t, IsCrawler(chromeMac))
	assert.False(t, IsCrawler(""))
}

func TestDeviceMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		markers []string
		want    bool
	}{
		{"browser", chromeMac, nil, false},
		{"search crawler", googlebot, nil, true},
		{"configured marker", chromeMac + " UptimeProbe/1.0", []string{" uptimeprobe "}, true},
		{"no user agent", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got bool
			handler := Device(&Config{ExtraBotMarkers: tt.markers})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = requestcontext.IsCrawler(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/consent", nil)
			if tt.ua != "" {
				req.Header.Set("User-Agent", tt.ua)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribe(t *testing.T) {
	assert.Contains(t, Describe(chromeMac), "Chrome on ")
	assert.Equal(t, "unknown", Describe(""))
}
