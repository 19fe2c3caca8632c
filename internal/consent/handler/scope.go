package handler

import (
	"net/http"

	jwttoken "consentd/internal/jwt_token"
	"consentd/pkg/platform/httputil"
	"consentd/pkg/requestcontext"
)

// ScopeCookie carries the signed visitor-storage-scope.
const ScopeCookie = "consent_scope"

func defaultScope() string {
	return jwttoken.NewScope()
}

// scope returns the visitor's scope, minting one when the cookie is missing
// or invalid. Crawlers get the empty scope and no cookie. The cookie is
// re-signed on every request so an active visitor keeps their scope.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if requestcontext.IsCrawler(ctx) {
		return "", true
	}

	var scope string
	if c, err := r.Cookie(ScopeCookie); err == nil && c.Value != "" {
		validated, err := h.tokens.Validate(ctx, c.Value)
		if err != nil {
			h.logger.DebugContext(ctx, "scope cookie rejected; minting new scope",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		} else {
			scope = validated
		}
	}
	if scope == "" {
		scope = h.newScope()
	}

	token, err := h.tokens.Issue(ctx, scope)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to sign scope cookie",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return "", false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ScopeCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return scope, true
}
