package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,ScopeTokens

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"consentd/internal/consent/binding"
	"consentd/internal/consent/gate"
	"consentd/internal/consent/models"
	"consentd/internal/consent/region"
	"consentd/internal/consent/visitor"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/httputil"
	"consentd/pkg/requestcontext"
)

// PersistedHeader is set to "false" when a decision took effect for the
// session but could not be stored.
const PersistedHeader = "X-Consent-Persisted"

// Service defines the consent operations behind the HTTP surface.
type Service interface {
	State(ctx context.Context, scope string, region models.Region) visitor.View
	AcceptAll(ctx context.Context, scope string, region models.Region) (visitor.View, error)
	RejectAll(ctx context.Context, scope string, region models.Region) (visitor.View, error)
	SavePreferences(ctx context.Context, scope string, prefs models.Preferences, region models.Region) (visitor.View, error)
	DoNotSell(ctx context.Context, scope string, region models.Region) (visitor.View, error)
	Reset(ctx context.Context, scope string, region models.Region) (visitor.View, error)
	IsCategoryAllowed(ctx context.Context, scope string, category models.Category) bool
	Integrations(ctx context.Context, scope string) []gate.Integration
	IntegrationAllowed(ctx context.Context, scope, name string) (bool, error)
}

// ScopeTokens signs the visitor scope cookie.
type ScopeTokens interface {
	Issue(ctx context.Context, scope string) (string, error)
	Validate(ctx context.Context, token string) (string, error)
	TTL() time.Duration
}

type Option func(*Handler)

// WithSecureCookie marks the scope cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(h *Handler) {
		h.secureCookie = secure
	}
}

// WithScopeGenerator replaces how new scope IDs are minted.
func WithScopeGenerator(gen func() string) Option {
	return func(h *Handler) {
		if gen != nil {
			h.newScope = gen
		}
	}
}

// Handler handles consent endpoints.
type Handler struct {
	logger       *slog.Logger
	consent      Service
	tokens       ScopeTokens
	secureCookie bool
	newScope     func() string
}

// New creates a new consent Handler.
func New(consent Service, tokens ScopeTokens, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:   logger,
		consent:  consent,
		tokens:   tokens,
		newScope: defaultScope,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/consent", h.handleGetState)
	r.Delete("/consent", h.handleReset)
	r.Post("/consent/accept-all", h.handleAcceptAll)
	r.Post("/consent/reject-all", h.handleRejectAll)
	r.Post("/consent/do-not-sell", h.handleDoNotSell)
	r.Put("/consent/preferences", h.handleSavePreferences)
	r.Get("/consent/allowed/{category}", h.handleIsAllowed)
	r.Get("/consent/integrations", h.handleIntegrations)
	r.Get("/consent/integrations/{name}", h.handleIntegrationAllowed)
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	view := h.consent.State(ctx, scope, region.FromContext(ctx))
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(view))
}

func (h *Handler) handleAcceptAll(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "accept_all", func(ctx context.Context, scope string, reg models.Region) (visitor.View, error) {
		return h.consent.AcceptAll(ctx, scope, reg)
	})
}

func (h *Handler) handleRejectAll(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "reject_all", func(ctx context.Context, scope string, reg models.Region) (visitor.View, error) {
		return h.consent.RejectAll(ctx, scope, reg)
	})
}

func (h *Handler) handleDoNotSell(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "do_not_sell", func(ctx context.Context, scope string, reg models.Region) (visitor.View, error) {
		return h.consent.DoNotSell(ctx, scope, reg)
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "reset", func(ctx context.Context, scope string, reg models.Region) (visitor.View, error) {
		return h.consent.Reset(ctx, scope, reg)
	})
}

func (h *Handler) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeAndPrepare[PreferencesRequest](w, r, h.logger)
	if !ok {
		return
	}

	h.mutate(w, r, "save_preferences", func(ctx context.Context, scope string, reg models.Region) (visitor.View, error) {
		return h.consent.SavePreferences(ctx, scope, req.ToPreferences(), reg)
	})
}

func (h *Handler) handleIsAllowed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	category, err := models.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "unknown category"))
		return
	}
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AllowedResponse{
		Category: category,
		Allowed:  h.consent.IsCategoryAllowed(ctx, scope, category),
	})
}

func (h *Handler) handleIntegrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toIntegrationsResponse(h.consent.Integrations(ctx, scope)))
}

func (h *Handler) handleIntegrationAllowed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	allowed, err := h.consent.IntegrationAllowed(ctx, scope, name)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, IntegrationAllowedResponse{Integration: name, Allowed: allowed})
}

// mutate runs one decision. A decision that was applied but not stored is
// still a success, flagged by PersistedHeader.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, action string, run func(context.Context, string, models.Region) (visitor.View, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if requestcontext.IsCrawler(ctx) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "crawlers cannot record consent"))
		return
	}
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	view, err := run(ctx, scope, region.FromContext(ctx))
	if err != nil && !binding.IsNotRemembered(err) {
		h.logger.ErrorContext(ctx, "consent mutation failed",
			"request_id", requestID,
			"action", action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if err != nil {
		w.Header().Set(PersistedHeader, "false")
	}
	httputil.WriteJSON(w, http.StatusOK, toStateResponse(view))
}
