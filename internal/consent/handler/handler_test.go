package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"consentd/internal/consent/binding"
	"consentd/internal/consent/gate"
	"consentd/internal/consent/handler/mocks"
	"consentd/internal/consent/models"
	"consentd/internal/consent/policy"
	"consentd/internal/consent/region"
	"consentd/internal/consent/visitor"
	jwttoken "consentd/internal/jwt_token"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/httputil"
	"consentd/pkg/requestcontext"
	"consentd/pkg/testutil"
)

const (
	mintedScope   = "5f1d7c1e-8a51-4c39-9a53-2f7c61d3a0b1"
	existingScope = "0b7e4d3a-2c1f-4e8b-9d6a-7f5c3b2a1e90"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	tokens  *jwttoken.ScopeTokenService
	router  *chi.Mux
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.tokens = jwttoken.NewScopeTokenService("test-secret", time.Hour)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.service, s.tokens, logger, WithScopeGenerator(func() string { return mintedScope }))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

type requestOption func(*http.Request) *http.Request

func withScopeCookie(value string) requestOption {
	return func(r *http.Request) *http.Request {
		r.AddCookie(&http.Cookie{Name: ScopeCookie, Value: value})
		return r
	}
}

func asCrawler() requestOption {
	return func(r *http.Request) *http.Request {
		return r.WithContext(requestcontext.WithCrawler(r.Context(), true))
	}
}

func inRegion(reg models.Region) requestOption {
	return func(r *http.Request) *http.Request {
		return r.WithContext(region.WithRegion(r.Context(), reg))
	}
}

func (s *HandlerSuite) do(method, path, body string, opts ...requestOption) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for _, opt := range opts {
		req = opt(req)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *HandlerSuite) cookieToken(rr *httptest.ResponseRecorder) (string, bool) {
	for _, c := range rr.Result().Cookies() {
		if c.Name == ScopeCookie {
			return c.Value, true
		}
	}
	return "", false
}

func (s *HandlerSuite) decodeState(rr *httptest.ResponseRecorder) StateResponse {
	var resp StateResponse
	s.Require().NoError(json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func grantedView(reg models.Region) visitor.View {
	rec := testutil.NewRecordBuilder().WithID("consent_fixed").WithRegion(reg).Build()
	return visitor.View{
		State: binding.State{
			Phase:       binding.PhaseUpdated,
			HasConsent:  true,
			Preferences: rec.Preferences,
			Record:      rec,
			Persisted:   true,
		},
		Banner: policy.New().ForRegion(reg),
		Active: []gate.Integration{{Name: "stats", Category: models.CategoryAnalytics}},
	}
}

func emptyView() visitor.View {
	return visitor.View{
		State:      binding.InitialState(),
		Banner:     policy.New().ForRegion(models.RegionGlobal),
		ShowBanner: true,
	}
}

func (s *HandlerSuite) TestGetStateMintsScope() {
	s.service.EXPECT().State(gomock.Any(), mintedScope, models.RegionEU).Return(emptyView())

	rr := s.do(http.MethodGet, "/consent", "", inRegion(models.RegionEU))

	s.Equal(http.StatusOK, rr.Code)
	token, ok := s.cookieToken(rr)
	s.Require().True(ok)
	scope, err := s.tokens.Validate(context.Background(), token)
	s.Require().NoError(err)
	s.Equal(mintedScope, scope)

	resp := s.decodeState(rr)
	s.Equal("initial", resp.Phase)
	s.True(resp.ShowBanner)
	s.True(resp.Preferences.Essential)
	s.NotNil(resp.Integrations)
}

func (s *HandlerSuite) TestGetStateReusesValidCookie() {
	token, err := s.tokens.Issue(context.Background(), existingScope)
	s.Require().NoError(err)
	s.service.EXPECT().State(gomock.Any(), existingScope, models.RegionGlobal).Return(grantedView(models.RegionGlobal))

	rr := s.do(http.MethodGet, "/consent", "", withScopeCookie(token))

	s.Equal(http.StatusOK, rr.Code)
	resp := s.decodeState(rr)
	s.True(resp.HasConsent)
	s.Require().NotNil(resp.Record)
	s.Equal("consent_fixed", resp.Record.ConsentID)
	s.Equal([]string{"stats"}, []string{resp.Integrations[0].Name})
}

func (s *HandlerSuite) TestGetStateReplacesTamperedCookie() {
	other := jwttoken.NewScopeTokenService("other-secret", time.Hour)
	token, err := other.Issue(context.Background(), existingScope)
	s.Require().NoError(err)
	s.service.EXPECT().State(gomock.Any(), mintedScope, gomock.Any()).Return(emptyView())

	rr := s.do(http.MethodGet, "/consent", "", withScopeCookie(token))
	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) TestCrawlerSeesInitialStateWithoutCookie() {
	s.service.EXPECT().State(gomock.Any(), "", gomock.Any()).Return(emptyView())

	rr := s.do(http.MethodGet, "/consent", "", asCrawler())

	s.Equal(http.StatusOK, rr.Code)
	_, ok := s.cookieToken(rr)
	s.False(ok)
}

func (s *HandlerSuite) TestCrawlerCannotDecide() {
	rr := s.do(http.MethodPost, "/consent/accept-all", "", asCrawler())
	s.Equal(http.StatusForbidden, rr.Code)
}

func (s *HandlerSuite) TestMutations() {
	tests := []struct {
		name   string
		method string
		path   string
		expect func()
	}{
		{"accept all", http.MethodPost, "/consent/accept-all", func() {
			s.service.EXPECT().AcceptAll(gomock.Any(), mintedScope, models.RegionUK).Return(grantedView(models.RegionUK), nil)
		}},
		{"reject all", http.MethodPost, "/consent/reject-all", func() {
			s.service.EXPECT().RejectAll(gomock.Any(), mintedScope, models.RegionUK).Return(grantedView(models.RegionUK), nil)
		}},
		{"do not sell", http.MethodPost, "/consent/do-not-sell", func() {
			s.service.EXPECT().DoNotSell(gomock.Any(), mintedScope, models.RegionUK).Return(grantedView(models.RegionUK), nil)
		}},
		{"reset", http.MethodDelete, "/consent", func() {
			s.service.EXPECT().Reset(gomock.Any(), mintedScope, models.RegionUK).Return(emptyView(), nil)
		}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			tt.expect()
			rr := s.do(tt.method, tt.path, "", inRegion(models.RegionUK))
			s.Equal(http.StatusOK, rr.Code)
			s.Empty(rr.Header().Get(PersistedHeader))
		})
	}
}

func (s *HandlerSuite) TestMutationNotRemembered() {
	view := grantedView(models.RegionEU)
	view.State.Persisted = false
	s.service.EXPECT().AcceptAll(gomock.Any(), mintedScope, gomock.Any()).
		Return(view, dErrors.New(dErrors.CodeStorageWrite, "consent decision could not be remembered"))

	rr := s.do(http.MethodPost, "/consent/accept-all", "")

	s.Equal(http.StatusOK, rr.Code)
	s.Equal("false", rr.Header().Get(PersistedHeader))
	s.False(s.decodeState(rr).Persisted)
}

func (s *HandlerSuite) TestMutationFailure() {
	s.service.EXPECT().RejectAll(gomock.Any(), mintedScope, gomock.Any()).
		Return(emptyView(), dErrors.New(dErrors.CodeTimeout, "consent write aborted: context cancelled"))

	rr := s.do(http.MethodPost, "/consent/reject-all", "")

	s.Equal(http.StatusGatewayTimeout, rr.Code)
	var resp httputil.ErrorResponse
	s.Require().NoError(json.NewDecoder(rr.Body).Decode(&resp))
	s.Equal("timeout", resp.Error)
}

func (s *HandlerSuite) TestSavePreferences() {
	expected := models.Preferences{Essential: true, Analytics: true}
	s.service.EXPECT().SavePreferences(gomock.Any(), mintedScope, expected, gomock.Any()).Return(grantedView(models.RegionEU), nil)

	rr := s.do(http.MethodPut, "/consent/preferences",
		`{"essential": false, "functional": false, "analytics": true, "marketing": false}`)

	s.Equal(http.StatusOK, rr.Code)
}

func (s *HandlerSuite) TestSavePreferencesRejectsBadBodies() {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"missing categories", `{"analytics": true}`, "validation_error"},
		{"unknown field", `{"functional": true, "analytics": true, "marketing": true, "sale": true}`, "bad_request"},
		{"malformed", `{"functional":`, "bad_request"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := s.do(http.MethodPut, "/consent/preferences", tt.body)
			s.Equal(http.StatusBadRequest, rr.Code)
			var resp httputil.ErrorResponse
			s.Require().NoError(json.NewDecoder(rr.Body).Decode(&resp))
			s.Equal(tt.wantCode, resp.Error)
		})
	}
}

func (s *HandlerSuite) TestIsAllowed() {
	s.service.EXPECT().IsCategoryAllowed(gomock.Any(), mintedScope, models.CategoryAnalytics).Return(false)

	rr := s.do(http.MethodGet, "/consent/allowed/analytics", "")

	s.Equal(http.StatusOK, rr.Code)
	var resp AllowedResponse
	s.Require().NoError(json.NewDecoder(rr.Body).Decode(&resp))
	s.Equal(models.CategoryAnalytics, resp.Category)
	s.False(resp.Allowed)
}

func (s *HandlerSuite) TestIsAllowedUnknownCategory() {
	rr := s.do(http.MethodGet, "/consent/allowed/sale", "")
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *HandlerSuite) TestIntegrations() {
	s.service.EXPECT().Integrations(gomock.Any(), mintedScope).Return(nil)

	rr := s.do(http.MethodGet, "/consent/integrations", "")

	s.Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{"integrations": []}`, rr.Body.String())
}

func (s *HandlerSuite) TestIntegrationAllowed() {
	s.service.EXPECT().IntegrationAllowed(gomock.Any(), mintedScope, "meta-pixel").Return(true, nil)

	rr := s.do(http.MethodGet, "/consent/integrations/meta-pixel", "")

	s.Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{"integration": "meta-pixel", "allowed": true}`, rr.Body.String())
}

func (s *HandlerSuite) TestIntegrationAllowedUnknownName() {
	s.service.EXPECT().IntegrationAllowed(gomock.Any(), mintedScope, "nope").
		Return(false, dErrors.New(dErrors.CodeNotFound, "unknown integration"))

	rr := s.do(http.MethodGet, "/consent/integrations/nope", "")

	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *HandlerSuite) TestResetNotClearedIsAnError() {
	s.service.EXPECT().Reset(gomock.Any(), mintedScope, gomock.Any()).
		Return(emptyView(), dErrors.New(dErrors.CodeTimeout, "consent write aborted: scope busy"))

	rr := s.do(http.MethodDelete, "/consent", "")

	s.Equal(http.StatusGatewayTimeout, rr.Code)
	s.Empty(rr.Header().Get(PersistedHeader))
}
