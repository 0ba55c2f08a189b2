package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/hirewire/auth-service/internal/models"
	"github.com/hirewire/auth-service/internal/security"
	service "github.com/hirewire/auth-service/internal/services"
	pkgerrors "github.com/hirewire/auth-service/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAuthService returns canned results so the tests exercise only the wire
// mapping, not the auth logic behind it.
type stubAuthService struct {
	registerID  int64
	pair        *service.TokenPair
	claims      *models.TokenClaims
	err         error
	lastMeta    service.RequestMeta
	lastRefresh string
}

func (s *stubAuthService) Register(_ context.Context, _, _, _ string, meta service.RequestMeta) (int64, error) {
	s.lastMeta = meta
	return s.registerID, s.err
}

func (s *stubAuthService) Login(_ context.Context, _, _ string, meta service.RequestMeta) (*service.TokenPair, error) {
	s.lastMeta = meta
	return s.pair, s.err
}

func (s *stubAuthService) Refresh(_ context.Context, refreshToken string, meta service.RequestMeta) (*service.TokenPair, error) {
	s.lastMeta = meta
	s.lastRefresh = refreshToken
	return s.pair, s.err
}

func (s *stubAuthService) Logout(_ context.Context, _ string, meta service.RequestMeta) error {
	s.lastMeta = meta
	return s.err
}

func (s *stubAuthService) Authorize(_ context.Context, _ string) (*models.TokenClaims, error) {
	return s.claims, s.err
}

func doLogin(t *testing.T, svc service.AuthService) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHandler(svc)
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@b.com","password":"pw"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func TestHandler_ErrorMapping(t *testing.T) {
	t.Run("rate limited maps to 429 with retry hint", func(t *testing.T) {
		svc := &stubAuthService{err: &pkgerrors.RateLimitedError{Operation: "login", RetryAfter: 42 * time.Second}}
		rec := doLogin(t, svc)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "43", rec.Header().Get("Retry-After"))
	})

	t.Run("every token failure maps to one generic 401", func(t *testing.T) {
		tokenErrors := []error{
			pkgerrors.ErrInvalidCredentials,
			pkgerrors.ErrMalformedToken,
			pkgerrors.ErrExpiredToken,
			pkgerrors.ErrRevokedToken,
			pkgerrors.ErrUnknownToken,
			pkgerrors.ErrWrongTokenType,
			pkgerrors.ErrTokenReuseDetected,
		}
		var bodies []string
		for _, tokenErr := range tokenErrors {
			rec := doLogin(t, &stubAuthService{err: tokenErr})
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			bodies = append(bodies, rec.Body.String())
		}
		for _, body := range bodies {
			assert.Equal(t, bodies[0], body)
		}
	})

	t.Run("duplicate identity maps to 409", func(t *testing.T) {
		svc := &stubAuthService{err: pkgerrors.ErrIdentityExists}
		h := NewHandler(svc)
		req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{"email":"a@b.com","password":"pw"}`))
		rec := httptest.NewRecorder()
		h.Register(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unexpected error maps to opaque 500", func(t *testing.T) {
		svc := &stubAuthService{err: pkgerrors.ErrInternal}
		rec := doLogin(t, svc)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "internal_error_detail")
	})
}

func TestHandler_Login_Success(t *testing.T) {
	svc := &stubAuthService{pair: &service.TokenPair{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
	}}
	rec := doLogin(t, svc)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"accessToken":"access","refreshToken":"refresh","tokenType":"Bearer"}`, rec.Body.String())
}

func TestHandler_Logout_NoContent(t *testing.T) {
	h := NewHandler(&stubAuthService{})
	req := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(`{"refreshToken":"tok"}`))
	rec := httptest.NewRecorder()
	h.Logout(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClientIP(t *testing.T) {
	t.Run("trusts first valid forwarded address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		assert.Equal(t, "203.0.113.7", clientIP(req))
	})

	t.Run("ignores garbage forwarded header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "not-an-address")
		req.RemoteAddr = "192.0.2.9:4242"
		assert.Equal(t, "192.0.2.9", clientIP(req))
	})
}

func TestAuthMiddleware(t *testing.T) {
	newProtected := func(svc service.AuthService) *mux.Router {
		r := mux.NewRouter()
		r.Use(AuthMiddleware(svc, security.NopSink{}))
		r.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
			subject, ok := SubjectFromContext(r.Context())
			require.True(t, ok)
			w.Write([]byte(subject))
		}).Methods("GET")
		return r
	}

	t.Run("valid bearer token passes subject through", func(t *testing.T) {
		svc := &stubAuthService{claims: &models.TokenClaims{Subject: "a@b.com"}}
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer sometoken")
		rec := httptest.NewRecorder()
		newProtected(svc).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "a@b.com", rec.Body.String())
	})

	t.Run("missing header rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		rec := httptest.NewRecorder()
		newProtected(&stubAuthService{}).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejected token stays generic", func(t *testing.T) {
		svc := &stubAuthService{err: pkgerrors.ErrExpiredToken}
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer expired")
		rec := httptest.NewRecorder()
		newProtected(svc).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NotContains(t, rec.Body.String(), "expired")
	})
}
