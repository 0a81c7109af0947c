package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-economy/internal/config"
	"token-economy/internal/handler"
)

const testSecret = "test-secret-with-enough-entropy"

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret: testSecret,
		Issuer:    "https://auth.example.test",
		Audience:  "authenticated",
	}
}

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func validClaims(sub string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    "https://auth.example.test",
		Audience:  jwt.ClaimStrings{"authenticated"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
}

func TestAuthenticator_Verify(t *testing.T) {
	auth := NewAuthenticator(testAuthConfig())
	user := uuid.New()

	t.Run("valid token", func(t *testing.T) {
		got, err := auth.Verify("Bearer " + signToken(t, testSecret, validClaims(user.String())))
		require.NoError(t, err)
		assert.Equal(t, user, got)
	})

	t.Run("scheme is case insensitive", func(t *testing.T) {
		got, err := auth.Verify("bearer " + signToken(t, testSecret, validClaims(user.String())))
		require.NoError(t, err)
		assert.Equal(t, user, got)
	})

	expired := validClaims(user.String())
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims(user.String())
	noExpiry.ExpiresAt = nil

	wrongAudience := validClaims(user.String())
	wrongAudience.Audience = jwt.ClaimStrings{"anon"}

	wrongIssuer := validClaims(user.String())
	wrongIssuer.Issuer = "https://evil.example.test"

	rejected := []struct {
		name   string
		header string
		want   error
	}{
		{"empty", "", ErrMissingToken},
		{"no scheme", signToken(t, testSecret, validClaims(user.String())), ErrMissingToken},
		{"basic scheme", "Basic dXNlcjpwYXNz", ErrMissingToken},
		{"garbage", "Bearer not.a.jwt", ErrInvalidToken},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", validClaims(user.String())), ErrInvalidToken},
		{"expired", "Bearer " + signToken(t, testSecret, expired), ErrInvalidToken},
		{"no expiry", "Bearer " + signToken(t, testSecret, noExpiry), ErrInvalidToken},
		{"wrong audience", "Bearer " + signToken(t, testSecret, wrongAudience), ErrInvalidToken},
		{"wrong issuer", "Bearer " + signToken(t, testSecret, wrongIssuer), ErrInvalidToken},
		{"subject not a uuid", "Bearer " + signToken(t, testSecret, validClaims("12345")), ErrInvalidToken},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Verify(tt.header)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("unsigned token", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims(user.String())).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = auth.Verify("Bearer " + tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(context.Context) error { return f.err }

func newTestServer(t *testing.T, dispatcher http.Handler, health HealthChecker) http.Handler {
	t.Helper()
	s, err := New(&Dependencies{
		Config: config.ServerConfig{
			Path:           "/token-economy",
			RequestTimeout: 5 * time.Second,
			MaxBodyBytes:   1024,
		},
		Auth:       NewAuthenticator(testAuthConfig()),
		Dispatcher: dispatcher,
		Health:     health,
	})
	require.NoError(t, err)
	return s.Handler()
}

// echoUser writes the authenticated user id.
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, ok := handler.UserIDFromContext(r.Context())
	if !ok {
		handler.WriteError(w, http.StatusInternalServerError, "no user")
		return
	}
	handler.WriteJSON(w, http.StatusOK, map[string]string{"userId": id.String()})
})

func TestServer_Preflight(t *testing.T) {
	srv := newTestServer(t, echoUser, nil)

	req := httptest.NewRequest(http.MethodOptions, "/token-economy", nil)
	req.Header.Set("Origin", "https://site.example.test")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, content-type, x-client-info, apikey", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestServer_Authentication(t *testing.T) {
	srv := newTestServer(t, echoUser, nil)
	user := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/token-economy", strings.NewReader(`{"action":"get_wallet"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/token-economy", strings.NewReader(`{"action":"get_wallet"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims(user.String())))
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"`+user.String()+`"}`, rec.Body.String())
	_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestServer_RequestIDPropagation(t *testing.T) {
	var seen string
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = handler.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}), nil)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodPost, "/token-economy", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims(uuid.NewString())))
	req.Header.Set("X-Request-ID", id)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, id, seen)
	assert.Equal(t, id, rec.Header().Get("X-Request-ID"))
}

func TestServer_RecoversFromPanic(t *testing.T) {
	srv := newTestServer(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), nil)

	req := httptest.NewRequest(http.MethodPost, "/token-economy", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims(uuid.NewString())))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestServer_BodyLimit(t *testing.T) {
	var readErr error
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}), nil)

	req := httptest.NewRequest(http.MethodPost, "/token-economy", strings.NewReader(strings.Repeat("x", 2048)))
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims(uuid.NewString())))
	srv.ServeHTTP(httptest.NewRecorder(), req)

	var tooLarge *http.MaxBytesError
	assert.True(t, errors.As(readErr, &tooLarge))
}

func TestServer_Routing(t *testing.T) {
	srv := newTestServer(t, echoUser, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token-economy", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/elsewhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t, echoUser, fakeHealth{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	newTestServer(t, echoUser, fakeHealth{err: errors.New("down")}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
