package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1}, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.clockNow = func() time.Time { return now }
	handler := limiter.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/deck", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusTooManyRequests, res.Code)

	now = now.Add(time.Second)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestRateLimiterSeparatesClients(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1}, nil)
	handler := limiter.Middleware(okHandler())

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest(http.MethodGet, "/deck", nil)
		req.Header.Set("X-Forwarded-For", ip+", 172.16.0.1")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		require.Equal(t, http.StatusOK, res.Code, ip)
	}
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1}, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.clockNow = func() time.Time { return now }
	require.True(t, limiter.allow("a"))
	now = now.Add(10 * time.Minute)
	require.True(t, limiter.allow("b"))
	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	require.NotContains(t, limiter.visitors, "a")
	require.Contains(t, limiter.visitors, "b")
}

func TestAuthenticatorAcceptsScopedToken(t *testing.T) {
	cfg := AuthConfig{HMACSecret: "secret", Issuer: "lootpool", Audience: "api"}
	auth := NewAuthenticator(cfg, nil)
	subject := [20]byte{0xAD}

	var seen *Principal
	handler := auth.Middleware(ScopeAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
	}))

	tok, err := IssueToken(cfg, subject, []string{ScopeAdmin, ScopeOracle}, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/admin/fee", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, seen)
	require.Equal(t, subject, seen.Address)
	require.True(t, seen.HasScope(ScopeOracle))
}

func TestAuthenticatorRejections(t *testing.T) {
	cfg := AuthConfig{HMACSecret: "secret", Issuer: "lootpool"}
	handler := NewAuthenticator(cfg, nil).Middleware(ScopeAdmin)(okHandler())
	subject := [20]byte{0x01}

	wrongScope, err := IssueToken(cfg, subject, []string{ScopeUser}, time.Minute)
	require.NoError(t, err)
	wrongSecret, err := IssueToken(AuthConfig{HMACSecret: "other", Issuer: "lootpool"}, subject, []string{ScopeAdmin}, time.Minute)
	require.NoError(t, err)
	wrongIssuer, err := IssueToken(AuthConfig{HMACSecret: "secret", Issuer: "elsewhere"}, subject, []string{ScopeAdmin}, time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + wrongSecret, http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + wrongIssuer, http.StatusUnauthorized},
		{"wrong scope", "Bearer " + wrongScope, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/fee", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			require.Equal(t, tc.status, res.Code)
		})
	}
}

func TestAuthenticatorDisabledTrustsCallerHeader(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{}, nil)
	require.False(t, auth.Enabled())
	var seen *Principal
	handler := auth.Middleware(ScopeAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
	}))
	caller := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	req := httptest.NewRequest(http.MethodPost, "/admin/fee", nil)
	req.Header.Set(CallerHeader, caller.Hex())
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, seen)
	require.Equal(t, [20]byte(caller), seen.Address)
}

func TestCORSAllowList(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/userAction", nil)
	req.Header.Set("Origin", "https://app.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, "https://app.example", res.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/deck", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDAssignsAndPreserves(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, seen, 36)
	require.Equal(t, seen, res.Header().Get(RequestIDHeader))

	const inbound = "0b0f8d4e-0f61-4c1e-9d8a-5b7f3f2f6d11"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, inbound)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, inbound, seen)
}
