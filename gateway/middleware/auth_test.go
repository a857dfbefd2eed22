package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func callerEcho(t *testing.T, want *common.Address) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if want != nil {
			require.True(t, ok)
			require.Equal(t, *want, caller)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticatorSetsCaller(t *testing.T) {
	caller := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "cdp-auth"}, nil)
	handler := auth.Middleware()(callerEcho(t, &caller))

	token := signToken(t, jwt.MapClaims{
		"sub": caller.Hex(),
		"iss": "cdp-auth",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/cdp/deposit", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
}

func TestAuthenticatorRejects(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "cdp-auth"}, nil)
	handler := auth.Middleware("cdp:admin")(callerEcho(t, nil))
	future := time.Now().Add(time.Hour).Unix()
	sub := "0x00000000000000000000000000000000000000a1"

	cases := map[string]struct {
		header string
		status int
	}{
		"missing":        {"", http.StatusUnauthorized},
		"not bearer":     {"Basic abc", http.StatusUnauthorized},
		"no expiry":      {"Bearer " + signToken(t, jwt.MapClaims{"sub": sub, "iss": "cdp-auth"}), http.StatusUnauthorized},
		"expired":        {"Bearer " + signToken(t, jwt.MapClaims{"sub": sub, "iss": "cdp-auth", "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		"wrong issuer":   {"Bearer " + signToken(t, jwt.MapClaims{"sub": sub, "iss": "other", "exp": future}), http.StatusUnauthorized},
		"bad subject":    {"Bearer " + signToken(t, jwt.MapClaims{"sub": "alice", "iss": "cdp-auth", "exp": future}), http.StatusUnauthorized},
		"missing scope":  {"Bearer " + signToken(t, jwt.MapClaims{"sub": sub, "iss": "cdp-auth", "exp": future, "scope": "cdp:user"}), http.StatusForbidden},
		"admin accepted": {"Bearer " + signToken(t, jwt.MapClaims{"sub": sub, "iss": "cdp-auth", "exp": future, "scope": "cdp:user cdp:admin"}), http.StatusOK},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/cdp/admin/release", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			require.Equal(t, tc.status, res.Code)
		})
	}
}

func TestAuthenticatorDisabledUsesCallerHeader(t *testing.T) {
	caller := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	auth := NewAuthenticator(AuthConfig{Enabled: false}, nil)
	handler := auth.Middleware()(callerEcho(t, &caller))

	req := httptest.NewRequest(http.MethodPost, "/v1/cdp/deposit", nil)
	req.Header.Set(CallerHeader, caller.Hex())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	req.Header.Set(CallerHeader, "garbage")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestRequestIDAssignsAndPropagates(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	require.Equal(t, seen, res.Header().Get(RequestIDHeader))

	const fixed = "4f1c2b9e-8d0a-4c3f-9b7e-2a6d5e4f3c21"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, fixed)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, fixed, seen)
}

func TestCORSAllowsListedOrigins(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"https://app.example"}})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/v1/cdp/deposit", nil)
	req.Header.Set("Origin", "https://app.example")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
	require.Equal(t, "https://app.example", res.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/cdp/income", nil)
	req.Header.Set("Origin", "https://evil.example")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
}
