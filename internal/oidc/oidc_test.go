package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestInsecureVerifierReadsClaims(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "student-1",
		"email": "s1@example.edu",
	}).SignedString([]byte("any key"))
	require.NoError(t, err)

	tok, err := NewInsecureVerifier().Verify(context.Background(), raw)
	require.NoError(t, err)

	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "student-1", claims["sub"])
	require.Equal(t, "s1@example.edu", claims["email"])
}

func TestInsecureVerifierRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "abc", "a.b", "a.!!!.c"} {
		_, err := NewInsecureVerifier().Verify(context.Background(), raw)
		require.Error(t, err, raw)
	}
}

func TestNewVerifierDiscovery(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"issuer":                 srv.URL,
			"jwks_uri":               srv.URL + "/keys",
			"authorization_endpoint": srv.URL + "/auth",
			"token_endpoint":         srv.URL + "/token",
		})
	}))
	defer srv.Close()

	v, err := NewVerifier(context.Background(), srv.URL, "coursepilot")
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "not-a-jwt")
	require.Error(t, err)

	_, err = NewVerifier(context.Background(), srv.URL+"/missing", "coursepilot")
	require.Error(t, err)
}
