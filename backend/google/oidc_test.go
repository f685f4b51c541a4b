package google

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testIssuer   = "https://accounts.google.com"
	testClientID = "client-123.apps.googleusercontent.com"
)

func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signClaims(t *testing.T, key *rsa.PrivateKey, kid string, claims map[string]any) string {
	t.Helper()
	opts := (&jose.SignerOptions{}).WithType("JWT")
	if kid != "" {
		opts = opts.WithHeader("kid", kid)
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, opts)
	require.NoError(t, err)

	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	jws, err := signer.Sign(payload)
	require.NoError(t, err)
	token, err := jws.CompactSerialize()
	require.NoError(t, err)
	return token
}

func validClaims(issuer string, now time.Time) map[string]any {
	return map[string]any{
		"iss":     issuer,
		"aud":     testClientID,
		"sub":     "110248495921238986420",
		"email":   "ada@example.com",
		"name":    "Ada Lovelace",
		"picture": "https://lh3.googleusercontent.com/a/ada",
		"iat":     now.Add(-time.Minute).Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	}
}

func TestOIDCVerifier_VerifyIdentityToken(t *testing.T) {
	key := newTestKey(t)
	otherKey := newTestKey(t)
	now := time.Now()

	verifier := NewOIDCVerifierWithVerifier(gooidc.NewVerifier(
		testIssuer,
		&gooidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}},
		&gooidc.Config{ClientID: testClientID, Now: func() time.Time { return now }},
	), Config{ClientID: testClientID}, zap.NewNop())

	t.Run("valid token", func(t *testing.T) {
		token := signClaims(t, key, "", validClaims(testIssuer, now))

		identity := verifier.VerifyIdentityToken(context.Background(), token)

		require.NotNil(t, identity)
		assert.Equal(t, "110248495921238986420", identity.ID)
		assert.Equal(t, "ada@example.com", identity.Email)
		assert.Equal(t, "Ada Lovelace", identity.Name)
		assert.Equal(t, "https://lh3.googleusercontent.com/a/ada", identity.Picture)
	})

	tests := []struct {
		name    string
		token   func() string
		wantErr error
	}{
		{
			name:    "empty token",
			token:   func() string { return "" },
			wantErr: ErrEmptyToken,
		},
		{
			name:    "not a jwt",
			token:   func() string { return "not-a-jwt" },
			wantErr: ErrProviderRejected,
		},
		{
			name: "signed by unknown key",
			token: func() string {
				return signClaims(t, otherKey, "", validClaims(testIssuer, now))
			},
			wantErr: ErrProviderRejected,
		},
		{
			name: "wrong audience",
			token: func() string {
				claims := validClaims(testIssuer, now)
				claims["aud"] = "someone-else"
				return signClaims(t, key, "", claims)
			},
			wantErr: ErrProviderRejected,
		},
		{
			name: "wrong issuer",
			token: func() string {
				return signClaims(t, key, "", validClaims("https://evil.example.com", now))
			},
			wantErr: ErrProviderRejected,
		},
		{
			name: "expired",
			token: func() string {
				claims := validClaims(testIssuer, now)
				claims["exp"] = now.Add(-time.Minute).Unix()
				return signClaims(t, key, "", claims)
			},
			wantErr: ErrProviderRejected,
		},
		{
			name: "missing email",
			token: func() string {
				claims := validClaims(testIssuer, now)
				delete(claims, "email")
				return signClaims(t, key, "", claims)
			},
			wantErr: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tt.token()

			assert.Nil(t, verifier.VerifyIdentityToken(context.Background(), token))

			_, err := verifier.verify(context.Background(), token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// newDiscoveryServer serves an OIDC discovery document and JWKS for key
func newDiscoveryServer(t *testing.T, key *rsa.PrivateKey, kid string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                                server.URL,
			"authorization_endpoint":                server.URL + "/auth",
			"token_endpoint":                        server.URL + "/token",
			"jwks_uri":                              server.URL + "/certs",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/certs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     kid,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}}})
	})

	return server
}

func TestNewOIDCVerifierWithVerifier_ClientTimeout(t *testing.T) {
	keySet := &gooidc.StaticKeySet{}
	inner := gooidc.NewVerifier(testIssuer, keySet, &gooidc.Config{ClientID: testClientID})

	verifier := NewOIDCVerifierWithVerifier(inner, Config{}, zap.NewNop())
	require.NotNil(t, verifier.httpClient)
	assert.NotSame(t, http.DefaultClient, verifier.httpClient)
	assert.Equal(t, 10*time.Second, verifier.httpClient.Timeout)

	verifier = NewOIDCVerifierWithVerifier(inner, Config{HTTPTimeout: 3 * time.Second}, zap.NewNop())
	assert.Equal(t, 3*time.Second, verifier.httpClient.Timeout)
}

func TestNewOIDCVerifier(t *testing.T) {
	key := newTestKey(t)

	t.Run("discovers keys and verifies tokens", func(t *testing.T) {
		server := newDiscoveryServer(t, key, "key-1")
		defer server.Close()

		verifier, err := NewOIDCVerifier(context.Background(), Config{
			IssuerURL:   server.URL,
			ClientID:    testClientID,
			HTTPTimeout: 5 * time.Second,
		}, zap.NewNop())
		require.NoError(t, err)

		token := signClaims(t, key, "key-1", validClaims(server.URL, time.Now()))
		identity := verifier.VerifyIdentityToken(context.Background(), token)

		require.NotNil(t, identity)
		assert.Equal(t, "ada@example.com", identity.Email)
	})

	t.Run("requires client id", func(t *testing.T) {
		_, err := NewOIDCVerifier(context.Background(), Config{IssuerURL: testIssuer}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client ID is required")
	})

	t.Run("discovery failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		_, err := NewOIDCVerifier(context.Background(), Config{
			IssuerURL: server.URL,
			ClientID:  testClientID,
		}, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "oidc discovery failed")
	})
}
