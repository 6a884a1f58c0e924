// Package identitytest provides a mock identity provider for tests.
package identitytest

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authgate/internal/identity"
)

// Credentials keys the mock provider's user registry.
type Credentials struct {
	ClientID uuid.UUID
	Secret   uuid.UUID
}

// StartProvider runs a mock token-exchange endpoint that issues RS256 tokens
// for registered users and rejects everyone else with a 400.
func StartProvider(t *testing.T, key *rsa.PrivateKey, tenantID uuid.UUID, users map[Credentials]string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req identity.ExchangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed request", http.StatusBadRequest)
			return
		}
		email, ok := users[Credentials{ClientID: req.ClientID, Secret: req.Secret}]
		if !ok {
			http.Error(w, "unknown user", http.StatusBadRequest)
			return
		}
		token := SignToken(t, key, identity.Claims{
			Email:    email,
			TenantID: tenantID,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		json.NewEncoder(w).Encode(identity.ExchangeResponse{AccessToken: token})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// SignToken signs claims with the provider's RS256 key.
func SignToken(t *testing.T, key *rsa.PrivateKey, claims identity.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

// PublicKeyPEM encodes the provider key's public half in PEM form, the shape
// the validator is configured with.
func PublicKeyPEM(t *testing.T, key *rsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}
