package identity

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrBadTenant indicates an otherwise valid token bound to a different tenant
// than this deployment.
var ErrBadTenant = errors.New("token tenant does not match configured tenant")

// Claims is the decoded payload of a provider-issued access token.
type Claims struct {
	Email       string    `json:"email"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`

	jwt.RegisteredClaims
}

// Validator verifies provider-issued access tokens against the provider's
// public key and this deployment's tenant binding. Verification is a pure
// computation; a Validator is safe for concurrent use.
type Validator struct {
	key      *rsa.PublicKey
	tenantID uuid.UUID
}

// NewValidator constructs a Validator from the provider's public key in PEM
// form and the tenant this deployment is bound to.
func NewValidator(publicKeyPEM []byte, tenantID uuid.UUID) (*Validator, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse provider public key: %w", err)
	}
	return &Validator{key: key, tenantID: tenantID}, nil
}

// Validate verifies the token's signature and expiry and checks the tenant
// binding. Tokens signed with any algorithm other than RS256 are rejected.
func (v *Validator) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return v.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	if claims.TenantID != v.tenantID {
		return nil, ErrBadTenant
	}
	return claims, nil
}
