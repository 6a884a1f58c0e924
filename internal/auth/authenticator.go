// Package auth decides, for one inbound connection, which identity (if any)
// the connection is authenticated as.
package auth

import (
	"context"
	"errors"

	"authgate/internal/catalog"
	"authgate/internal/identity"
	"authgate/internal/observability/logging"
	"authgate/internal/tlsutil"
)

// TokenExchanger trades a decoded client-id/secret pair for a signed access
// token. Impure and I/O-bound; injectable so the decision logic is testable
// with deterministic fakes.
type TokenExchanger interface {
	Exchange(ctx context.Context, password identity.AppPassword) (string, error)
}

// TokenValidator verifies a signed access token and produces its claims.
type TokenValidator interface {
	Validate(token string) (*identity.Claims, error)
}

// Provider bundles the capabilities of a configured identity provider. A nil
// *Provider means all authentication is transport/trust-based.
type Provider struct {
	Exchanger TokenExchanger
	Validator TokenValidator
}

// Request carries everything one authentication attempt depends on. It is
// transient; nothing is cached across attempts.
type Request struct {
	// User is the requested role name.
	User string

	// Credential is the protocol-specific credential.
	Credential Credential

	// Transport is the admission decision from the TLS policy.
	Transport tlsutil.Outcome

	// CertCommonName is the verified client certificate's Common Name.
	// Meaningful only when HasCert is true.
	CertCommonName string

	// HasCert reports whether the transport layer verified a client
	// certificate against the configured CA.
	HasCert bool
}

// Authenticator resolves one connection's identity from the transport
// outcome, the credential, and the configured trust anchors. Its
// configuration is immutable, so concurrent attempts need no locking.
type Authenticator struct {
	mode     tlsutil.Mode
	provider *Provider
	catalog  catalog.Catalog
	logger   *logging.Logger
}

// New creates an Authenticator. provider may be nil.
func New(mode tlsutil.Mode, provider *Provider, cat catalog.Catalog, logger *logging.Logger) *Authenticator {
	return &Authenticator{
		mode:     mode,
		provider: provider,
		catalog:  cat,
		logger:   logger.WithModule("auth"),
	}
}

// Authenticate evaluates the decision rules top to bottom; the first matching
// rule decides. On success it returns the authenticated username; on failure
// a *Error whose kind the protocol adapters map to wire form.
//
// When a provider is configured, a valid client certificate only satisfies
// the transport-layer requirement: identity still comes from the provider
// exchange. Without a provider, certificate matching scoped by the transport
// mode is the only identity mechanism.
func (a *Authenticator) Authenticate(ctx context.Context, r Request) (string, error) {
	if r.Transport.Kind == tlsutil.TLSRequiredButAbsent {
		return "", Reject(TLSRequired, r.User)
	}

	if a.provider != nil {
		return a.authenticateProvider(ctx, r)
	}
	return a.authenticateTrust(ctx, r)
}

func (a *Authenticator) authenticateProvider(ctx context.Context, r Request) (string, error) {
	switch r.Credential.Kind {
	case CredentialBearer:
		return a.validateToken(r.Credential.Token, r.User)

	case CredentialPassword:
		password, err := identity.ParseAppPassword(r.Credential.Password)
		if err != nil {
			return "", Reject(InvalidCredential, r.User)
		}
		token, err := a.provider.Exchanger.Exchange(ctx, password)
		if err != nil {
			a.logger.Warn("Token exchange failed", logging.Err(err))
			return "", Reject(ProviderUnreachable, r.User)
		}
		return a.validateToken(token, r.User)

	default:
		return "", Reject(InvalidCredential, r.User)
	}
}

// validateToken verifies a provider token and binds its email to the
// requested user. An empty requested user (the HTTP bearer path, which
// carries no separate user field) takes the claims' email as the identity.
func (a *Authenticator) validateToken(token, user string) (string, error) {
	claims, err := a.provider.Validator.Validate(token)
	if err != nil {
		if errors.Is(err, identity.ErrBadTenant) {
			return "", Reject(BadTenant, user)
		}
		return "", Reject(InvalidCredential, user)
	}
	if user != "" && claims.Email != user {
		return "", Reject(InvalidCredential, user)
	}
	return claims.Email, nil
}

func (a *Authenticator) authenticateTrust(ctx context.Context, r Request) (string, error) {
	switch a.mode {
	case tlsutil.ModeVerifyFull:
		if !r.HasCert {
			return "", Reject(CertificateInvalid, r.User)
		}
		if r.CertCommonName != r.User {
			return "", Reject(CertificateUserMismatch, r.User)
		}
	case tlsutil.ModeVerifyCA:
		// The certificate proves transport trust only; its Common Name is
		// not matched against the requested user.
		if !r.HasCert {
			return "", Reject(CertificateInvalid, r.User)
		}
	}

	if !a.catalog.RoleExists(ctx, r.User) {
		return "", Reject(UnknownRole, r.User)
	}
	return r.User, nil
}
