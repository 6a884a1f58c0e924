package auth

import "fmt"

// CredentialKind tags the protocol-specific credential extracted from a
// connection.
type CredentialKind int

const (
	// CredentialNone means no credential was supplied.
	CredentialNone CredentialKind = iota

	// CredentialPassword is the pgwire startup password field or the HTTP
	// Basic password.
	CredentialPassword

	// CredentialBearer is an HTTP Authorization: Bearer token.
	CredentialBearer
)

// Credential is the per-connection credential. It exists only for the
// duration of one authentication attempt.
type Credential struct {
	Kind     CredentialKind
	Password string
	Token    string
}

// NoCredential returns the absent credential.
func NoCredential() Credential {
	return Credential{Kind: CredentialNone}
}

// PasswordCredential wraps a password string.
func PasswordCredential(password string) Credential {
	return Credential{Kind: CredentialPassword, Password: password}
}

// BearerCredential wraps a bearer token.
func BearerCredential(token string) Credential {
	return Credential{Kind: CredentialBearer, Token: token}
}

// FailureKind is the closed set of authentication failure causes. Protocol
// adapters map kinds to wire representations; distinct credential-related
// kinds deliberately collapse to identical generic messages.
type FailureKind string

const (
	// TLSRequired rejects a plaintext connection under a TLS-requiring mode.
	TLSRequired FailureKind = "tls-required"

	// CertificateInvalid rejects a connection whose transport mode requires a
	// verified client certificate and none surfaced.
	CertificateInvalid FailureKind = "certificate-invalid"

	// CertificateUserMismatch rejects a verify-full connection whose
	// certificate Common Name does not equal the requested user.
	CertificateUserMismatch FailureKind = "certificate-user-mismatch"

	// UnknownRole rejects a requested role name the catalog does not know.
	UnknownRole FailureKind = "unknown-role"

	// InvalidCredential rejects a missing, malformed, or wrong credential.
	InvalidCredential FailureKind = "invalid-credential"

	// ProviderUnreachable rejects an attempt whose token exchange failed.
	ProviderUnreachable FailureKind = "provider-unreachable"

	// BadTenant rejects a token bound to a different tenant.
	BadTenant FailureKind = "bad-tenant"
)

// Error is a structured authentication failure. It carries the requested
// user for the failure kinds whose wire messages name it.
type Error struct {
	Kind FailureKind
	User string
}

func (e *Error) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Kind)
}

// Reject builds an *Error for the given kind and user.
func Reject(kind FailureKind, user string) *Error {
	return &Error{Kind: kind, User: user}
}
