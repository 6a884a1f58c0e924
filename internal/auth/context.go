package auth

import "context"

// Identity represents an authenticated identity
type Identity struct {
	// Subject is the authenticated role name
	Subject string

	// Method is how the identity was established ("provider", "certificate",
	// or "trust")
	Method string
}

// ContextKey is a type-safe key for context values
type ContextKey string

// IdentityContextKey is the key used to store the identity in the context
const IdentityContextKey ContextKey = "auth:identity"

// IdentityFromContext extracts the identity from the request context
func IdentityFromContext(ctx context.Context) *Identity {
	if identity, ok := ctx.Value(IdentityContextKey).(*Identity); ok {
		return identity
	}
	return nil
}

// ContextWithIdentity adds an identity to a context
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, identity)
}
