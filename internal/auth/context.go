// internal/auth/context.go
package auth

import (
	"context"
)

type contextKey string

const (
	identityKey contextKey = "auth:identity"
	authTypeKey contextKey = "auth:type"
)

// AuthType represents the type of authentication used
type AuthType string

const (
	// AuthTypeMTLS represents mTLS authentication
	AuthTypeMTLS AuthType = "mtls"

	// AuthTypeOIDC represents OIDC session authentication
	AuthTypeOIDC AuthType = "oidc"

	// AuthTypeBearer represents Bearer token authentication
	AuthTypeBearer AuthType = "bearer"
)

// IdentityFromContext extracts the identity from the request context
func IdentityFromContext(ctx context.Context) *Identity {
	if identity, ok := ctx.Value(identityKey).(*Identity); ok {
		return identity
	}
	return nil
}

// ContextWithIdentity adds an identity to a context
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// AuthTypeFromContext extracts the authentication type from the context
func AuthTypeFromContext(ctx context.Context) AuthType {
	if authType, ok := ctx.Value(authTypeKey).(AuthType); ok {
		return authType
	}
	return ""
}

// ContextWithAuthType adds an authentication type to a context
func ContextWithAuthType(ctx context.Context, authType AuthType) context.Context {
	return context.WithValue(ctx, authTypeKey, authType)
}

// Authenticated stores identity together with the type that produced it
func Authenticated(ctx context.Context, identity *Identity) context.Context {
	return ContextWithAuthType(ContextWithIdentity(ctx, identity), AuthType(identity.Provider))
}
