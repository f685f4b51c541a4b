package middleware

import (
	"context"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Context key type to avoid collisions
type contextKey string

// identityKey is the context key for the authenticated identity
const identityKey contextKey = "identity"

// Identity is the authenticated principal attached to a request
type Identity struct {
	SubjectID string
	Email     string
	SessionID string    // jti of the presented credential
	ExpiresAt time.Time // expiry of the presented credential
}

// IdentityFromContext retrieves the authenticated identity from context
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// WithIdentity adds an authenticated identity to the context
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}
