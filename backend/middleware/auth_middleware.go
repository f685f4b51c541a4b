package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MoAftaab/crm-xeno/backend/session"
	"github.com/MoAftaab/crm-xeno/backend/utils"
	"go.uber.org/zap"
)

// UnauthenticatedMessage is the only message returned on a rejected request
const UnauthenticatedMessage = "Not authenticated"

// TokenValidator defines the interface for validating session credentials
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*session.Claims, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		logger:    logger,
	}
}

// RequireAuth rejects requests without a valid credential with 401.
// The handler never runs for an unauthenticated request.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path))
			writeUnauthenticated(w)
			return
		}

		identity, ok := m.authenticate(ctx, requestID, token)
		if !ok {
			writeUnauthenticated(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
	})
}

// Authenticate attaches an identity when a valid credential is presented and
// lets requests without one through. A credential that is present but
// invalid is still rejected with 401.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, ok := m.authenticate(ctx, requestID, token)
		if !ok {
			writeUnauthenticated(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
	})
}

func (m *AuthMiddleware) authenticate(ctx context.Context, requestID, token string) (Identity, bool) {
	claims, err := m.validator.ValidateToken(ctx, token)
	if err != nil {
		m.logger.Warn("token validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		return Identity{}, false
	}

	identity := Identity{
		SubjectID: claims.SubjectID,
		Email:     claims.Email,
		SessionID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}

	m.logger.Debug("authentication successful",
		zap.String("request_id", requestID),
		zap.String("subject_id", identity.SubjectID))
	return identity, true
}

func writeUnauthenticated(w http.ResponseWriter) {
	_ = utils.WriteUnauthorized(w, UnauthenticatedMessage)
}

// extractBearerToken extracts the Bearer token from the Authorization header.
// A malformed header counts as no credential.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
