package services

import (
	"context"
	"errors"
	"time"

	"github.com/MoAftaab/crm-xeno/backend/models"
	"github.com/MoAftaab/crm-xeno/backend/repositories"
	"go.uber.org/zap"
)

// IdentityVerifier verifies a Google identity token; nil means unauthenticated
type IdentityVerifier interface {
	VerifyIdentityToken(ctx context.Context, token string) *models.Identity
}

// SessionIssuer mints and revokes session credentials
type SessionIssuer interface {
	IssueSessionToken(subjectID, email string) (string, error)
	Revoke(ctx context.Context, jti string, until time.Time) error
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token string          `json:"token"`
	User  models.Identity `json:"user"`
}

// AuthService exchanges Google identity tokens for session credentials
type AuthService struct {
	verifier IdentityVerifier
	issuer   SessionIssuer
	users    repositories.UserRepository // Optional
	logger   *zap.Logger
}

// NewAuthService creates a new AuthService. users may be nil, in which case
// logins are not persisted.
func NewAuthService(verifier IdentityVerifier, issuer SessionIssuer, users repositories.UserRepository, logger *zap.Logger) *AuthService {
	return &AuthService{
		verifier: verifier,
		issuer:   issuer,
		users:    users,
		logger:   logger,
	}
}

// Login verifies the identity token, records the user and issues a session credential
func (s *AuthService) Login(ctx context.Context, idToken string) (*LoginResult, error) {
	identity := s.verifier.VerifyIdentityToken(ctx, idToken)
	if identity == nil {
		return nil, ErrUnauthorized
	}

	if s.users != nil {
		stored, err := s.users.UpsertByGoogleID(ctx, models.NewUserFromIdentity(*identity))
		if err != nil {
			return nil, WrapInternal("failed to record user", err)
		}
		*identity = stored.Identity()
	}

	// Session subject is the Google subject, not the user row id
	token, err := s.issuer.IssueSessionToken(identity.ID, identity.Email)
	if err != nil {
		return nil, WrapInternal("failed to issue session", err)
	}

	s.logger.Info("user signed in",
		zap.String("subject_id", identity.ID),
		zap.Bool("persisted", s.users != nil))

	return &LoginResult{
		Token: token,
		User:  *identity,
	}, nil
}

// CurrentUser returns the profile of the authenticated subject. Without a
// user store, or when the row is gone, only the credential's claims are known.
func (s *AuthService) CurrentUser(ctx context.Context, subjectID, email string) (*models.Identity, error) {
	fallback := &models.Identity{ID: subjectID, Email: email}
	if s.users == nil {
		return fallback, nil
	}

	user, err := s.users.GetByGoogleID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fallback, nil
		}
		return nil, WrapInternal("failed to load user", err)
	}

	identity := user.Identity()
	return &identity, nil
}

// Logout revokes the credential until its expiry
func (s *AuthService) Logout(ctx context.Context, sessionID string, expiresAt time.Time) error {
	if err := s.issuer.Revoke(ctx, sessionID, expiresAt); err != nil {
		return WrapInternal("failed to revoke session", err)
	}
	return nil
}
