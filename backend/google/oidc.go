package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/MoAftaab/crm-xeno/backend/models"
	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultIssuerURL is Google's OIDC issuer
const DefaultIssuerURL = "https://accounts.google.com"

// OIDCVerifier verifies Google ID tokens locally against the provider's
// published signing keys. Same nil-on-failure contract as TokenInfoClient.
type OIDCVerifier struct {
	verifier   *gooidc.IDTokenVerifier
	httpClient *http.Client
	logger     *zap.Logger
}

type idTokenClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// NewOIDCVerifier performs OIDC discovery against the issuer (one request at startup)
func NewOIDCVerifier(ctx context.Context, cfg Config, logger *zap.Logger) (*OIDCVerifier, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	issuer := cfg.IssuerURL
	if issuer == "" {
		issuer = DefaultIssuerURL
	}

	httpClient := cfg.client()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	provider, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}

	return &OIDCVerifier{
		verifier:   provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// NewOIDCVerifierWithVerifier wraps an already configured go-oidc verifier.
// Key fetches use cfg's timeout-bound client.
func NewOIDCVerifierWithVerifier(verifier *gooidc.IDTokenVerifier, cfg Config, logger *zap.Logger) *OIDCVerifier {
	return &OIDCVerifier{
		verifier:   verifier,
		httpClient: cfg.client(),
		logger:     logger,
	}
}

// VerifyIdentityToken returns the verified identity or nil
func (v *OIDCVerifier) VerifyIdentityToken(ctx context.Context, token string) *models.Identity {
	identity, err := v.verify(ctx, token)
	if err != nil {
		v.logger.Warn("identity token verification failed",
			zap.String("verifier", "oidc"),
			zap.Error(err))
		return nil
	}
	return identity
}

func (v *OIDCVerifier) verify(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	// Key refreshes go through the same timeout-bound client
	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.httpClient)
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderRejected, err)
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: missing sub or email", ErrMalformedResponse)
	}

	return &models.Identity{
		ID:      claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
