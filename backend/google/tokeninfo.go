package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/MoAftaab/crm-xeno/backend/models"
	"go.uber.org/zap"
)

const (
	// DefaultTokenInfoURL is Google's token introspection endpoint
	DefaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

	maxResponseBytes = 1 << 20
)

var (
	// ErrEmptyToken is returned when no identity token was supplied
	ErrEmptyToken = errors.New("empty identity token")

	// ErrProviderRejected is returned when the provider reports the token as invalid
	ErrProviderRejected = errors.New("identity provider rejected token")

	// ErrProviderUnavailable is returned when the provider could not be reached or answered non-2xx
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// ErrMalformedResponse is returned when the provider payload lacks required fields
	ErrMalformedResponse = errors.New("malformed identity provider response")

	// ErrAudienceMismatch is returned when the token was issued for another client
	ErrAudienceMismatch = errors.New("identity token audience mismatch")
)

// IdentityVerifier verifies an opaque identity token. A nil result means
// unauthenticated; callers cannot and should not tell why.
type IdentityVerifier interface {
	VerifyIdentityToken(ctx context.Context, token string) *models.Identity
}

// TokenInfoResponse is the tokeninfo payload. Google returns every value as a string.
type TokenInfoResponse struct {
	Sub              string `json:"sub"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Picture          string `json:"picture"`
	Aud              string `json:"aud"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Config holds configuration for the identity provider clients
type Config struct {
	TokenInfoURL string
	IssuerURL    string
	ClientID     string // Optional for tokeninfo: when set, aud must match
	HTTPTimeout  time.Duration
	HTTPClient   *http.Client // Optional, built from HTTPTimeout when nil
}

func (c Config) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.HTTPTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// TokenInfoClient verifies Google identity tokens against the tokeninfo endpoint.
// One request per call; no retries and no caching.
type TokenInfoClient struct {
	endpoint   string
	clientID   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTokenInfoClient creates a new tokeninfo-backed verifier
func NewTokenInfoClient(cfg Config, logger *zap.Logger) *TokenInfoClient {
	endpoint := cfg.TokenInfoURL
	if endpoint == "" {
		endpoint = DefaultTokenInfoURL
	}
	return &TokenInfoClient{
		endpoint:   endpoint,
		clientID:   cfg.ClientID,
		httpClient: cfg.client(),
		logger:     logger,
	}
}

// VerifyIdentityToken returns the verified identity or nil. Every failure is
// logged with its cause and collapsed to nil.
func (c *TokenInfoClient) VerifyIdentityToken(ctx context.Context, token string) *models.Identity {
	identity, err := c.Lookup(ctx, token)
	if err != nil {
		c.logger.Warn("identity token verification failed",
			zap.String("verifier", "tokeninfo"),
			zap.Error(err))
		return nil
	}

	c.logger.Debug("identity token verified",
		zap.String("sub", identity.ID),
		zap.String("email", identity.Email))
	return identity
}

// Lookup performs the tokeninfo request and reports the failure cause
func (c *TokenInfoClient) Lookup(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse tokeninfo url: %w", err)
	}
	query := reqURL.Query()
	query.Set("id_token", token)
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create tokeninfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// url.Error carries the full request URL, id_token included
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrProviderUnavailable, urlErr.Op, c.endpoint, urlErr.Err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrProviderUnavailable, err)
	}

	var info TokenInfoResponse
	decodeErr := json.Unmarshal(body, &info)

	// Google answers invalid tokens with 400 and an error_description
	if decodeErr == nil && info.ErrorDescription != "" {
		return nil, fmt.Errorf("%w: %s", ErrProviderRejected, info.ErrorDescription)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status code %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: missing sub or email", ErrMalformedResponse)
	}
	if c.clientID != "" && info.Aud != c.clientID {
		return nil, fmt.Errorf("%w: got %q", ErrAudienceMismatch, info.Aud)
	}

	return &models.Identity{
		ID:      info.Sub,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}
