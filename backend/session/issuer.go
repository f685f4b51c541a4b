package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenTTL is the fixed validity window of a session credential
const TokenTTL = 24 * time.Hour

// DefaultIssuer is the iss claim used when none is configured
const DefaultIssuer = "crm-xeno"

var (
	// ErrInvalidToken is returned when the token is malformed, tampered or signed with another algorithm
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenRevoked is returned when the token's jti is on the denylist
	ErrTokenRevoked = errors.New("token revoked")

	// ErrRevocationCheckFailed is returned when the denylist could not be consulted
	ErrRevocationCheckFailed = errors.New("revocation check failed")

	// ErrEmptySecret is returned by NewIssuer when no signing secret is given
	ErrEmptySecret = errors.New("signing secret is required")
)

// Claims represents the claims carried by a session credential
type Claims struct {
	jwt.RegisteredClaims
	SubjectID string `json:"id"`
	Email     string `json:"email"`
}

// Issuer mints and validates HS256 session credentials
type Issuer struct {
	secret   []byte
	issuer   string
	now      func() time.Time
	denylist Denylist
	logger   *zap.Logger
	parser   *jwt.Parser
}

// Option configures an Issuer
type Option func(*Issuer)

// WithClock overrides the clock used for iat/exp and validation
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

// WithIssuer sets the iss claim
func WithIssuer(issuer string) Option {
	return func(i *Issuer) {
		if issuer != "" {
			i.issuer = issuer
		}
	}
}

// WithDenylist enables revocation checks on validation
func WithDenylist(d Denylist) Option {
	return func(i *Issuer) {
		i.denylist = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(i *Issuer) {
		i.logger = logger
	}
}

// NewIssuer creates a new Issuer. An empty secret is rejected.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	i := &Issuer{
		secret: []byte(secret),
		issuer: DefaultIssuer,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}

	i.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	)

	return i, nil
}

// IssueSessionToken signs a credential for the subject valid for TokenTTL
func (i *Issuer) IssueSessionToken(subjectID, email string) (string, error) {
	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
		SubjectID: subjectID,
		Email:     email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, algorithm and expiry, then consults the
// denylist when one is configured
func (i *Issuer) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := i.parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SubjectID == "" {
		return nil, fmt.Errorf("%w: missing id claim", ErrInvalidToken)
	}

	if i.denylist != nil && claims.ID != "" {
		revoked, err := i.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			i.logger.Error("denylist lookup failed",
				zap.String("jti", claims.ID),
				zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrRevocationCheckFailed, err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Revoke puts a credential id on the denylist until the credential expires.
// Without a denylist it does nothing.
func (i *Issuer) Revoke(ctx context.Context, jti string, until time.Time) error {
	if i.denylist == nil || jti == "" {
		return nil
	}
	if until.IsZero() {
		until = i.now().Add(TokenTTL)
	}
	if err := i.denylist.Revoke(ctx, jti, until); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
