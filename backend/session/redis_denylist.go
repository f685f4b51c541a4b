package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRevokedPrefix is the key prefix for revoked jti entries
const DefaultRevokedPrefix = "session:revoked:"

// RedisDenylist stores revoked jti values with a TTL equal to the remaining token lifetime
type RedisDenylist struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisDenylist creates a Redis-backed denylist
func NewRedisDenylist(client redis.UniversalClient) *RedisDenylist {
	return &RedisDenylist{
		client: client,
		prefix: DefaultRevokedPrefix,
	}
}

// Revoke marks jti as revoked until the given time. A time already in the
// past is a no-op.
func (d *RedisDenylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	if jti == "" {
		return errors.New("jti cannot be empty")
	}

	ttl := time.Until(until)
	if ttl <= 0 {
		// Already expired, validation rejects it anyway
		return nil
	}

	if err := d.client.Set(ctx, d.prefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti has an unexpired revocation entry. Redis
// errors are returned so the caller can fail closed.
func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}

	err := d.client.Get(ctx, d.prefix+jti).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get: %w", err)
	}
	return true, nil
}
