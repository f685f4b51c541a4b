package session

import (
	"context"
	"sync"
	"time"
)

// Denylist records revoked credential ids until their natural expiry.
// It can only reject tokens that would otherwise validate.
type Denylist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryDenylist is a process-local Denylist for development and tests
type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryDenylist creates an empty in-memory denylist
func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Revoke records jti until the given time; past times are ignored
func (d *MemoryDenylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !until.After(d.now()) {
		return nil
	}
	d.entries[jti] = until
	return nil
}

// IsRevoked reports whether jti is revoked, pruning the entry once it has expired
func (d *MemoryDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	until, ok := d.entries[jti]
	if !ok {
		return false, nil
	}
	if !until.After(d.now()) {
		delete(d.entries, jti)
		return false, nil
	}
	return true, nil
}
