package service

import (
	"context"
	"sync"
	"time"
)

const denylistPrefix = "revoked:"

// TokenDenylist records revoked access token ids until they expire. Redis backs it when
// configured; otherwise entries live in process.
type TokenDenylist struct {
	cache CacheRepository

	mu    sync.Mutex
	local map[string]time.Time
	now   func() time.Time
}

// NewTokenDenylist uses cache when non-nil.
func NewTokenDenylist(cache CacheRepository) *TokenDenylist {
	return &TokenDenylist{cache: cache, local: make(map[string]time.Time), now: time.Now}
}

// Revoke denies jti until expiresAt.
func (d *TokenDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(d.now())
	if jti == "" || ttl <= 0 {
		return nil
	}
	if d.cache != nil {
		return d.cache.Set(ctx, denylistPrefix+jti, true, ttl)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweep()
	d.local[jti] = expiresAt
	return nil
}

// Revoked reports whether jti has been revoked.
func (d *TokenDenylist) Revoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	if d.cache != nil {
		return d.cache.Exists(ctx, denylistPrefix+jti)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	exp, ok := d.local[jti]
	return ok && d.now().Before(exp), nil
}

func (d *TokenDenylist) sweep() {
	now := d.now()
	for jti, exp := range d.local {
		if !now.Before(exp) {
			delete(d.local, jti)
		}
	}
}
