package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenDenylistLocal(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewTokenDenylist(nil)
	d.now = func() time.Time { return now }

	require.NoError(t, d.Revoke(ctx, "jti-1", now.Add(time.Minute)))
	revoked, err := d.Revoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = d.Revoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	// Already expired tokens are not recorded.
	require.NoError(t, d.Revoke(ctx, "jti-2", now.Add(-time.Second)))
	revoked, _ = d.Revoked(ctx, "jti-2")
	assert.False(t, revoked)
}

func TestTokenDenylistUsesCache(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryCacheRepo()
	d := NewTokenDenylist(repo)

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	_, stored := repo.entries["revoked:jti-1"]
	assert.True(t, stored)

	revoked, err := d.Revoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = d.Revoked(ctx, "other")
	require.NoError(t, err)
	assert.False(t, revoked)
}
