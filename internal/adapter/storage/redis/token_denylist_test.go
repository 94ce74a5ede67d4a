package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenDenylist(t *testing.T) {
	s, client := newTestClient(t)
	denylist := NewTokenDenylist(client)
	ctx := context.Background()

	revoked, err := denylist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, denylist.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = denylist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	s.FastForward(2 * time.Hour)
	revoked, err = denylist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "entry lives only as long as the token")
}

func TestTokenDenylist_AlreadyExpired(t *testing.T) {
	s, client := newTestClient(t)
	denylist := NewTokenDenylist(client)

	require.NoError(t, denylist.Revoke(context.Background(), "jti-old", time.Now().Add(-time.Minute)))
	assert.False(t, s.Exists("revoked_jti:jti-old"))
}
