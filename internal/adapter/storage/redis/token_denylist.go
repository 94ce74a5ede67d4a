package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// TokenDenylist implements ports.TokenDenylist. Entries expire when the
// token itself would have.
type TokenDenylist struct {
	client *goredis.Client
	prefix string
}

// NewTokenDenylist creates a new Redis-backed token denylist.
func NewTokenDenylist(client *goredis.Client) *TokenDenylist {
	return &TokenDenylist{
		client: client,
		prefix: "revoked_jti:",
	}
}

// Revoke marks tokenID as revoked until the given time.
func (d *TokenDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, d.prefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID has been revoked.
func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("redis check revoked token: %w", err)
	}
	return n > 0, nil
}
