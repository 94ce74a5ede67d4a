package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const noncePrefix = "nonce:"

// NonceStore records consumed payment nonces, one key per (scope, nonce).
// The value is the claim time in Unix milliseconds.
type NonceStore struct {
	client *goredis.Client
	now    func() time.Time
}

// NewNonceStore creates a Redis-backed nonce store.
func NewNonceStore(client *goredis.Client) *NonceStore {
	return &NonceStore{client: client, now: time.Now}
}

// CheckAndSet claims nonce for scope, the paying wallet. It reports false
// when the nonce was already claimed and has not yet expired.
func (s *NonceStore) CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		return false, fmt.Errorf("nonce ttl %s is below one second", ttl)
	}

	claimed, err := s.client.SetNX(ctx, nonceKey(scope, nonce), s.now().UnixMilli(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis nonce check: %w", err)
	}
	return claimed, nil
}

// Release deletes the claim for nonce so a payment rolled back after the
// claim can be scanned again.
func (s *NonceStore) Release(ctx context.Context, scope string, nonce string) error {
	if err := s.client.Del(ctx, nonceKey(scope, nonce)).Err(); err != nil {
		return fmt.Errorf("redis nonce release: %w", err)
	}
	return nil
}

func nonceKey(scope, nonce string) string {
	return noncePrefix + scope + ":" + nonce
}
