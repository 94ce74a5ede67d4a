package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// RateLimitStore keeps fixed-window request counters. Windows are aligned to
// multiples of their length since the Unix epoch, so every replica sharing
// the Redis instance agrees on the boundaries.
type RateLimitStore struct {
	client *goredis.Client
	now    func() time.Time
}

// NewRateLimitStore creates a Redis-backed rate limit store.
func NewRateLimitStore(client *goredis.Client) *RateLimitStore {
	return &RateLimitStore{client: client, now: time.Now}
}

// RateLimitResult is the counter state after one attempt.
type RateLimitResult struct {
	Allowed    bool
	Limit      int64
	Remaining  int64
	ResetAt    int64 // Unix seconds
	RetryAfter time.Duration
}

// Allow counts one attempt against key in the current window.
func (s *RateLimitStore) Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error) {
	window = max(window.Truncate(time.Second), time.Second)
	secs := int64(window / time.Second)
	now := s.now()
	start := time.Unix(now.Unix()/secs*secs, 0)
	reset := start.Add(window)
	redisKey := fmt.Sprintf("%s%s:%d", rateLimitPrefix, key, start.Unix())

	var incr *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, window+time.Second)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit: %w", err)
	}

	count := incr.Val()
	result := &RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   reset.Unix(),
	}
	if !result.Allowed {
		result.RetryAfter = reset.Sub(now)
	}
	return result, nil
}
