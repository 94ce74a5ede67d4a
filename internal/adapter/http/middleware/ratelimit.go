package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	redisStore "qr-wallet/internal/adapter/storage/redis"
	"qr-wallet/pkg/apperror"
	"qr-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule caps one endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the limits per endpoint group.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"sessions":       {Limit: 10, Window: time.Minute},
		"wallets_create": {Limit: 5, Window: time.Hour},
		"payments":       {Limit: 60, Window: time.Minute},
		"cashins":        {Limit: 30, Window: time.Minute},
	}
}

// AttemptCounter is implemented by the Redis rate limit store.
type AttemptCounter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// RateLimiter hands out per-group limiting middleware.
type RateLimiter struct {
	counter AttemptCounter
	rules   map[string]RateLimitRule
	log     zerolog.Logger
}

// NewRateLimiter creates a RateLimiter. A nil counter disables limiting.
func NewRateLimiter(counter AttemptCounter, rules map[string]RateLimitRule, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{counter: counter, rules: rules, log: log}
}

// Limit returns the middleware for group. Groups without a rule pass through.
// When the counter store fails the request is let through.
func (l *RateLimiter) Limit(group string) gin.HandlerFunc {
	rule, ok := l.rules[group]
	if l.counter == nil || !ok {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := group + ":" + callerKey(c)

		result, err := l.counter.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			l.log.Warn().Err(err).Str("group", group).Msg("rate limit store unavailable, request allowed")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retry := max(int64(math.Ceil(result.RetryAfter.Seconds())), 1)
			c.Header("Retry-After", strconv.FormatInt(retry, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// callerKey identifies authenticated callers by wallet and others by IP.
func callerKey(c *gin.Context) string {
	if wid := c.GetString(CtxWalletID); wid != "" {
		return "wallet:" + wid
	}
	return "ip:" + c.ClientIP()
}
