package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"qr-wallet/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const healthKey = "qrw:health"

// NewClient connects to Redis and fails fast when the server is unreachable.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr(), err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Msg("redis ready")

	return client, nil
}

// HealthCheck checks Redis with a short-lived write. Read-only replicas
// still answer PING.
type HealthCheck struct {
	client *goredis.Client
}

// NewHealthCheck creates a Redis health checker.
func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := h.client.Set(ctx, healthKey, stamp, 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis write check: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string { return "redis" }
