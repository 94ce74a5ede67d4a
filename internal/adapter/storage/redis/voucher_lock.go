package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const lockRetryInterval = 25 * time.Millisecond

// VoucherLock implements ports.VoucherLock with a per-code SET NX key.
// Each holder writes a random token so only the holder can release it.
type VoucherLock struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

// NewVoucherLock creates a lock whose keys expire after ttl. Acquire gives up
// after wait (or when ctx ends, whichever is first).
func NewVoucherLock(client *goredis.Client, ttl, wait time.Duration) *VoucherLock {
	return &VoucherLock{
		client: client,
		prefix: "voucher_lock:",
		ttl:    ttl,
		wait:   wait,
	}
}

// Acquire takes the lock on code, polling until it is free.
func (l *VoucherLock) Acquire(ctx context.Context, code string) (string, bool, error) {
	key := l.prefix + code
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return "", false, nil
			}
			return "", false, fmt.Errorf("redis voucher lock: %w", err)
		}
		if ok {
			return token, true, nil
		}
		if !time.Now().Before(deadline) {
			return "", false, nil
		}

		select {
		case <-ctx.Done():
			return "", false, nil
		case <-ticker.C:
		}
	}
}

// Release deletes the lock if token still owns it. A lock that expired and
// was taken by someone else is left alone.
func (l *VoucherLock) Release(ctx context.Context, code string, token string) error {
	key := l.prefix + code

	err := l.client.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if current != token {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil && !errors.Is(err, goredis.TxFailedErr) {
		return fmt.Errorf("redis voucher unlock: %w", err)
	}
	return nil
}
