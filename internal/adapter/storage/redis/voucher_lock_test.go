package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoucherLock_AcquireRelease(t *testing.T) {
	s, client := newTestClient(t)
	lock := NewVoucherLock(client, 15*time.Second, 50*time.Millisecond)
	ctx := context.Background()

	token, ok, err := lock.Acquire(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)
	assert.True(t, s.Exists("voucher_lock:ABC123"))
	assert.Equal(t, 15*time.Second, s.TTL("voucher_lock:ABC123"))

	_, ok, err = lock.Acquire(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, ok, "held lock times out after the wait")

	_, ok, err = lock.Acquire(ctx, "XYZ789")
	require.NoError(t, err)
	assert.True(t, ok, "locks are per code")

	require.NoError(t, lock.Release(ctx, "ABC123", token))
	assert.False(t, s.Exists("voucher_lock:ABC123"))

	_, ok, err = lock.Acquire(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVoucherLock_ReleaseIgnoresForeignToken(t *testing.T) {
	s, client := newTestClient(t)
	lock := NewVoucherLock(client, time.Second, 10*time.Millisecond)
	ctx := context.Background()

	stale, ok, err := lock.Acquire(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)

	// The first holder's key expires and a second holder takes over.
	s.FastForward(2 * time.Second)
	fresh, ok, err := lock.Acquire(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lock.Release(ctx, "ABC123", stale))
	got, err := s.Get("voucher_lock:ABC123")
	require.NoError(t, err)
	assert.Equal(t, fresh, got, "stale holder must not release the new lock")

	require.NoError(t, lock.Release(ctx, "MISSING", "any"))
}

func TestVoucherLock_HonorsContext(t *testing.T) {
	_, client := newTestClient(t)
	lock := NewVoucherLock(client, time.Minute, time.Minute)

	_, ok, err := lock.Acquire(context.Background(), "ABC123")
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok, err = lock.Acquire(ctx, "ABC123")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestVoucherLock_MutualExclusion(t *testing.T) {
	_, client := newTestClient(t)
	lock := NewVoucherLock(client, 5*time.Second, 2*time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, ok, err := lock.Acquire(ctx, "GIFT25")
			if err != nil || !ok {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = lock.Release(ctx, "GIFT25", token)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInside))
}
