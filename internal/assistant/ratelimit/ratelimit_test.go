package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryRejectsEleventhCallInWindow(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	limiter := NewMemory(60*time.Second, 10).WithClock(func() time.Time { return now })
	ctx := context.Background()
	account := uuid.New()

	for i := 1; i <= 10; i++ {
		d, err := limiter.Admit(ctx, account)
		require.NoError(t, err)
		require.True(t, d.Allowed, "call %d should be admitted", i)
		require.Equal(t, i, d.Count)
		now = now.Add(time.Second)
	}

	d, err := limiter.Admit(ctx, account)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 50*time.Second, d.RetryAfter)
}

func TestMemoryResetsAfterWindowExpiry(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	limiter := NewMemory(60*time.Second, 10).WithClock(func() time.Time { return now })
	ctx := context.Background()
	account := uuid.New()

	for i := 0; i < 11; i++ {
		_, _ = limiter.Admit(ctx, account)
	}

	now = now.Add(61 * time.Second)
	d, err := limiter.Admit(ctx, account)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, 1, d.Count)

	d, err = limiter.Admit(ctx, account)
	require.NoError(t, err)
	require.Equal(t, 2, d.Count)
}

func TestMemoryAccountsAreIndependent(t *testing.T) {
	limiter := NewMemory(time.Minute, 1)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	d, _ := limiter.Admit(ctx, a)
	require.True(t, d.Allowed)
	d, _ = limiter.Admit(ctx, a)
	require.False(t, d.Allowed)

	d, _ = limiter.Admit(ctx, b)
	require.True(t, d.Allowed, "another account must not be throttled")
}

func TestMemoryConcurrentAdmitsNeverExceedCap(t *testing.T) {
	limiter := NewMemory(time.Minute, 10)
	ctx := context.Background()
	account := uuid.New()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, _ := limiter.Admit(ctx, account); d.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(10), admitted.Load())
}

func TestMemorySweep(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	limiter := NewMemory(time.Minute, 10).WithClock(func() time.Time { return now })
	_, _ = limiter.Admit(context.Background(), uuid.New())

	require.Equal(t, 0, limiter.Sweep())
	now = now.Add(2 * time.Minute)
	require.Equal(t, 1, limiter.Sweep())
}

func TestMemoryAdmitRacingSweepCountsInLiveWindow(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	limiter := NewMemory(time.Minute, 10).WithClock(func() time.Time { return now })
	ctx := context.Background()
	account := uuid.New()
	_, _ = limiter.Admit(ctx, account)

	// An Admit that loaded the window just before Sweep dropped it.
	v, _ := limiter.windows.Load(account)
	now = now.Add(2 * time.Minute)
	require.Equal(t, 1, limiter.Sweep())

	_, ok := limiter.admit(v.(*window))
	require.False(t, ok, "a swept window must not take new counts")

	for i := 1; i <= 2; i++ {
		d, err := limiter.Admit(ctx, account)
		require.NoError(t, err)
		require.Equal(t, i, d.Count)
	}
}

func TestRedisRejectsEleventhCallAndResets(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRedis(client, 60*time.Second, 10)
	ctx := context.Background()
	account := uuid.New()

	for i := 1; i <= 10; i++ {
		d, err := limiter.Admit(ctx, account)
		require.NoError(t, err)
		require.True(t, d.Allowed, "call %d should be admitted", i)
	}

	mr.FastForward(20 * time.Second)
	d, err := limiter.Admit(ctx, account)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Equal(t, 40*time.Second, d.RetryAfter)

	mr.FastForward(41 * time.Second)
	d, err = limiter.Admit(ctx, account)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.Equal(t, 1, d.Count)
}
