package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_Increment(t *testing.T) {
	store, mr := newMiniRedisStore(t)
	ctx := context.Background()

	c, err := store.Increment(ctx, "rased:ratelimit:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)
	assert.Equal(t, time.Minute, c.Remaining)

	c, err = store.Increment(ctx, "rased:ratelimit:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.Count)
	assert.Equal(t, time.Minute, mr.TTL("rased:ratelimit:a"))

	mr.FastForward(time.Minute + time.Millisecond)

	c, err = store.Increment(ctx, "rased:ratelimit:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Count)
}

func TestRedisStore_Reset(t *testing.T) {
	store, mr := newMiniRedisStore(t)
	ctx := context.Background()

	_, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}

func TestRedisStore_LimiterConcurrency(t *testing.T) {
	store, _ := newMiniRedisStore(t)
	l := NewLimiter(store, 5, time.Minute)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(context.Background(), "shared")
			if err == nil && d.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), admitted.Load())
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newMiniRedisStore(t)
	mr.Close()

	assert.Error(t, store.Ping(context.Background()))

	l := NewLimiter(store, 5, time.Minute)
	_, err := l.Allow(context.Background(), "k")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
