package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore()
	s.now = clock.Now
	return s, clock
}

func TestLimiter_FixedWindow(t *testing.T) {
	store, clock := newClockedStore()
	l := NewLimiter(store, 3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "client-a")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 3-i, d.Remaining)
		assert.Equal(t, time.Minute, d.ResetIn)
	}

	clock.Advance(10 * time.Second)
	d, err := l.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 50*time.Second, d.ResetIn)

	other, err := l.Allow(ctx, "client-b")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	clock.Advance(50 * time.Second)
	d, err = l.Allow(ctx, "client-a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestLimiter_Reset(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 1, time.Minute)
	ctx := context.Background()

	d, _ := l.Allow(ctx, "k")
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "k")
	assert.False(t, d.Allowed)

	require.NoError(t, l.Reset(ctx, "k"))
	d, _ = l.Allow(ctx, "k")
	assert.True(t, d.Allowed)
}

func TestLimiter_ConcurrentAdmissionNeverExceedsMax(t *testing.T) {
	l := NewLimiter(NewMemoryStore(), 10, time.Minute)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
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

	assert.Equal(t, int64(10), admitted.Load())
}

type failingStore struct{ MemoryStore }

func (*failingStore) Increment(context.Context, string, time.Duration) (Counter, error) {
	return Counter{}, errors.New("connection refused")
}

func TestLimiter_StoreFailure(t *testing.T) {
	l := NewLimiter(&failingStore{}, 10, time.Minute)

	_, err := l.Allow(context.Background(), "k")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestMemoryStore_SweepsExpired(t *testing.T) {
	store, clock := newClockedStore()
	ctx := context.Background()

	_, err := store.Increment(ctx, "stale", time.Second)
	require.NoError(t, err)
	clock.Advance(2 * time.Second)

	for i := 0; i < sweepEvery; i++ {
		_, err := store.Increment(ctx, "fresh", time.Minute)
		require.NoError(t, err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	_, ok := store.entries["stale"]
	assert.False(t, ok)
}
