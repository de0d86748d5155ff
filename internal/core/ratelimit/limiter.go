package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable wraps any failure of the backing store.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

const keyPrefix = "rased:ratelimit:"

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Limiter admits at most max requests per identity per fixed window.
type Limiter struct {
	store  Store
	max    int
	window time.Duration
}

func NewLimiter(store Store, max int, window time.Duration) *Limiter {
	return &Limiter{store: store, max: max, window: window}
}

func (l *Limiter) Allow(ctx context.Context, identity string) (Decision, error) {
	c, err := l.store.Increment(ctx, keyPrefix+identity, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	remaining := l.max - int(c.Count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   c.Count <= int64(l.max),
		Limit:     l.max,
		Remaining: remaining,
		ResetIn:   c.Remaining,
	}, nil
}

// Reset clears the window of identity.
func (l *Limiter) Reset(ctx context.Context, identity string) error {
	return l.store.Reset(ctx, keyPrefix+identity)
}

func (l *Limiter) Store() Store { return l.store }
