package ratelimit

import (
	"context"
	"time"
)

// Counter is the state of one key's current window after an increment.
type Counter struct {
	Count     int64
	Remaining time.Duration
}

// Store keeps fixed-window counters. Increment must be atomic per key so
// that concurrent callers never observe the same count.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (Counter, error)
	Reset(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Name() string
	Close() error
}
