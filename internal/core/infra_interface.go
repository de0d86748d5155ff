package core

import (
	"context"
	"time"
)

// DbClient is the persistence the gateway needs from Postgres: a shared
// fixed-window counter table. Callers never see SQL.
type DbClient interface {
	// IncrementWindow bumps the counter for key, opening a new window of the
	// given length when none is active. It returns the count inside the
	// current window and the time left before the window closes.
	IncrementWindow(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)
	ResetWindow(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
