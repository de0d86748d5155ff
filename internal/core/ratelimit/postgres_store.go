package ratelimit

import (
	"context"
	"time"

	"github.com/lexcora/rased/internal/core"
)

// PostgresStore shares counters across replicas through the
// rate_limit_windows table.
type PostgresStore struct {
	db core.DbClient
}

func NewPostgresStore(db core.DbClient) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Increment(ctx context.Context, key string, window time.Duration) (Counter, error) {
	count, remaining, err := s.db.IncrementWindow(ctx, key, window)
	if err != nil {
		return Counter{}, err
	}
	return Counter{Count: count, Remaining: remaining}, nil
}

func (s *PostgresStore) Reset(ctx context.Context, key string) error {
	return s.db.ResetWindow(ctx, key)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
