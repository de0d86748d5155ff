package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lexcora/rased/internal/config"
	"github.com/lexcora/rased/internal/core"
)

type DatabaseClient struct {
	db *sql.DB
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// The upsert runs as one statement, so concurrent increments of the same key
// serialize on the row lock.
const incrementWindowSQL = `
INSERT INTO rate_limit_windows AS w (key, count, window_expires_at)
VALUES ($1, 1, now() + $2::bigint * interval '1 millisecond')
ON CONFLICT (key) DO UPDATE SET
  count = CASE WHEN w.window_expires_at <= now() THEN 1 ELSE w.count + 1 END,
  window_expires_at = CASE WHEN w.window_expires_at <= now()
    THEN now() + $2::bigint * interval '1 millisecond'
    ELSE w.window_expires_at END
RETURNING count, GREATEST(0, EXTRACT(EPOCH FROM (window_expires_at - now())) * 1000)::bigint`

func (c *DatabaseClient) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	var count, remainingMs int64
	err := c.db.QueryRowContext(ctx, incrementWindowSQL, key, window.Milliseconds()).Scan(&count, &remainingMs)
	if err != nil {
		return 0, 0, fmt.Errorf("increment window %q: %w", key, err)
	}
	return count, time.Duration(remainingMs) * time.Millisecond, nil
}

func (c *DatabaseClient) ResetWindow(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM rate_limit_windows WHERE key = $1`, key); err != nil {
		return fmt.Errorf("reset window %q: %w", key, err)
	}
	return nil
}
