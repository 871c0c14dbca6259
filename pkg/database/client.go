package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Client wraps a pgx connection pool, giving pkg/storage/pgstore a typed
// handle with an explicit Close, matching tarsy's Client.DB()/Close()
// shape without the ent.Client embedding this module has no use for.
type Client struct {
	Pool *pgxpool.Pool
}

// NewClient applies pending migrations, then opens a connection pool
// against cfg, pinging it before returning.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := runMigrations(cfg); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{Pool: pool}, nil
}

// Close releases all pooled connections.
func (c *Client) Close() {
	c.Pool.Close()
}
