package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/eludris-client/internal/config"
)

// Schema creates the archive tables. Safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS messages (
	id          UUID PRIMARY KEY,
	instance    TEXT   NOT NULL,
	author_id   BIGINT NOT NULL,
	author_name TEXT   NOT NULL,
	content     TEXT   NOT NULL,
	received_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_received_at_idx ON messages (received_at);
CREATE INDEX IF NOT EXISTS messages_author_id_idx ON messages (author_id);
`

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := ParseConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// ParseConfig builds the pool configuration without connecting.
func ParseConfig(cfg config.DBConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)
	return poolCfg, nil
}

// Migrate applies Schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
