// database/connection.go
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bctw/collector/config"
)

// DBTX is the subset of *pgxpool.Pool the stores use. Each call acquires
// and releases its own pooled connection.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// InitPool opens the connection pool and verifies it with a ping.
func InitPool(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = 5 * time.Minute
	if cfg.Schema != "" {
		poolCfg.ConnConfig.RuntimeParams["search_path"] = cfg.Schema + ",public"
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database: connected", "max_conns", cfg.MaxConns, "schema", cfg.Schema)
	return pool, nil
}

// ClosePool waits for outstanding work to release its connections, then
// closes the pool. A drain that runs out of retries is logged and the pool
// is closed anyway.
func ClosePool(ctx context.Context, pool *pgxpool.Pool, retries int, interval time.Duration, logger *slog.Logger) {
	if pool == nil {
		return
	}
	SafelyDrainPool(ctx, PoolState{Pool: pool}, retries, interval, logger)
	pool.Close()
	logger.Info("Database: connection pool closed")
}
