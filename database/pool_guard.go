// database/pool_guard.go
package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// IdleChecker reports whether a pool has no outstanding work.
type IdleChecker interface {
	IsIdle() bool
}

// PoolState adapts a pgx pool. Connections that are checked out or still
// being established count as outstanding.
type PoolState struct {
	Pool *pgxpool.Pool
}

func (p PoolState) IsIdle() bool {
	st := p.Pool.Stat()
	return st.AcquiredConns() == 0 && st.ConstructingConns() == 0
}

// SafelyDrainPool polls state until it is idle, checking at most retries
// times with interval between checks. It returns false without error when
// the budget runs out or ctx ends first.
func SafelyDrainPool(ctx context.Context, state IdleChecker, retries int, interval time.Duration, logger *slog.Logger) bool {
	if retries < 1 {
		retries = 1
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for attempt := 1; attempt <= retries; attempt++ {
		if state.IsIdle() {
			logger.Debug("Database: pool drained", "attempts", attempt)
			return true
		}
		if attempt == retries {
			break
		}
		timer.Reset(interval)
		select {
		case <-ctx.Done():
			logger.Warn("Database: pool drain interrupted", "attempts", attempt, "error", ctx.Err())
			return false
		case <-timer.C:
		}
	}
	logger.Warn("Database: pool still busy after drain retries, closing anyway",
		"retries", retries, "interval", interval)
	return false
}
