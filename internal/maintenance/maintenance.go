// Package maintenance runs periodic background tasks as Go tickers.
// All scheduled work is driven from Go since the API is already a
// persistent, long-running service (required for LISTEN/NOTIFY).
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	CleanupInterval time.Duration // Purge finished ledger entries and stale day nodes
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		CleanupInterval: 30 * time.Minute,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started", "cleanup", cfg.CleanupInterval)

	tickers := make([]*time.Ticker, 0, 1)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.CleanupInterval > 0 {
		t := time.NewTicker(cfg.CleanupInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { cleanup(ctx, pool, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// cleanup removes ledger entries that finished (sent or failed) more than
// 30 days ago and crossing day nodes older than 30 days. Pending entries
// are never purged here; the staleness window handles those.
func cleanup(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) {
	tag, err := pool.Exec(ctx, `
		DELETE FROM notify_state
		WHERE key LIKE 'events/%'
		  AND value->>'status' IN ('sent', 'failed')
		  AND COALESCE(value->>'sent_at', value->>'failed_at')::timestamptz
		      < NOW() - INTERVAL '30 days'`)
	if err != nil {
		logger.Warn("Cleanup: failed to purge old events", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Cleanup: purged old events", "count", tag.RowsAffected())
	}

	tag, err = pool.Exec(ctx, `
		DELETE FROM notify_state
		WHERE key LIKE 'state/teker_dondu/%'
		  AND (value->>'updated_at')::timestamptz < NOW() - INTERVAL '30 days'`)
	if err != nil {
		logger.Warn("Cleanup: failed to purge old day nodes", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Cleanup: purged old day nodes", "count", tag.RowsAffected())
	}
}
