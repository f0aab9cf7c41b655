// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kadrohq/kadro-server/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers every statement the notification and
// stats layers use. Prepared statements eliminate parse overhead on every
// request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Notification state store (versioned KV, CAS on version)
		"notify_state_get":    "SELECT value, version FROM notify_state WHERE key = $1",
		"notify_state_insert": "INSERT INTO notify_state (key, value, version) VALUES ($1, $2, 1) ON CONFLICT (key) DO NOTHING",
		"notify_state_cas":    "UPDATE notify_state SET value = $2, version = version + 1 WHERE key = $1 AND version = $3",
		"notify_state_delete": "DELETE FROM notify_state WHERE key = $1",

		// Recipients
		"notification_prefs_all": "SELECT user_id, enabled, COALESCE(topics, '{}'::jsonb) FROM notification_prefs",
		"user_devices_all":       "SELECT user_id, token, enabled FROM user_devices",

		// Attendance + poll state
		"attendance_coming_count": "SELECT COUNT(*) FROM attendance WHERE match_date = $1 AND status = 'coming'",
		"poll_locked":             "SELECT locked FROM poll_locks WHERE match_date = $1",

		// Stats aggregation
		"stats_player_summary": `
			SELECT user_id,
			       COUNT(*)                                   AS matches,
			       COALESCE(SUM(goals), 0)                    AS goals,
			       COALESCE(SUM(assists), 0)                  AS assists,
			       COALESCE(SUM(CASE WHEN won THEN 1 END), 0) AS wins
			FROM match_stats
			GROUP BY user_id
			ORDER BY goals DESC, wins DESC, user_id`,
		"stats_last_updated": "SELECT COALESCE(MAX(updated_at), 'epoch'::timestamptz) FROM match_stats",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
