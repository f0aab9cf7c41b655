// Package attendance reads match-day attendance and poll state. The data is
// owned by the web app; this service only consumes it to drive
// notifications.
package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads attendance records and poll locks from Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New creates an attendance store on an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ComingCount returns how many players are marked coming for dateKey
// (YYYY-MM-DD).
func (s *Store) ComingCount(ctx context.Context, dateKey string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "attendance_coming_count", dateKey).Scan(&n); err != nil {
		return 0, fmt.Errorf("coming count for %s: %w", dateKey, err)
	}
	return n, nil
}

// PollLocked reports whether the MVP poll for dateKey has been locked.
// A missing row means not locked.
func (s *Store) PollLocked(ctx context.Context, dateKey string) (bool, error) {
	var locked bool
	err := s.pool.QueryRow(ctx, "poll_locked", dateKey).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("poll lock for %s: %w", dateKey, err)
	}
	return locked, nil
}
