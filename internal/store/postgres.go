package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on a single `notify_state` table:
//
//	CREATE TABLE notify_state (
//	    key     text PRIMARY KEY,
//	    value   jsonb NOT NULL,
//	    version bigint NOT NULL DEFAULT 1
//	)
//
// The original deployment used a realtime database with native per-key
// transactions; here the same abort-without-side-effect semantics are
// preserved with a compare-and-swap loop on the version column.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed store on an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Get returns the current value for key, or nil if absent.
func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, "notify_state_get", key).Scan(&value, new(int64))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// Transaction applies update under a bounded compare-and-swap loop.
func (s *Postgres) Transaction(ctx context.Context, key string, update UpdateFunc) (bool, []byte, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		var current []byte
		var version int64
		absent := false

		err := s.pool.QueryRow(ctx, "notify_state_get", key).Scan(&current, &version)
		if errors.Is(err, pgx.ErrNoRows) {
			absent = true
			current = nil
		} else if err != nil {
			return false, nil, fmt.Errorf("read %q: %w", key, err)
		}

		next, err := update(current)
		if err != nil {
			return false, current, fmt.Errorf("update %q: %w", key, err)
		}
		if next == nil {
			// Abort: no write, no side effect.
			return false, current, nil
		}

		if absent {
			tag, err := s.pool.Exec(ctx, "notify_state_insert", key, next)
			if err != nil {
				return false, nil, fmt.Errorf("insert %q: %w", key, err)
			}
			if tag.RowsAffected() == 1 {
				return true, next, nil
			}
			// Another writer created the key first; re-read and retry.
			continue
		}

		tag, err := s.pool.Exec(ctx, "notify_state_cas", key, next, version)
		if err != nil {
			return false, nil, fmt.Errorf("write %q: %w", key, err)
		}
		if tag.RowsAffected() == 1 {
			return true, next, nil
		}
		// Version moved under us; retry.
	}
	return false, nil, fmt.Errorf("transaction on %q: conflict retries exhausted", key)
}

// Delete removes a key. Missing keys are not an error.
func (s *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, "notify_state_delete", key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}
