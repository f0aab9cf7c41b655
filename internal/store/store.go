// Package store provides a versioned key-value store with a per-key atomic
// read-modify-write transaction. All shared notification state (the event
// ledger and the per-day crossing state) is mutated exclusively through
// Transaction — never via plain read-then-write — so correctness does not
// depend on in-process locking.
package store

import "context"

// UpdateFunc computes the next value for a key from its current value.
// current is nil when the key is absent. Returning (nil, nil) aborts the
// transaction without writing; any other return value is written if the key
// has not changed since it was read.
type UpdateFunc func(current []byte) (next []byte, err error)

// Store is a versioned key-value store with per-key optimistic transactions.
type Store interface {
	// Get returns the current value for key, or nil if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Transaction atomically applies update to the value at key.
	// On conflict (another writer changed the key between read and write)
	// the read-compute-write cycle is retried a bounded number of times.
	// Returns committed=false when update aborted; latest is the value the
	// final update call observed.
	Transaction(ctx context.Context, key string, update UpdateFunc) (committed bool, latest []byte, err error)

	// Delete removes a key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// maxRetries bounds the optimistic-write retry loop. Contention on a single
// key is rare (a handful of concurrent emitters at most), so exhaustion
// indicates something is badly wrong and is surfaced as an error.
const maxRetries = 8
