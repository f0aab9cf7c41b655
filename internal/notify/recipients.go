package notify

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserPrefs is one user's notification preference row: a global switch plus
// per-topic opt-ins.
type UserPrefs struct {
	UserID  string
	Enabled bool
	Topics  map[string]bool
}

// Device is one registered push endpoint for a user.
type Device struct {
	UserID  string
	Token   string
	Enabled bool
}

// FilterRecipients returns the deduplicated token set for a topic: users
// must be globally enabled AND opted into the topic; devices must be
// enabled with a non-empty token. Sorted for deterministic batching.
func FilterRecipients(prefs []UserPrefs, devices []Device, topic Topic) []string {
	eligible := make(map[string]struct{}, len(prefs))
	for _, p := range prefs {
		if p.Enabled && p.Topics[string(topic)] {
			eligible[p.UserID] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var tokens []string
	for _, d := range devices {
		if !d.Enabled || d.Token == "" {
			continue
		}
		if _, ok := eligible[d.UserID]; !ok {
			continue
		}
		if _, dup := seen[d.Token]; dup {
			continue
		}
		seen[d.Token] = struct{}{}
		tokens = append(tokens, d.Token)
	}
	sort.Strings(tokens)
	return tokens
}

// PGResolver loads preferences and devices from Postgres and filters them
// in memory. Empty tables yield an empty set, not an error.
type PGResolver struct {
	pool *pgxpool.Pool
}

// NewPGResolver creates a resolver on an existing pool.
func NewPGResolver(pool *pgxpool.Pool) *PGResolver {
	return &PGResolver{pool: pool}
}

// Resolve implements Resolver.
func (r *PGResolver) Resolve(ctx context.Context, topic Topic) ([]string, error) {
	prefs, err := r.loadPrefs(ctx)
	if err != nil {
		return nil, err
	}
	devices, err := r.loadDevices(ctx)
	if err != nil {
		return nil, err
	}
	return FilterRecipients(prefs, devices, topic), nil
}

func (r *PGResolver) loadPrefs(ctx context.Context) ([]UserPrefs, error) {
	rows, err := r.pool.Query(ctx, "notification_prefs_all")
	if err != nil {
		return nil, fmt.Errorf("load notification prefs: %w", err)
	}
	defer rows.Close()

	var prefs []UserPrefs
	for rows.Next() {
		var p UserPrefs
		if err := rows.Scan(&p.UserID, &p.Enabled, &p.Topics); err != nil {
			return nil, fmt.Errorf("scan notification prefs: %w", err)
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

func (r *PGResolver) loadDevices(ctx context.Context) ([]Device, error) {
	rows, err := r.pool.Query(ctx, "user_devices_all")
	if err != nil {
		return nil, fmt.Errorf("load user devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.UserID, &d.Token, &d.Enabled); err != nil {
			return nil, fmt.Errorf("scan user device: %w", err)
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}
