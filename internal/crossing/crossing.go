// Package crossing implements the Teker Döndü threshold state machine: a
// noisy attendance count must stay at or above the threshold for a full
// settle window before a crossing fires, and repeat firings for the same
// sustained high count are suppressed by a cooldown.
//
// The state machine is re-derived from scratch on every evaluation — no
// in-memory state, all of it lives in one persisted per-day node mutated
// through the store's atomic transaction. That makes evaluation idempotent
// and crash-tolerant, and lets any number of request handlers, the
// scheduler, and the attendance listener call it concurrently.
package crossing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kadrohq/kadro-server/internal/store"
)

const (
	// Threshold is the coming count at which the wheel turns.
	Threshold = 10

	// SettleWindow is how long the count must hold above threshold before
	// a crossing fires. A rapid scroll through attendance states must not
	// trigger a notification.
	SettleWindow = 10 * time.Second

	// Cooldown suppresses repeat firings after a successful one. A second
	// genuine drop-then-rise cycle can fire again once it expires.
	Cooldown = 60 * time.Second

	statePrefix = "state/teker_dondu/"
)

// State is the persisted per-day node.
type State struct {
	AboveThreshold     bool      `json:"above_threshold"`
	CrossingCount      int       `json:"crossing_count"`
	PendingSince       time.Time `json:"pending_since,omitzero"`
	LastNotificationAt time.Time `json:"last_notification_at,omitzero"`
	LastComingCount    int       `json:"last_coming_count"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Decision is the outcome of one evaluation.
type Decision struct {
	ShouldSend        bool
	CrossingCount     int           // post-increment when ShouldSend
	CooldownActive    bool          // above + settled but suppressed
	CooldownRemaining time.Duration // 0 unless CooldownActive
	PendingSettlesAt  time.Time     // zero unless a crossing is pending
	ComingCount       int
}

// Evaluator runs the state machine against the persisted per-day node.
type Evaluator struct {
	store store.Store
	now   func() time.Time
}

// NewEvaluator creates an evaluator on a state store.
func NewEvaluator(s store.Store) *Evaluator {
	return &Evaluator{store: s, now: time.Now}
}

// Evaluate feeds one observation of the coming count into the day's state
// machine and returns the decision. The read-modify-write is atomic; two
// evaluations of the same day never interleave.
func (e *Evaluator) Evaluate(ctx context.Context, dateKey string, comingCount int) (Decision, error) {
	now := e.now()
	var decision Decision

	committed, _, err := e.store.Transaction(ctx, statePrefix+dateKey, func(current []byte) ([]byte, error) {
		var st State
		if current != nil {
			if err := json.Unmarshal(current, &st); err != nil {
				return nil, fmt.Errorf("decode crossing state %s: %w", dateKey, err)
			}
		}

		nowAbove := comingCount >= Threshold

		// Resolve the settle timer for this observation. A fresh rise
		// starts it; re-observing an already-above count preserves it;
		// dropping below clears it.
		var pendingSince time.Time
		switch {
		case nowAbove && !st.AboveThreshold:
			pendingSince = now
		case nowAbove && !st.PendingSince.IsZero():
			pendingSince = st.PendingSince
		default:
			pendingSince = time.Time{}
		}

		settled := !pendingSince.IsZero() && now.Sub(pendingSince) >= SettleWindow
		inCooldown := !st.LastNotificationAt.IsZero() && now.Sub(st.LastNotificationAt) < Cooldown
		shouldSend := nowAbove && settled && !inCooldown

		decision = Decision{
			ShouldSend:    shouldSend,
			CrossingCount: st.CrossingCount,
			ComingCount:   comingCount,
		}

		if shouldSend {
			st.CrossingCount++
			st.PendingSince = time.Time{}
			st.LastNotificationAt = now
			decision.CrossingCount = st.CrossingCount
		} else {
			st.PendingSince = pendingSince
			if nowAbove && settled && inCooldown {
				decision.CooldownActive = true
				decision.CooldownRemaining = Cooldown - now.Sub(st.LastNotificationAt)
			}
			if !pendingSince.IsZero() {
				// Callers can schedule a precise re-check instead of polling.
				decision.PendingSettlesAt = pendingSince.Add(SettleWindow)
			}
		}

		st.AboveThreshold = nowAbove
		st.LastComingCount = comingCount
		st.UpdatedAt = now
		return json.Marshal(&st)
	})
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate crossing %s: %w", dateKey, err)
	}
	if !committed {
		return Decision{}, fmt.Errorf("evaluate crossing %s: not committed", dateKey)
	}
	return decision, nil
}

// DateKey formats t as the per-day state key (YYYY-MM-DD) in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
