package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kadrohq/kadro-server/internal/store"
)

// ledgerPrefix namespaces event entries inside the shared state store.
const ledgerPrefix = "events/"

// Ledger persists EventRecord entries and arbitrates delivery
// ownership through the store's per-key transaction.
type Ledger struct {
	store store.Store
	now   func() time.Time
}

// NewLedger creates a ledger on top of a state store.
func NewLedger(s store.Store) *Ledger {
	return &Ledger{store: s, now: time.Now}
}

func ledgerKey(eventID string) string {
	return ledgerPrefix + eventID
}

// Claim attempts to take delivery ownership of ev. It commits a fresh
// pending entry when the event is absent, previously failed, or left
// pending longer than the staleness window. It aborts — leaving the entry
// untouched — when the event was already sent or is actively pending
// elsewhere. Returns true only for the caller that committed the claim.
func (l *Ledger) Claim(ctx context.Context, ev Event) (bool, error) {
	now := l.now()

	committed, _, err := l.store.Transaction(ctx, ledgerKey(ev.EventID), func(current []byte) ([]byte, error) {
		if current != nil {
			var rec EventRecord
			if err := json.Unmarshal(current, &rec); err != nil {
				return nil, fmt.Errorf("decode event %s: %w", ev.EventID, err)
			}
			if rec.Status == StatusSent {
				return nil, nil // already delivered, abort
			}
			if rec.Status == StatusPending && now.Sub(rec.CreatedAt) < pendingStaleAfter {
				return nil, nil // in flight elsewhere, abort
			}
			// failed or stale pending: re-claimable
		}

		rec := EventRecord{
			EventID:       ev.EventID,
			Topic:         ev.Topic,
			Status:        StatusPending,
			Title:         ev.Title,
			Body:          ev.Body,
			Data:          ev.Data,
			CreatedByUID:  ev.CreatedByUID,
			CreatedByName: ev.CreatedByName,
			CreatedAt:     now,
		}
		return json.Marshal(rec)
	})
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", ev.EventID, err)
	}
	return committed, nil
}

// MarkSent finalizes a claimed event with the dispatch outcome.
func (l *Ledger) MarkSent(ctx context.Context, eventID string, res DispatchResult) error {
	return l.finalize(ctx, eventID, func(rec *EventRecord) {
		rec.Status = StatusSent
		rec.SentAt = l.now()
		rec.RecipientCount = res.RecipientCount
		rec.SuccessCount = res.SuccessCount
		rec.FailureCount = res.FailureCount
		rec.Errors = res.Errors
	})
}

// MarkFailed finalizes a claimed event after a dispatch error. The entry
// stays re-claimable once it ages past the staleness window.
func (l *Ledger) MarkFailed(ctx context.Context, eventID, reason string) error {
	return l.finalize(ctx, eventID, func(rec *EventRecord) {
		rec.Status = StatusFailed
		rec.FailedAt = l.now()
		rec.LastError = reason
	})
}

func (l *Ledger) finalize(ctx context.Context, eventID string, mutate func(*EventRecord)) error {
	committed, _, err := l.store.Transaction(ctx, ledgerKey(eventID), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, fmt.Errorf("event %s vanished before finalize", eventID)
		}
		var rec EventRecord
		if err := json.Unmarshal(current, &rec); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", eventID, err)
		}
		mutate(&rec)
		return json.Marshal(rec)
	})
	if err != nil {
		return fmt.Errorf("finalize %s: %w", eventID, err)
	}
	if !committed {
		return fmt.Errorf("finalize %s: not committed", eventID)
	}
	return nil
}

// Get returns the ledger entry for a normalized event id, or nil if absent.
func (l *Ledger) Get(ctx context.Context, eventID string) (*EventRecord, error) {
	raw, err := l.store.Get(ctx, ledgerKey(eventID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var rec EventRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", eventID, err)
	}
	return &rec, nil
}
