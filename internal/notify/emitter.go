package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Emitter is the orchestrator of the emission path: claim, dispatch,
// finalize. Safe for concurrent use; all coordination happens in the ledger.
type Emitter struct {
	ledger     *Ledger
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewEmitter wires a ledger and dispatcher into an emitter.
func NewEmitter(ledger *Ledger, dispatcher *Dispatcher, logger *slog.Logger) *Emitter {
	return &Emitter{ledger: ledger, dispatcher: dispatcher, logger: logger}
}

// Emit delivers ev at most once per claim window. Concurrent calls with the
// same event id yield exactly one Duplicate=false result (the sender); all
// others return Duplicate=true without touching the push provider.
//
// A dispatch error marks the entry failed and is returned to the caller;
// the entry becomes re-claimable after the staleness window, so re-emitting
// the same event id later is the retry mechanism.
func (e *Emitter) Emit(ctx context.Context, ev Event) (EmitResult, error) {
	ev.EventID = NormalizeEventID(ev.EventID)
	if ev.EventID == "" {
		return EmitResult{}, fmt.Errorf("emit: empty event id")
	}

	claimed, err := e.ledger.Claim(ctx, ev)
	if err != nil {
		return EmitResult{}, err
	}
	if !claimed {
		e.logger.Info("Duplicate event skipped", "event_id", ev.EventID, "topic", ev.Topic)
		return EmitResult{EventID: ev.EventID, Duplicate: true}, nil
	}

	// This caller owns delivery.
	data := map[string]any{"event_id": ev.EventID}
	for k, v := range ev.Data {
		data[k] = v
	}

	res, err := e.dispatcher.Dispatch(ctx, ev.Topic, ev.Title, ev.Body, data)
	if err != nil {
		if markErr := e.ledger.MarkFailed(ctx, ev.EventID, err.Error()); markErr != nil {
			e.logger.Error("Failed to mark event failed", "event_id", ev.EventID, "error", markErr)
		}
		return EmitResult{}, fmt.Errorf("dispatch %s: %w", ev.EventID, err)
	}

	if err := e.ledger.MarkSent(ctx, ev.EventID, res); err != nil {
		return EmitResult{}, err
	}

	e.logger.Info("Event dispatched",
		"event_id", ev.EventID,
		"topic", ev.Topic,
		"recipients", res.RecipientCount,
		"success", res.SuccessCount,
		"failure", res.FailureCount)

	return EmitResult{EventID: ev.EventID, Duplicate: false, Dispatch: &res}, nil
}
