package crossing

import (
	"context"
	"fmt"

	"github.com/kadrohq/kadro-server/internal/notify"
)

// EventEmitter is the slice of the notify emitter the trigger needs.
type EventEmitter interface {
	Emit(ctx context.Context, ev notify.Event) (notify.EmitResult, error)
}

// Trigger couples the evaluator to the event emitter: it evaluates one
// observation and, when the crossing fires, emits the teker_dondu_reached
// event. The event id embeds the day and the crossing ordinal so each
// genuine crossing is its own ledger entry while concurrent observers of
// the same crossing dedupe against each other.
type Trigger struct {
	eval    *Evaluator
	emitter EventEmitter
}

// NewTrigger wires an evaluator and emitter.
func NewTrigger(eval *Evaluator, emitter EventEmitter) *Trigger {
	return &Trigger{eval: eval, emitter: emitter}
}

// Check evaluates comingCount for dateKey and emits when the crossing
// fires. The emit result is nil when nothing was sent.
func (t *Trigger) Check(ctx context.Context, dateKey string, comingCount int) (Decision, *notify.EmitResult, error) {
	decision, err := t.eval.Evaluate(ctx, dateKey, comingCount)
	if err != nil {
		return Decision{}, nil, err
	}
	if !decision.ShouldSend {
		return decision, nil, nil
	}

	res, err := t.emitter.Emit(ctx, notify.Event{
		Topic:   notify.TopicTekerDondu,
		EventID: fmt.Sprintf("teker_dondu:%s:%d", dateKey, decision.CrossingCount),
		Title:   "Teker döndü! ⚽",
		Body:    fmt.Sprintf("%d kişi geliyorum dedi, maç var!", comingCount),
		Data: map[string]any{
			"coming_count": comingCount,
			"date":         dateKey,
		},
		CreatedByUID:  "system",
		CreatedByName: "system",
	})
	if err != nil {
		return decision, nil, err
	}
	return decision, &res, nil
}
