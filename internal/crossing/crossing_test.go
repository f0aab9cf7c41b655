package crossing

import (
	"context"
	"testing"
	"time"

	"github.com/kadrohq/kadro-server/internal/store"
)

const day = "2026-08-30"

func newTestEvaluator() (*Evaluator, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 8, 30, 18, 0, 0, 0, time.UTC)}
	e := NewEvaluator(store.NewMemory())
	e.now = clock.Now
	return e, clock
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestFlappingWithinSettleWindowNeverFires(t *testing.T) {
	e, clock := newTestEvaluator()
	ctx := context.Background()

	// 9 → 10 → 9 → 10 inside 5 seconds: all within the settle window.
	for _, step := range []struct {
		count   int
		advance time.Duration
	}{
		{9, 0}, {10, time.Second}, {9, 2 * time.Second}, {10, 2 * time.Second},
	} {
		clock.Advance(step.advance)
		d, err := e.Evaluate(ctx, day, step.count)
		if err != nil {
			t.Fatal(err)
		}
		if d.ShouldSend {
			t.Fatalf("flapping count fired at %d", step.count)
		}
	}
}

func TestSustainedCrossingFiresAfterSettle(t *testing.T) {
	e, clock := newTestEvaluator()
	ctx := context.Background()

	d, err := e.Evaluate(ctx, day, 10)
	if err != nil {
		t.Fatal(err)
	}
	if d.ShouldSend {
		t.Fatal("fresh crossing must wait for the settle window")
	}
	wantSettle := clock.Now().Add(SettleWindow)
	if !d.PendingSettlesAt.Equal(wantSettle) {
		t.Fatalf("PendingSettlesAt = %v, want %v", d.PendingSettlesAt, wantSettle)
	}

	// Re-observation halfway through must not reset the settle timer.
	clock.Advance(5 * time.Second)
	d, err = e.Evaluate(ctx, day, 10)
	if err != nil {
		t.Fatal(err)
	}
	if d.ShouldSend {
		t.Fatal("settle window not elapsed yet")
	}
	if !d.PendingSettlesAt.Equal(wantSettle) {
		t.Fatalf("re-observation moved the settle timer: %v != %v", d.PendingSettlesAt, wantSettle)
	}

	clock.Advance(5 * time.Second)
	d, err = e.Evaluate(ctx, day, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !d.ShouldSend {
		t.Fatal("sustained crossing must fire at the settle mark")
	}
	if d.CrossingCount != 1 {
		t.Fatalf("CrossingCount = %d, want 1", d.CrossingCount)
	}

	// Immediately after firing: still above, pending cleared, no re-fire.
	d, err = e.Evaluate(ctx, day, 10)
	if err != nil {
		t.Fatal(err)
	}
	if d.ShouldSend {
		t.Fatal("repeated above-threshold observation must not re-fire")
	}
}

func TestCooldownSuppressionAndExpiry(t *testing.T) {
	e, clock := newTestEvaluator()

	// First sustained crossing fires.
	mustEvaluate(t, e, day, 10)
	clock.Advance(SettleWindow)
	d := mustEvaluate(t, e, day, 10)
	if !d.ShouldSend {
		t.Fatal("first crossing should fire")
	}

	// Drop below, rise again, settle — still inside cooldown.
	clock.Advance(5 * time.Second)
	mustEvaluate(t, e, day, 8)
	clock.Advance(time.Second)
	mustEvaluate(t, e, day, 10)
	clock.Advance(SettleWindow)
	d = mustEvaluate(t, e, day, 10)
	if d.ShouldSend {
		t.Fatal("second crossing inside cooldown must be suppressed")
	}
	if !d.CooldownActive {
		t.Fatal("suppression must be reported as cooldownActive")
	}
	if d.CooldownRemaining <= 0 || d.CooldownRemaining > Cooldown {
		t.Fatalf("CooldownRemaining = %v", d.CooldownRemaining)
	}

	// After cooldown expires the same sustained rise fires again.
	clock.Advance(Cooldown)
	d = mustEvaluate(t, e, day, 10)
	if !d.ShouldSend {
		t.Fatal("crossing after cooldown expiry must fire")
	}
	if d.CrossingCount != 2 {
		t.Fatalf("CrossingCount = %d, want 2", d.CrossingCount)
	}
}

func TestDropBelowClearsPending(t *testing.T) {
	e, clock := newTestEvaluator()

	mustEvaluate(t, e, day, 10)
	clock.Advance(5 * time.Second)
	d := mustEvaluate(t, e, day, 9)
	if !d.PendingSettlesAt.IsZero() {
		t.Fatal("dropping below threshold must clear the pending timer")
	}

	// Rising again starts a fresh settle window.
	clock.Advance(time.Second)
	d = mustEvaluate(t, e, day, 10)
	want := clock.Now().Add(SettleWindow)
	if !d.PendingSettlesAt.Equal(want) {
		t.Fatalf("fresh crossing settle = %v, want %v", d.PendingSettlesAt, want)
	}
}

func TestStatePersistsObservations(t *testing.T) {
	s := store.NewMemory()
	e := NewEvaluator(s)
	clock := &fakeClock{t: time.Now()}
	e.now = clock.Now

	if _, err := e.Evaluate(context.Background(), day, 7); err != nil {
		t.Fatal(err)
	}

	raw, err := s.Get(context.Background(), statePrefix+day)
	if err != nil {
		t.Fatal(err)
	}
	if raw == nil {
		t.Fatal("evaluation must persist the day node")
	}
}

func mustEvaluate(t *testing.T, e *Evaluator, dateKey string, count int) Decision {
	t.Helper()
	d, err := e.Evaluate(context.Background(), dateKey, count)
	if err != nil {
		t.Fatal(err)
	}
	return d
}
