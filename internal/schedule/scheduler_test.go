package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kadrohq/kadro-server/internal/notify"
	"github.com/kadrohq/kadro-server/internal/store"
)

type staticResolver struct{ tokens []string }

func (r *staticResolver) Resolve(context.Context, notify.Topic) ([]string, error) {
	return r.tokens, nil
}

type countingSender struct{ calls int }

func (s *countingSender) SendMulticast(_ context.Context, tokens []string, _ map[string]string) (notify.BatchResult, error) {
	s.calls++
	return notify.BatchResult{SuccessCount: len(tokens)}, nil
}

type fixedAttendance struct{ count int }

func (a *fixedAttendance) ComingCount(context.Context, string) (int, error) {
	return a.count, nil
}

type failingAttendance struct{}

func (a *failingAttendance) ComingCount(context.Context, string) (int, error) {
	return 0, errors.New("attendance table unreachable")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(count int, now time.Time) (*Scheduler, *countingSender) {
	sender := &countingSender{}
	dispatcher := notify.NewDispatcher(&staticResolver{tokens: []string{"tok-1"}}, sender, testLogger())
	emitter := notify.NewEmitter(notify.NewLedger(store.NewMemory()), dispatcher, testLogger())

	s := New(emitter, &fixedAttendance{count: count}, nil, time.UTC, testLogger())
	s.now = func() time.Time { return now }
	return s, sender
}

// Wednesday 09:00 UTC — matches the match_day_morning rule.
var matchMorning = time.Date(2026, 9, 2, 9, 0, 12, 0, time.UTC)

func TestTickFiresMatchingRuleOnce(t *testing.T) {
	s, sender := newTestScheduler(5, matchMorning)

	s.Tick(context.Background())
	if sender.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", sender.calls)
	}

	// Second tick inside the same minute: same event id, ledger dedupes.
	s.now = func() time.Time { return matchMorning.Add(30 * time.Second) }
	s.Tick(context.Background())
	if sender.calls != 1 {
		t.Fatalf("provider calls after re-tick = %d, want still 1", sender.calls)
	}
}

func TestTickNoMatchNoEmission(t *testing.T) {
	s, sender := newTestScheduler(5, matchMorning.Add(time.Minute))
	s.Tick(context.Background())
	if sender.calls != 0 {
		t.Fatalf("provider calls = %d, want 0", sender.calls)
	}
}

func TestGuardSuppressesRule(t *testing.T) {
	// Wednesday 15:00 — attendance_nudge, guarded on count < threshold.
	nudgeTime := time.Date(2026, 9, 2, 15, 0, 3, 0, time.UTC)

	s, sender := newTestScheduler(11, nudgeTime)
	s.Tick(context.Background())
	if sender.calls != 0 {
		t.Fatal("guard must suppress the nudge once the wheel turned")
	}

	s2, sender2 := newTestScheduler(7, nudgeTime)
	s2.Tick(context.Background())
	if sender2.calls != 1 {
		t.Fatalf("provider calls = %d, want 1 below threshold", sender2.calls)
	}
}

func TestCountFailureOnlySkipsCountingRules(t *testing.T) {
	sender := &countingSender{}
	dispatcher := notify.NewDispatcher(&staticResolver{tokens: []string{"tok-1"}}, sender, testLogger())
	emitter := notify.NewEmitter(notify.NewLedger(store.NewMemory()), dispatcher, testLogger())

	// match_day_morning never reads the count; a broken attendance source
	// must not block it.
	s := New(emitter, &failingAttendance{}, nil, time.UTC, testLogger())
	s.now = func() time.Time { return matchMorning }
	s.Tick(context.Background())
	if sender.calls != 1 {
		t.Fatalf("count-free rule blocked by attendance failure: calls = %d", sender.calls)
	}

	// attendance_nudge does read the count, so it is skipped.
	nudgeTime := time.Date(2026, 9, 2, 15, 0, 3, 0, time.UTC)
	s2 := New(emitter, &failingAttendance{}, nil, time.UTC, testLogger())
	s2.now = func() time.Time { return nudgeTime }
	s2.Tick(context.Background())
	if sender.calls != 1 {
		t.Fatalf("counting rule must be skipped on attendance failure: calls = %d", sender.calls)
	}
}

func TestRuleMatchesMinuteExactly(t *testing.T) {
	r := Rule{ID: "x", Weekday: time.Friday, Hour: 20, Minute: 30}
	cases := []struct {
		rc   RuleContext
		want bool
	}{
		{RuleContext{Weekday: time.Friday, Hour: 20, Minute: 30}, true},
		{RuleContext{Weekday: time.Friday, Hour: 20, Minute: 31}, false},
		{RuleContext{Weekday: time.Friday, Hour: 21, Minute: 30}, false},
		{RuleContext{Weekday: time.Saturday, Hour: 20, Minute: 30}, false},
	}
	for _, c := range cases {
		if got := r.Matches(c.rc); got != c.want {
			t.Errorf("Matches(%+v) = %v, want %v", c.rc, got, c.want)
		}
	}
}

func TestStatsWatcherEmitsOnChangeWithCooldown(t *testing.T) {
	stamp := "2026-08-30T10:00:00Z"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"last_updated":"` + stamp + `"}`))
	}))
	defer srv.Close()

	sender := &countingSender{}
	dispatcher := notify.NewDispatcher(&staticResolver{tokens: []string{"tok-1"}}, sender, testLogger())
	emitter := notify.NewEmitter(notify.NewLedger(store.NewMemory()), dispatcher, testLogger())

	w := NewStatsWatcher(srv.URL, testLogger())
	base := time.Now()
	w.now = func() time.Time { return base }

	// First observation emits (restart behavior: ledger absorbs real dupes).
	w.Check(context.Background(), emitter)
	if sender.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", sender.calls)
	}

	// Within the cooldown the endpoint is not even polled.
	stamp = "2026-08-30T11:00:00Z"
	w.now = func() time.Time { return base.Add(30 * time.Second) }
	w.Check(context.Background(), emitter)
	if sender.calls != 1 {
		t.Fatalf("cooldown violated: provider calls = %d", sender.calls)
	}

	// After the cooldown the new stamp emits a fresh event.
	w.now = func() time.Time { return base.Add(61 * time.Second) }
	w.Check(context.Background(), emitter)
	if sender.calls != 2 {
		t.Fatalf("provider calls = %d, want 2", sender.calls)
	}

	// Unchanged stamp: no further emission.
	w.now = func() time.Time { return base.Add(150 * time.Second) }
	w.Check(context.Background(), emitter)
	if sender.calls != 2 {
		t.Fatalf("unchanged stamp emitted: provider calls = %d", sender.calls)
	}
}

func TestStatsWatcherRetriesNextTickAfterFetchError(t *testing.T) {
	fail := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"last_updated":"2026-08-30T10:00:00Z"}`))
	}))
	defer srv.Close()

	sender := &countingSender{}
	dispatcher := notify.NewDispatcher(&staticResolver{tokens: []string{"tok-1"}}, sender, testLogger())
	emitter := notify.NewEmitter(notify.NewLedger(store.NewMemory()), dispatcher, testLogger())

	w := NewStatsWatcher(srv.URL, testLogger())
	base := time.Now()
	w.now = func() time.Time { return base }

	w.Check(context.Background(), emitter)
	if sender.calls != 0 {
		t.Fatal("failed fetch must not emit")
	}

	// A failed poll does not start the cooldown: the very next tick, 30s
	// later, polls again and emits.
	fail = false
	w.now = func() time.Time { return base.Add(30 * time.Second) }
	w.Check(context.Background(), emitter)
	if sender.calls != 1 {
		t.Fatalf("failed poll must be retried next tick: calls = %d", sender.calls)
	}
}
