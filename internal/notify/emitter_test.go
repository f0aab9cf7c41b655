package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kadrohq/kadro-server/internal/store"
)

type staticResolver struct {
	tokens []string
	err    error
}

func (r *staticResolver) Resolve(context.Context, Topic) ([]string, error) {
	return r.tokens, r.err
}

type countingSender struct {
	calls   atomic.Int64
	batches [][]string
	mu      sync.Mutex
	err     error
}

func (s *countingSender) SendMulticast(_ context.Context, tokens []string, _ map[string]string) (BatchResult, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.batches = append(s.batches, tokens)
	s.mu.Unlock()
	if s.err != nil {
		return BatchResult{}, s.err
	}
	return BatchResult{SuccessCount: len(tokens)}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEmitter(resolver Resolver, sender Sender) (*Emitter, *Ledger) {
	ledger := NewLedger(store.NewMemory())
	dispatcher := NewDispatcher(resolver, sender, testLogger())
	return NewEmitter(ledger, dispatcher, testLogger()), ledger
}

func TestEmitAtMostOnceUnderConcurrency(t *testing.T) {
	sender := &countingSender{}
	emitter, _ := newTestEmitter(&staticResolver{tokens: []string{"tok-1", "tok-2"}}, sender)

	const callers = 20
	ev := Event{
		Topic:   TopicTekerDondu,
		EventID: "teker_dondu:2026-08-30:1",
		Title:   "Teker döndü!",
		Body:    "10 kişi geliyor",
	}

	results := make([]EmitResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := emitter.Emit(context.Background(), ev)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	senders := 0
	for _, r := range results {
		if !r.Duplicate {
			senders++
			if r.Dispatch == nil || r.Dispatch.SuccessCount != 2 {
				t.Errorf("sender result missing dispatch stats: %+v", r)
			}
		}
	}
	if senders != 1 {
		t.Fatalf("got %d non-duplicate results, want exactly 1", senders)
	}
	if got := sender.calls.Load(); got != 1 {
		t.Fatalf("provider invoked %d times, want 1", got)
	}
}

func TestEmitStalePendingRecovery(t *testing.T) {
	sender := &countingSender{}
	emitter, ledger := newTestEmitter(&staticResolver{tokens: []string{"tok-1"}}, sender)

	ev := Event{Topic: TopicStatsUpdated, EventID: "stats:123", Title: "t", Body: "b"}

	// Seed a pending entry 29s old: still in flight, must block.
	base := time.Now()
	ledger.now = func() time.Time { return base.Add(-29 * time.Second) }
	if ok, err := ledger.Claim(context.Background(), ev); err != nil || !ok {
		t.Fatalf("seed claim: ok=%v err=%v", ok, err)
	}

	ledger.now = time.Now
	res, err := emitter.Emit(context.Background(), ev)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Duplicate {
		t.Fatal("29s-old pending entry must not be re-claimable")
	}

	// Age the entry past the staleness window: re-claimable.
	emitter2, ledger2 := newTestEmitter(&staticResolver{tokens: []string{"tok-1"}}, sender)
	ledger2.now = func() time.Time { return base.Add(-31 * time.Second) }
	if ok, err := ledger2.Claim(context.Background(), ev); err != nil || !ok {
		t.Fatalf("seed claim: ok=%v err=%v", ok, err)
	}

	ledger2.now = time.Now
	res, err = emitter2.Emit(context.Background(), ev)
	if err != nil {
		t.Fatal(err)
	}
	if res.Duplicate {
		t.Fatal("31s-old pending entry must be re-claimable")
	}
}

func TestEmitAlreadySentStaysSent(t *testing.T) {
	sender := &countingSender{}
	emitter, _ := newTestEmitter(&staticResolver{tokens: []string{"tok-1"}}, sender)

	ev := Event{Topic: TopicMVPPollLocked, EventID: "mvp:2026-08-30", Title: "t", Body: "b"}

	first, err := emitter.Emit(context.Background(), ev)
	if err != nil {
		t.Fatal(err)
	}
	if first.Duplicate {
		t.Fatal("first emit should send")
	}

	second, err := emitter.Emit(context.Background(), ev)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Duplicate {
		t.Fatal("second emit of a sent event must be a duplicate")
	}
	if got := sender.calls.Load(); got != 1 {
		t.Fatalf("provider invoked %d times, want 1", got)
	}
}

func TestEmitDispatchFailureMarksFailedAndSurfaces(t *testing.T) {
	resolver := &staticResolver{err: errors.New("prefs table unreachable")}
	emitter, ledger := newTestEmitter(resolver, &countingSender{})

	ev := Event{Topic: TopicAdminMessage, EventID: "admin:42", Title: "t", Body: "b"}

	if _, err := emitter.Emit(context.Background(), ev); err == nil {
		t.Fatal("dispatch failure must surface to the caller")
	}

	rec, err := ledger.Get(context.Background(), ev.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Status != StatusFailed {
		t.Fatalf("ledger entry = %+v, want status failed", rec)
	}
	if rec.LastError == "" {
		t.Fatal("failed entry should record the error message")
	}

	// A failed entry is immediately re-claimable: retry by re-emission.
	resolver.err = nil
	resolver.tokens = []string{"tok-1"}
	res, err := emitter.Emit(context.Background(), ev)
	if err != nil {
		t.Fatal(err)
	}
	if res.Duplicate {
		t.Fatal("failed entry must be re-claimable")
	}
}

func TestEmitMergesEventIDIntoData(t *testing.T) {
	sender := &recordingSender{}
	emitter, _ := newTestEmitter(&staticResolver{tokens: []string{"tok-1"}}, sender)

	ev := Event{
		Topic:   TopicTimedReminders,
		EventID: "timed:match_reminder:2026-08-30",
		Title:   "t",
		Body:    "b",
		Data:    map[string]any{"coming_count": 11},
	}
	if _, err := emitter.Emit(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	if got := sender.lastData["event_id"]; got != ev.EventID {
		t.Fatalf("payload event_id = %q, want %q", got, ev.EventID)
	}
	if got := sender.lastData["coming_count"]; got != "11" {
		t.Fatalf("payload coming_count = %q, want stringified 11", got)
	}
}

func TestNormalizeEventID(t *testing.T) {
	cases := map[string]string{
		"timed:match_reminder:2026-08-30": "timed:match_reminder:2026-08-30",
		"stats:2026-08-30T10:00:00.123Z":  "stats:2026-08-30T10:00:00_123Z",
		"a/b#c$d[e]f.g h":                 "a_b_c_d_e_f_g_h",
	}
	for in, want := range cases {
		if got := NormalizeEventID(in); got != want {
			t.Errorf("NormalizeEventID(%q) = %q, want %q", in, got, want)
		}
	}
}

type recordingSender struct {
	lastData map[string]string
}

func (s *recordingSender) SendMulticast(_ context.Context, tokens []string, data map[string]string) (BatchResult, error) {
	s.lastData = data
	return BatchResult{SuccessCount: len(tokens)}, nil
}
