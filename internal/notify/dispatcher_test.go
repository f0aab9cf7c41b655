package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestDispatchEmptyRecipientsShortCircuits(t *testing.T) {
	sender := &countingSender{}
	d := NewDispatcher(&staticResolver{}, sender, testLogger())

	res, err := d.Dispatch(context.Background(), TopicStatsUpdated, "t", "b", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.RecipientCount != 0 || res.SuccessCount != 0 || res.FailureCount != 0 {
		t.Fatalf("want zero-valued result, got %+v", res)
	}
	if res.Errors == nil || len(res.Errors) != 0 {
		t.Fatalf("want empty (non-nil) error list, got %#v", res.Errors)
	}
	if sender.calls.Load() != 0 {
		t.Fatal("provider must not be called with zero recipients")
	}
}

func TestDispatchBatchPartition(t *testing.T) {
	tokens := make([]string, 1200)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%04d", i)
	}
	sender := &countingSender{}
	d := NewDispatcher(&staticResolver{tokens: tokens}, sender, testLogger())

	res, err := d.Dispatch(context.Background(), TopicTekerDondu, "t", "b", nil)
	if err != nil {
		t.Fatal(err)
	}

	if got := sender.calls.Load(); got != 3 {
		t.Fatalf("provider calls = %d, want 3", got)
	}
	wantSizes := []int{500, 500, 200}
	for i, batch := range sender.batches {
		if len(batch) != wantSizes[i] {
			t.Errorf("batch %d size = %d, want %d", i, len(batch), wantSizes[i])
		}
	}
	if res.RecipientCount != 1200 || res.SuccessCount != 1200 || res.FailureCount != 0 {
		t.Fatalf("unexpected aggregate: %+v", res)
	}
}

func TestDispatchBatchErrorCountsWholeBatch(t *testing.T) {
	tokens := make([]string, 600)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%04d", i)
	}
	sender := &countingSender{err: errors.New("fcm unavailable")}
	d := NewDispatcher(&staticResolver{tokens: tokens}, sender, testLogger())

	res, err := d.Dispatch(context.Background(), TopicTekerDondu, "t", "b", nil)
	if err != nil {
		t.Fatal("batch errors are a non-exceptional outcome")
	}
	if res.FailureCount != 600 || res.SuccessCount != 0 {
		t.Fatalf("unexpected aggregate: %+v", res)
	}
	if len(res.Errors) != 1 || res.Errors[0] != "fcm unavailable" {
		t.Fatalf("errors should be deduplicated across batches: %#v", res.Errors)
	}
}

func TestDedupeErrorsCap(t *testing.T) {
	var errs []string
	for i := 0; i < 50; i++ {
		errs = append(errs, fmt.Sprintf("err-%d", i), fmt.Sprintf("err-%d", i))
	}
	out := dedupeErrors(errs, maxErrors)
	if len(out) != maxErrors {
		t.Fatalf("len = %d, want %d", len(out), maxErrors)
	}
	if out[0] != "err-0" || out[19] != "err-19" {
		t.Fatalf("dedupe should preserve first-seen order: %v", out[:2])
	}
}

func TestCoerceString(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"s", "s"},
		{true, "true"},
		{11, "11"},
		{int64(7), "7"},
		{float64(10), "10"},
		{10.5, "10.5"},
	}
	for _, c := range cases {
		if got := coerceString(c.in); got != c.want {
			t.Errorf("coerceString(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
