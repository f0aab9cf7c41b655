package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kadrohq/kadro-server/internal/cache"
	"github.com/kadrohq/kadro-server/internal/config"
)

func newStatsHandler() (*Handler, *cache.Cache) {
	c := cache.New(true)
	h := &Handler{cfg: &config.Config{Environment: "test"}, cache: c}
	return h, c
}

func TestGetPlayerStatsServedFromCache(t *testing.T) {
	h, c := newStatsHandler()
	body := []byte(`[{"user_id":"u1","matches":3,"goals":5,"assists":1,"wins":2}]`)
	c.Set("stats:players", body, cache.TTLPlayerStats)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/players", nil)
	rec := httptest.NewRecorder()
	h.GetPlayerStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != string(body) {
		t.Fatalf("body = %q, want cached payload", got)
	}
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("X-Cache = %q, want HIT", rec.Header().Get("X-Cache"))
	}
	if rec.Header().Get("ETag") == "" {
		t.Fatal("cached response must carry an ETag")
	}
	if rec.Header().Get("Cache-Control") == "" {
		t.Fatal("cached response must carry Cache-Control")
	}
}

func TestGetPlayerStatsNotModifiedOnETagMatch(t *testing.T) {
	h, c := newStatsHandler()
	etag := c.Set("stats:players", []byte(`[]`), cache.TTLPlayerStats)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/players", nil)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	h.GetPlayerStats(rec, req)

	if rec.Code != http.StatusNotModified {
		t.Fatalf("status = %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatal("304 must carry no body")
	}
	if rec.Header().Get("ETag") != etag {
		t.Fatalf("ETag = %q, want %q", rec.Header().Get("ETag"), etag)
	}
}

func TestGetStatsLastUpdatedServedFromCache(t *testing.T) {
	h, c := newStatsHandler()
	body := []byte(`{"last_updated":"2026-08-30T10:00:00Z"}`)
	c.Set("stats:last-updated", body, cache.TTLLastUpdated)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/last-updated", nil)
	rec := httptest.NewRecorder()
	h.GetStatsLastUpdated(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != string(body) {
		t.Fatalf("body = %q, want cached payload", got)
	}
}
