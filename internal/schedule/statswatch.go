package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kadrohq/kadro-server/internal/notify"
)

const (
	// statsCheckCooldown gates how often the aggregation endpoint is
	// polled, independent of the tick interval.
	statsCheckCooldown = 60 * time.Second

	// statsFetchTimeout bounds each poll; a timed-out tick is simply
	// skipped and retried next interval.
	statsFetchTimeout = 5 * time.Second
)

// StatsWatcher polls the stats aggregation endpoint and emits a
// stats_updated event whenever the reported timestamp changes.
//
// The last-seen timestamp is held in memory only and resets on restart.
// That is deliberate: the event id embeds the timestamp value, so the
// ledger absorbs the at-most-one duplicate emission a restart can cause.
// Durability here would buy nothing.
type StatsWatcher struct {
	url       string
	client    *http.Client
	logger    *slog.Logger
	now       func() time.Time
	lastCheck time.Time
	lastStamp string
}

// NewStatsWatcher creates a watcher for the given last-updated endpoint.
func NewStatsWatcher(url string, logger *slog.Logger) *StatsWatcher {
	return &StatsWatcher{
		url:    url,
		client: &http.Client{Timeout: statsFetchTimeout},
		logger: logger,
		now:    time.Now,
	}
}

// lastUpdatedResponse matches the stats handler's GET /stats/last-updated
// payload.
type lastUpdatedResponse struct {
	LastUpdated string `json:"last_updated"`
}

// Check polls the endpoint if the cooldown allows and emits on change.
// Called from the scheduler's single goroutine; not safe for concurrent use.
func (w *StatsWatcher) Check(ctx context.Context, emitter Emitter) {
	now := w.now()
	if !w.lastCheck.IsZero() && now.Sub(w.lastCheck) < statsCheckCooldown {
		return
	}

	stamp, err := w.fetch(ctx)
	if err != nil {
		// lastCheck stays put, so the next tick retries instead of
		// waiting out a full cooldown on a failed poll.
		w.logger.Warn("Stats check failed, retrying next interval", "error", err)
		return
	}
	w.lastCheck = now
	if stamp == "" || stamp == w.lastStamp {
		return
	}
	w.lastStamp = stamp

	res, err := emitter.Emit(ctx, notify.Event{
		Topic:         notify.TopicStatsUpdated,
		EventID:       "stats:" + stamp,
		Title:         "İstatistikler güncellendi 📊",
		Body:          "Maç istatistikleri yenilendi, sıralamana göz at.",
		Data:          map[string]any{"last_updated": stamp},
		CreatedByUID:  "system",
		CreatedByName: "scheduler",
	})
	if err != nil {
		w.logger.Error("Stats update emit failed", "error", err)
		return
	}
	if !res.Duplicate {
		w.logger.Info("Stats update notified", "stamp", stamp)
	}
}

func (w *StatsWatcher) fetch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, statsFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return "", fmt.Errorf("build stats request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch stats timestamp: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stats endpoint returned %d", resp.StatusCode)
	}

	var body lastUpdatedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode stats timestamp: %w", err)
	}
	return body.LastUpdated, nil
}
