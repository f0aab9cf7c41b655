package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kadrohq/kadro-server/internal/api/respond"
	"github.com/kadrohq/kadro-server/internal/cache"
)

// Cache keys for the two public stats endpoints. Both serve one global
// dataset, so a static key per endpoint is enough.
const (
	playerStatsCacheKey = "stats:players"
	lastUpdatedCacheKey = "stats:last-updated"
)

// PlayerStats is one row of the aggregated per-player summary.
type PlayerStats struct {
	UserID  string `json:"user_id"`
	Matches int    `json:"matches"`
	Goals   int    `json:"goals"`
	Assists int    `json:"assists"`
	Wins    int    `json:"wins"`
}

// GetPlayerStats returns aggregated match statistics per player.
// @Summary Aggregated player stats
// @Description Per-player totals across all recorded matches.
// @Tags stats
// @Produce json
// @Success 200 {array} PlayerStats
// @Router /stats/players [get]
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	if data, etag, ok := h.cache.Get(playerStatsCacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLPlayerStats, true)
		return
	}

	rows, err := h.pool.Query(r.Context(), "stats_player_summary")
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL", "Stats query failed", err.Error())
		return
	}
	defer rows.Close()

	stats := make([]PlayerStats, 0)
	for rows.Next() {
		var s PlayerStats
		if err := rows.Scan(&s.UserID, &s.Matches, &s.Goals, &s.Assists, &s.Wins); err != nil {
			respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL", "Stats scan failed", err.Error())
			return
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL", "Stats read failed", err.Error())
		return
	}

	data, err := json.Marshal(stats)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL", "Stats encode failed", err.Error())
		return
	}
	etag := h.cache.Set(playerStatsCacheKey, data, cache.TTLPlayerStats)
	respond.WriteJSON(w, data, etag, cache.TTLPlayerStats, false)
}

// GetStatsLastUpdated returns the newest match_stats timestamp. The
// scheduler's stats watcher polls this to detect changes; the short TTL
// keeps detection lag well under the watcher's cooldown.
// @Summary Stats last-updated timestamp
// @Tags stats
// @Produce json
// @Success 200 {object} map[string]string
// @Router /stats/last-updated [get]
func (h *Handler) GetStatsLastUpdated(w http.ResponseWriter, r *http.Request) {
	if data, etag, ok := h.cache.Get(lastUpdatedCacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLLastUpdated, true)
		return
	}

	var t time.Time
	if err := h.pool.QueryRow(r.Context(), "stats_last_updated").Scan(&t); err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL", "Stats timestamp query failed", err.Error())
		return
	}

	data, err := json.Marshal(map[string]string{
		"last_updated": t.UTC().Format(time.RFC3339),
	})
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL", "Stats encode failed", err.Error())
		return
	}
	etag := h.cache.Set(lastUpdatedCacheKey, data, cache.TTLLastUpdated)
	respond.WriteJSON(w, data, etag, cache.TTLLastUpdated, false)
}
