// Package listener provides a Postgres LISTEN/NOTIFY consumer for real-time
// attendance processing. It holds a dedicated pgx connection (not from the
// pool) listening on the `attendance_changed` channel.
//
// When a player flips their attendance the web app's trigger fires
// pg_notify; this consumer recomputes the coming count and feeds it into
// the crossing evaluator. When the evaluator reports a pending settle
// window it schedules a one-shot re-check for the exact moment the window
// ends, instead of polling.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kadrohq/kadro-server/internal/attendance"
	"github.com/kadrohq/kadro-server/internal/crossing"
)

const (
	channel          = "attendance_changed"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// AttendanceEvent is the JSON payload from pg_notify('attendance_changed', ...).
type AttendanceEvent struct {
	MatchDate string `json:"match_date"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
}

// Listener consumes attendance change events.
type Listener struct {
	dbURL    string
	matchday *attendance.Store
	trigger  *crossing.Trigger
	loc      *time.Location
	logger   *slog.Logger
}

// New creates an attendance listener.
func New(dbURL string, matchday *attendance.Store, trigger *crossing.Trigger, loc *time.Location, logger *slog.Logger) *Listener {
	return &Listener{
		dbURL:    dbURL,
		matchday: matchday,
		trigger:  trigger,
		loc:      loc,
		logger:   logger,
	}
}

// Start opens a dedicated connection and listens on the attendance channel.
// It reconnects automatically on connection loss. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func (l *Listener) Start(ctx context.Context) {
	backoff := reconnectBackoff

	for {
		err := l.listenLoop(ctx)
		if ctx.Err() != nil {
			l.logger.Info("Attendance listener stopped (context cancelled)")
			return
		}

		l.logger.Error("Attendance listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection
// drops or the context is cancelled.
func (l *Listener) listenLoop(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	l.logger.Info("Attendance listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var event AttendanceEvent
		if err := json.Unmarshal([]byte(notification.Payload), &event); err != nil {
			l.logger.Warn("Failed to parse attendance event",
				"payload", notification.Payload, "error", err)
			continue
		}

		l.checkCrossing(ctx, event.MatchDate)
	}
}

// checkCrossing recomputes the coming count for a day and runs it through
// the evaluator. Re-checks scheduled for the settle boundary run the same
// path again; the evaluator is idempotent, so stacked timers are harmless.
func (l *Listener) checkCrossing(ctx context.Context, dateKey string) {
	if dateKey == "" {
		dateKey = crossing.DateKey(time.Now(), l.loc)
	}

	count, err := l.matchday.ComingCount(ctx, dateKey)
	if err != nil {
		l.logger.Warn("Coming count failed, skipping evaluation", "date", dateKey, "error", err)
		return
	}

	decision, emitRes, err := l.trigger.Check(ctx, dateKey, count)
	if err != nil {
		l.logger.Error("Crossing check failed", "date", dateKey, "error", err)
		return
	}

	if emitRes != nil && !emitRes.Duplicate {
		l.logger.Info("Teker döndü notification sent",
			"date", dateKey,
			"coming_count", count,
			"crossing", decision.CrossingCount,
			"recipients", emitRes.Dispatch.RecipientCount)
		return
	}

	if !decision.PendingSettlesAt.IsZero() {
		wait := time.Until(decision.PendingSettlesAt)
		if wait < 0 {
			wait = 0
		}
		l.logger.Info("Crossing pending, re-check scheduled",
			"date", dateKey, "settles_in", wait.Round(time.Millisecond))
		time.AfterFunc(wait+100*time.Millisecond, func() {
			if ctx.Err() == nil {
				l.checkCrossing(ctx, dateKey)
			}
		})
	}
}
