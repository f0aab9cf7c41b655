// Package schedule drives time-based notification emission: a fixed-interval
// ticker that evaluates the static calendar-rule table at minute resolution,
// plus a stats-change watcher that polls the aggregation endpoint.
//
// The tick interval must stay under a minute or a rule's matching minute
// could be skipped entirely. Firing twice inside the same minute is harmless:
// the event id embeds the date, so the ledger absorbs the second attempt.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/kadrohq/kadro-server/internal/crossing"
	"github.com/kadrohq/kadro-server/internal/notify"
)

// TickInterval is the scheduler's fixed period.
const TickInterval = 30 * time.Second

// Emitter is the slice of the notify emitter the scheduler needs.
type Emitter interface {
	Emit(ctx context.Context, ev notify.Event) (notify.EmitResult, error)
}

// AttendanceSource supplies the live coming count for rule guards.
type AttendanceSource interface {
	ComingCount(ctx context.Context, dateKey string) (int, error)
}

// Scheduler owns the repeating timer. Construct once at startup and run as
// a single goroutine; Run is the lifecycle, no package-level state.
type Scheduler struct {
	emitter    Emitter
	attendance AttendanceSource
	stats      *StatsWatcher // nil: stats watching disabled
	rules      []Rule
	loc        *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a scheduler over the static rule table.
func New(emitter Emitter, attendance AttendanceSource, stats *StatsWatcher, loc *time.Location, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		emitter:    emitter,
		attendance: attendance,
		stats:      stats,
		rules:      Rules,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
	}
}

// Run ticks until ctx is cancelled. Blocks; intended to be called with `go`.
// Tick errors are logged and never stop the timer.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Timed-rule scheduler started", "interval", TickInterval, "rules", len(s.rules))
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-ctx.Done():
			s.logger.Info("Timed-rule scheduler stopped")
			return
		}
	}
}

// Tick runs one evaluation pass: calendar rules first, then the stats
// watcher. Exported so kadroctl can run a single pass by hand.
func (s *Scheduler) Tick(ctx context.Context) {
	s.evalRules(ctx)
	if s.stats != nil {
		s.stats.Check(ctx, s.emitter)
	}
}

func (s *Scheduler) evalRules(ctx context.Context) {
	local := s.now().In(s.loc)
	rc := RuleContext{
		Weekday: local.Weekday(),
		Hour:    local.Hour(),
		Minute:  local.Minute(),
		DateKey: crossing.DateKey(local, s.loc),
	}

	var matched []Rule
	for _, r := range s.rules {
		if r.Matches(rc) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return
	}

	// Fetch the coming count lazily, once per tick, only for rules that
	// read it. A failed read skips those rules and leaves the rest alone.
	countFetched, countFailed := false, false

	for _, r := range matched {
		if r.NeedsCount && !countFetched {
			countFetched = true
			count, err := s.attendance.ComingCount(ctx, rc.DateKey)
			if err != nil {
				s.logger.Error("Scheduler tick: coming count failed", "error", err)
				countFailed = true
			}
			rc.ComingCount = count
		}
		if r.NeedsCount && countFailed {
			s.logger.Warn("Timed rule skipped, no coming count", "rule", r.ID)
			continue
		}

		if r.Guard != nil && !r.Guard(rc) {
			s.logger.Info("Timed rule skipped by guard", "rule", r.ID)
			continue
		}

		ev := notify.Event{
			Topic:         notify.TopicTimedReminders,
			EventID:       r.EventID(rc.DateKey),
			Title:         r.Title,
			Body:          r.Body(rc),
			CreatedByUID:  "system",
			CreatedByName: "scheduler",
		}
		if r.Data != nil {
			ev.Data = r.Data(rc)
		}

		res, err := s.emitter.Emit(ctx, ev)
		if err != nil {
			s.logger.Error("Timed rule emit failed", "rule", r.ID, "error", err)
			continue
		}
		if !res.Duplicate {
			s.logger.Info("Timed rule fired", "rule", r.ID, "event_id", res.EventID)
		}
	}
}
