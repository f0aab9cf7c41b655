package schedule

import (
	"fmt"
	"time"

	"github.com/kadrohq/kadro-server/internal/crossing"
)

// RuleContext is what a rule's body and guard may look at. Rules are pure
// functions of this context, which keeps them testable without the ticker.
type RuleContext struct {
	Weekday     time.Weekday
	Hour        int
	Minute      int
	DateKey     string
	ComingCount int
}

// Rule is one static calendar rule: a minute-resolution weekly schedule, a
// title, a body builder, and optional guard and extra-data builders. The
// rule table is immutable for the process lifetime.
type Rule struct {
	ID         string
	Weekday    time.Weekday
	Hour       int
	Minute     int
	Title      string
	Body       func(RuleContext) string
	Guard      func(RuleContext) bool           // nil: always fires
	Data       func(RuleContext) map[string]any // nil: no extra data
	NeedsCount bool                             // body/guard/data read ComingCount
}

// Matches reports whether the rule's schedule equals the given wall-clock
// minute exactly.
func (r Rule) Matches(rc RuleContext) bool {
	return r.Weekday == rc.Weekday && r.Hour == rc.Hour && r.Minute == rc.Minute
}

// EventID builds the per-day dedupe id: one firing per rule per day, even
// when two ticks land inside the same minute.
func (r Rule) EventID(dateKey string) string {
	return fmt.Sprintf("timed:%s:%s", r.ID, dateKey)
}

// Rules is the static rule table. Match day is Wednesday evening.
var Rules = []Rule{
	{
		ID:      "match_day_morning",
		Weekday: time.Wednesday,
		Hour:    9,
		Minute:  0,
		Title:   "Maç günü! ⚽",
		Body:    matchDayMorningBody,
	},
	{
		ID:         "attendance_nudge",
		Weekday:    time.Wednesday,
		Hour:       15,
		Minute:     0,
		Title:      "Kadro eksik 👀",
		Body:       attendanceNudgeBody,
		Guard:      belowWheelThreshold,
		Data:       comingCountData,
		NeedsCount: true,
	},
	{
		ID:      "mvp_poll_reminder",
		Weekday: time.Thursday,
		Hour:    10,
		Minute:  0,
		Title:   "MVP oyu ⭐",
		Body:    mvpPollReminderBody,
	},
}

func matchDayMorningBody(RuleContext) string {
	return "Bu akşam halı saha! Gelip gelmeyeceğini işaretlemeyi unutma."
}

func attendanceNudgeBody(rc RuleContext) string {
	return fmt.Sprintf("Şu an %d kişi geliyorum dedi. Teker dönsün mü, dönmesin mi?", rc.ComingCount)
}

func mvpPollReminderBody(RuleContext) string {
	return "Dünün maçı için MVP oyunu kullanmadıysan şimdi tam zamanı."
}

// belowWheelThreshold skips the nudge once the wheel already turned.
func belowWheelThreshold(rc RuleContext) bool {
	return rc.ComingCount < crossing.Threshold
}

func comingCountData(rc RuleContext) map[string]any {
	return map[string]any{"coming_count": rc.ComingCount}
}
