// Package notify implements the push-notification emission path: an event
// ledger with at-most-once claim semantics, recipient resolution from user
// preferences, and batched dispatch through FCM.
//
// Pipeline: emit → claim ledger entry → resolve recipients → dispatch in
// batches → finalize ledger entry with the outcome. Concurrent emissions of
// the same event id race on the ledger claim; exactly one wins and sends.
package notify

import (
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Topics
// --------------------------------------------------------------------------

// Topic is a fixed notification category. Users opt in per topic.
type Topic string

const (
	// TopicTekerDondu fires when enough players mark themselves coming
	// for match day ("teker döndü" — the wheel turned, the match is on).
	TopicTekerDondu Topic = "teker_dondu_reached"

	// TopicMVPPollLocked fires when the post-match MVP poll is locked.
	TopicMVPPollLocked Topic = "mvp_poll_locked"

	// TopicStatsUpdated fires when aggregated match stats change.
	TopicStatsUpdated Topic = "stats_updated"

	// TopicTimedReminders carries calendar-rule reminders.
	TopicTimedReminders Topic = "timed_reminders"

	// TopicAdminMessage carries free-form admin broadcasts.
	TopicAdminMessage Topic = "admin_custom_message"
)

// Topics is the closed set of valid topics, validated at the HTTP boundary.
var Topics = []Topic{
	TopicTekerDondu,
	TopicMVPPollLocked,
	TopicStatsUpdated,
	TopicTimedReminders,
	TopicAdminMessage,
}

// ValidTopic reports whether s names a known topic.
func ValidTopic(s string) bool {
	for _, t := range Topics {
		if string(t) == s {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// pendingStaleAfter is how long a pending claim blocks re-claim. A
	// dispatch that crashed mid-flight becomes re-claimable after this,
	// bounding retry latency without an explicit retry loop.
	pendingStaleAfter = 30 * time.Second

	// maxBatchSize is the FCM multicast hard limit.
	maxBatchSize = 500

	// maxErrors caps the deduplicated error list stored per event.
	maxErrors = 20

	// notificationIcon is sent in every data payload for the web client.
	notificationIcon = "/icons/icon-192.png"
)

// Event statuses as stored in the ledger.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Event is a candidate notification occurrence, identified by EventID.
type Event struct {
	Topic         Topic
	EventID       string
	Title         string
	Body          string
	Data          map[string]any
	CreatedByUID  string
	CreatedByName string
}

// EventRecord is the persisted ledger entry for one logical event.
type EventRecord struct {
	EventID       string         `json:"event_id"`
	Topic         Topic          `json:"topic"`
	Status        string         `json:"status"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
	Data          map[string]any `json:"data,omitempty"`
	CreatedByUID  string         `json:"created_by_uid"`
	CreatedByName string         `json:"created_by_name"`
	CreatedAt     time.Time      `json:"created_at"`
	SentAt        time.Time      `json:"sent_at,omitzero"`
	FailedAt      time.Time      `json:"failed_at,omitzero"`

	// Written on completion only.
	RecipientCount int      `json:"recipient_count,omitempty"`
	SuccessCount   int      `json:"success_count,omitempty"`
	FailureCount   int      `json:"failure_count,omitempty"`
	Errors         []string `json:"errors,omitempty"`
	LastError      string   `json:"last_error,omitempty"`
}

// DispatchResult summarizes one fan-out to the push provider.
type DispatchResult struct {
	RecipientCount int      `json:"recipient_count"`
	SuccessCount   int      `json:"success_count"`
	FailureCount   int      `json:"failure_count"`
	Errors         []string `json:"errors"`
}

// EmitResult is the outcome of one Emit call. Duplicate means another call
// (or a previous one) owns delivery for this event id; Dispatch is set only
// on the call that actually sent.
type EmitResult struct {
	EventID   string          `json:"event_id"`
	Duplicate bool            `json:"duplicate"`
	Dispatch  *DispatchResult `json:"dispatch,omitempty"`
}

// --------------------------------------------------------------------------
// Event id normalization
// --------------------------------------------------------------------------

// NormalizeEventID replaces characters that are illegal in a storage key.
// The character set mirrors the original realtime-database key rules so ids
// minted by older clients keep mapping to the same ledger entries.
func NormalizeEventID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '#', '$', '[', ']', '/', ' ':
			return '_'
		}
		return r
	}, id)
}
