package notify

import (
	"reflect"
	"testing"
)

func TestFilterRecipientsExactness(t *testing.T) {
	prefs := []UserPrefs{
		{UserID: "u1", Enabled: true, Topics: map[string]bool{"stats_updated": true}},
		{UserID: "u2", Enabled: true, Topics: map[string]bool{"stats_updated": false}},
		{UserID: "u3", Enabled: false, Topics: map[string]bool{"stats_updated": true}},
	}
	devices := []Device{
		{UserID: "u1", Token: "tok-u1-a", Enabled: true},
		{UserID: "u1", Token: "tok-u1-b", Enabled: true},
		{UserID: "u2", Token: "tok-u2", Enabled: true},
		{UserID: "u3", Token: "tok-u3", Enabled: true},
	}

	got := FilterRecipients(prefs, devices, TopicStatsUpdated)
	want := []string{"tok-u1-a", "tok-u1-b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FilterRecipients = %v, want %v", got, want)
	}
}

func TestFilterRecipientsDeviceGating(t *testing.T) {
	prefs := []UserPrefs{
		{UserID: "u1", Enabled: true, Topics: map[string]bool{"timed_reminders": true}},
	}
	devices := []Device{
		{UserID: "u1", Token: "tok-on", Enabled: true},
		{UserID: "u1", Token: "tok-off", Enabled: false},
		{UserID: "u1", Token: "", Enabled: true},
	}

	got := FilterRecipients(prefs, devices, TopicTimedReminders)
	if !reflect.DeepEqual(got, []string{"tok-on"}) {
		t.Fatalf("disabled or tokenless devices must be excluded: %v", got)
	}
}

func TestFilterRecipientsDeduplicatesSharedTokens(t *testing.T) {
	prefs := []UserPrefs{
		{UserID: "u1", Enabled: true, Topics: map[string]bool{"admin_custom_message": true}},
		{UserID: "u2", Enabled: true, Topics: map[string]bool{"admin_custom_message": true}},
	}
	// Same physical device registered under two accounts.
	devices := []Device{
		{UserID: "u1", Token: "tok-shared", Enabled: true},
		{UserID: "u2", Token: "tok-shared", Enabled: true},
	}

	got := FilterRecipients(prefs, devices, TopicAdminMessage)
	if !reflect.DeepEqual(got, []string{"tok-shared"}) {
		t.Fatalf("shared token must appear once: %v", got)
	}
}

func TestFilterRecipientsEmptyInputs(t *testing.T) {
	if got := FilterRecipients(nil, nil, TopicTekerDondu); len(got) != 0 {
		t.Fatalf("empty collections must yield an empty set, got %v", got)
	}
}
