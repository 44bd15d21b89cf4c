// Package mqtt publishes the sleep-check feed to an MQTT broker:
// recorded sleep events, persistent staff notifications and daemon
// lifecycle events. A fake publisher is provided for tests.
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sweeney/sleepcheck/internal/alert"
	"github.com/sweeney/sleepcheck/internal/logic"
)

// DefaultTopicPrefix roots every topic.
const DefaultTopicPrefix = "sleepcheck"

// Topics builds topic names under a prefix.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Events is the topic carrying childID's recorded sleep events.
func (t Topics) Events(childID string) string {
	return t.prefix() + "/" + childID + "/events"
}

// Notification is the retained topic holding childID's latest staff notification.
func (t Topics) Notification(childID string) string {
	return t.prefix() + "/" + childID + "/notification"
}

// System is the topic for daemon lifecycle events.
func (t Topics) System() string {
	return t.prefix() + "/system"
}

// Publisher publishes the feed to MQTT.
type Publisher interface {
	// PublishEvent sends a recorded sleep event.
	// Returns error if publishing fails (should not crash the process).
	PublishEvent(event logic.Event) error

	// PublishNotification sends a staff notification, retained until replaced.
	PublishNotification(n alert.Notification) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// EventPayload is the MQTT message for a sleep event.
type EventPayload struct {
	SleepEvent SleepEventPayload `json:"sleep_event"`
}

// SleepEventPayload contains the sleep event details.
type SleepEventPayload struct {
	ID                       string       `json:"id"`
	ChildID                  string       `json:"child_id"`
	SessionID                string       `json:"session_id"`
	Timestamp                string       `json:"timestamp"`
	Kind                     string       `json:"kind"`
	Position                 string       `json:"position"`
	Breathing                string       `json:"breathing"`
	Mood                     string       `json:"mood,omitempty"`
	Notes                    string       `json:"notes,omitempty"`
	IntervalSinceLastMinutes *int         `json:"interval_since_last_minutes,omitempty"`
	RecordedBy               StaffPayload `json:"recorded_by"`
}

// StaffPayload identifies who recorded an event.
type StaffPayload struct {
	Initials string `json:"initials"`
	ID       string `json:"id"`
}

// FormatEventPayload creates the JSON payload for a sleep event.
func FormatEventPayload(event logic.Event) ([]byte, error) {
	payload := EventPayload{
		SleepEvent: SleepEventPayload{
			ID:                       event.ID,
			ChildID:                  event.ChildID,
			SessionID:                event.SessionID,
			Timestamp:                event.Timestamp.UTC().Format(time.RFC3339),
			Kind:                     string(event.Kind),
			Position:                 string(event.Position),
			Breathing:                string(event.Breathing),
			Mood:                     string(event.Mood),
			Notes:                    event.Notes,
			IntervalSinceLastMinutes: event.IntervalSinceLastMinutes,
			RecordedBy: StaffPayload{
				Initials: event.RecordedBy.Initials,
				ID:       event.RecordedBy.ID,
			},
		},
	}
	return json.Marshal(payload)
}

// NotificationPayload is the MQTT message for a staff notification.
type NotificationPayload struct {
	Notification NotificationPayloadInner `json:"notification"`
}

// NotificationPayloadInner contains the notification details.
type NotificationPayloadInner struct {
	Timestamp          string `json:"timestamp"`
	ChildID            string `json:"child_id,omitempty"`
	Title              string `json:"title"`
	Message            string `json:"message"`
	Severity           string `json:"severity"`
	RequireInteraction bool   `json:"require_interaction"`
}

// FormatNotificationPayload creates the JSON payload for a notification.
func FormatNotificationPayload(n alert.Notification) ([]byte, error) {
	payload := NotificationPayload{
		Notification: NotificationPayloadInner{
			Timestamp:          n.Timestamp.UTC().Format(time.RFC3339),
			ChildID:            n.ChildID,
			Title:              n.Title,
			Message:            n.Message,
			Severity:           string(n.Severity),
			RequireInteraction: n.RequireInteraction,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Event:  event.Event,
			Reason: event.Reason,
		},
	}
	if !event.Timestamp.IsZero() {
		payload.System.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(payload)
}

// Notifier adapts a Publisher to alert.Notifier.
type Notifier struct {
	Publisher Publisher
}

// Notify implements alert.Notifier.
func (n Notifier) Notify(_ context.Context, note alert.Notification) error {
	return n.Publisher.PublishNotification(note)
}

// Discard is a Publisher for when the feed is disabled. It is never connected.
type Discard struct{}

// PublishEvent implements Publisher.
func (Discard) PublishEvent(logic.Event) error { return nil }

// PublishNotification implements Publisher.
func (Discard) PublishNotification(alert.Notification) error { return nil }

// PublishSystem implements Publisher.
func (Discard) PublishSystem(SystemEvent) error { return nil }

// Close implements Publisher.
func (Discard) Close() error { return nil }

// IsConnected implements ConnectionStatus.
func (Discard) IsConnected() bool { return false }
