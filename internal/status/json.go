package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string      `json:"event,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Facility      string      `json:"facility"`
	Ready         bool        `json:"ready"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Notifications string      `json:"notification_permission"`
	Children      []ChildJSON `json:"children"`
	Config        ConfigJSON  `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ChildJSON is the JSON representation of one child card.
type ChildJSON struct {
	ChildID           string         `json:"child_id"`
	Name              string         `json:"name"`
	Day               string         `json:"day"`
	Open              bool           `json:"open"`
	SessionID         string         `json:"session_id,omitempty"`
	SessionStart      string         `json:"session_start,omitempty"`
	Countdown         *CountdownJSON `json:"countdown,omitempty"`
	TotalSleepMinutes int            `json:"total_sleep_minutes"`
	Sessions          int            `json:"sessions"`
	Anomalies         int            `json:"anomalies"`
	Subscribed        bool           `json:"subscribed"`
}

// CountdownJSON is the countdown of an open session.
type CountdownJSON struct {
	Checkpoint       string  `json:"checkpoint"`
	SecondsRemaining int     `json:"seconds_remaining"`
	Severity         string  `json:"severity"`
	Fired            [3]bool `json:"fired"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Timezone    string `json:"timezone"`
	StoreDriver string `json:"store"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	AudioPlayer string `json:"audio_player,omitempty"`
	HapticPin   int    `json:"haptic_pin,omitempty"`
}

// BuildChild converts one child to its JSON form.
func BuildChild(c Child) ChildJSON {
	out := ChildJSON{
		ChildID:           c.ChildID,
		Name:              c.Name,
		Day:               c.Day,
		Open:              c.Open,
		SessionID:         c.SessionID,
		TotalSleepMinutes: c.TotalSleepMinutes,
		Sessions:          c.Sessions,
		Anomalies:         c.Anomalies,
		Subscribed:        c.Subscribed,
	}
	if c.Open {
		out.SessionStart = c.SessionStart.UTC().Format(time.RFC3339)
	}
	if !c.Checkpoint.IsZero() {
		out.Countdown = &CountdownJSON{
			Checkpoint:       c.Checkpoint.UTC().Format(time.RFC3339),
			SecondsRemaining: c.SecondsRemaining,
			Severity:         string(c.Severity),
			Fired:            c.Fired,
		}
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	perm := snap.Permission
	if perm == "" {
		perm = "default"
	}
	children := make([]ChildJSON, len(snap.Children))
	for i, c := range snap.Children {
		children[i] = BuildChild(c)
	}

	return StatusInner{
		Facility:      snap.Config.Facility,
		Ready:         snap.Ready(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Notifications: perm,
		Children:      children,
		Config: ConfigJSON{
			Timezone:    snap.Config.Timezone,
			StoreDriver: snap.Config.StoreDriver,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			AudioPlayer: snap.Config.AudioPlayer,
			HapticPin:   snap.Config.HapticPin,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
