package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/sleepcheck/internal/card"
	"github.com/sweeney/sleepcheck/internal/logic"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{Facility: "Acorns", Broker: "tcp://localhost:1883", HTTPAddr: ":8080"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.Facility != "Acorns" {
		t.Errorf("Config.Facility: got %q, want Acorns", snap.Config.Facility)
	}
	if snap.Ready() {
		t.Error("expected Ready=false with no children")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestChildFromCard(t *testing.T) {
	start := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	open := logic.Session{SessionID: "s1", StartTime: start, Active: true}
	snap := card.Snapshot{
		ChildID:           "child-1",
		Name:              "Ada",
		Day:               "2026-03-02",
		Sessions:          []logic.Session{open},
		Open:              &open,
		Anomalies:         []logic.Anomaly{{Kind: logic.AnomalyOrphanStop, EventID: "x"}},
		TotalSleepMinutes: 14,
		Countdown: logic.CountdownState{
			Checkpoint:       start,
			SecondsRemaining: 60,
			Fired:            [3]bool{true, true, true},
			Severity:         logic.SeverityUrgent,
			Running:          true,
		},
		Subscribed: true,
	}

	c := ChildFromCard(snap)
	if !c.Open || c.SessionID != "s1" {
		t.Errorf("open session: got %v %q, want true s1", c.Open, c.SessionID)
	}
	if c.SecondsRemaining != 60 {
		t.Errorf("SecondsRemaining: got %d, want 60", c.SecondsRemaining)
	}
	if c.Severity != logic.SeverityUrgent {
		t.Errorf("Severity: got %q, want URGENT", c.Severity)
	}
	if c.Anomalies != 1 || c.Sessions != 1 {
		t.Errorf("counts: got %d anomalies %d sessions, want 1 1", c.Anomalies, c.Sessions)
	}

	idle := ChildFromCard(card.Snapshot{ChildID: "child-2"})
	if idle.Open || !idle.Checkpoint.IsZero() {
		t.Error("expected idle child without countdown")
	}
	if idle.Severity != logic.SeverityNormal {
		t.Errorf("idle Severity: got %q, want NORMAL", idle.Severity)
	}
}

func TestUpdateAndReady(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update([]Child{{ChildID: "a", Subscribed: true}, {ChildID: "b"}})
	if tr.Snapshot().Ready() {
		t.Error("expected Ready=false while a child is unsubscribed")
	}

	tr.Update([]Child{{ChildID: "a", Subscribed: true}, {ChildID: "b", Subscribed: true}})
	if !tr.Snapshot().Ready() {
		t.Error("expected Ready=true")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	children := []Child{{ChildID: "a", TotalSleepMinutes: 10}}
	tr.Update(children)

	children[0].TotalSleepMinutes = 99
	snap1 := tr.Snapshot()
	if snap1.Children[0].TotalSleepMinutes != 10 {
		t.Error("tracker should copy the children slice")
	}

	tr.Update([]Child{{ChildID: "a", TotalSleepMinutes: 20}})
	if snap1.Children[0].TotalSleepMinutes != 10 {
		t.Error("snapshot should be a copy; children were modified")
	}
}

func TestSetMQTTConnectedAndPermission(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	tr.SetPermission("granted")
	snap := tr.Snapshot()
	if !snap.MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
	if snap.Permission != "granted" {
		t.Errorf("Permission: got %q, want granted", snap.Permission)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Children: []Child{
			{
				ChildID:          "child-1",
				Name:             "Ada",
				Open:             true,
				SessionID:        "s1",
				SessionStart:     start,
				Checkpoint:       start.Add(5 * time.Minute),
				SecondsRemaining: 500,
				Severity:         logic.SeverityNormal,
				Subscribed:       true,
			},
			{ChildID: "child-2", Name: "Bo", Subscribed: true},
		},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Facility: "Acorns", HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":8080"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if !parsed.Status.Ready {
		t.Error("expected Ready=true")
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Notifications != "default" {
		t.Errorf("Notifications: got %q, want default", parsed.Status.Notifications)
	}
	if len(parsed.Status.Children) != 2 {
		t.Fatalf("Children: got %d, want 2", len(parsed.Status.Children))
	}
	ada := parsed.Status.Children[0]
	if ada.Countdown == nil || ada.Countdown.SecondsRemaining != 500 {
		t.Errorf("Ada countdown: got %+v, want 500 remaining", ada.Countdown)
	}
	if ada.SessionStart != "2026-01-01T00:00:00Z" {
		t.Errorf("SessionStart: got %q", ada.SessionStart)
	}
	if parsed.Status.Children[1].Countdown != nil {
		t.Error("expected no countdown for idle child")
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.UptimeSeconds != 1800 {
		t.Errorf("UptimeSeconds: got %d, want 1800", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update([]Child{{ChildID: "a", TotalSleepMinutes: i}})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetPermission("granted")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
