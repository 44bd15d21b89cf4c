// Package status provides a thread-safe status tracker for the sleepcheck daemon.
// It is read by HTTP handlers and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sleepcheck/internal/card"
	"github.com/sweeney/sleepcheck/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Facility    string
	Timezone    string
	StoreDriver string
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	AudioPlayer string
	HapticPin   int
}

// Child is the display state of one child card. It is a local copy so
// consumers of status need not depend on card internals.
type Child struct {
	ChildID           string
	Name              string
	Day               string
	Open              bool
	SessionID         string
	SessionStart      time.Time
	Checkpoint        time.Time
	SecondsRemaining  int
	Severity          logic.Severity
	Fired             [3]bool
	TotalSleepMinutes int
	Sessions          int
	Anomalies         int
	Subscribed        bool
}

// ChildFromCard converts a card snapshot.
func ChildFromCard(s card.Snapshot) Child {
	c := Child{
		ChildID:           s.ChildID,
		Name:              s.Name,
		Day:               string(s.Day),
		TotalSleepMinutes: s.TotalSleepMinutes,
		Sessions:          len(s.Sessions),
		Anomalies:         len(s.Anomalies),
		Subscribed:        s.Subscribed,
		Severity:          logic.SeverityNormal,
	}
	if s.Open != nil {
		c.Open = true
		c.SessionID = s.Open.SessionID
		c.SessionStart = s.Open.StartTime
	}
	if s.Countdown.Running {
		c.Checkpoint = s.Countdown.Checkpoint
		c.SecondsRemaining = s.Countdown.SecondsRemaining
		c.Severity = s.Countdown.Severity
		c.Fired = s.Countdown.Fired
	}
	return c
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Children      []Child
	Permission    string
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether every child is following its event log.
func (s Snapshot) Ready() bool {
	if len(s.Children) == 0 {
		return false
	}
	for _, c := range s.Children {
		if !c.Subscribed {
			return false
		}
	}
	return true
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the per-child state. Called from runLoop on every tick.
func (t *Tracker) Update(children []Child) {
	cp := append([]Child(nil), children...)
	t.mu.Lock()
	t.snap.Children = cp
	t.mu.Unlock()
}

// UpdateCards is Update over card snapshots.
func (t *Tracker) UpdateCards(snaps []card.Snapshot) {
	children := make([]Child, len(snaps))
	for i, s := range snaps {
		children[i] = ChildFromCard(s)
	}
	t.Update(children)
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetPermission records the notification permission state.
func (t *Tracker) SetPermission(p string) {
	t.mu.Lock()
	t.snap.Permission = p
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
