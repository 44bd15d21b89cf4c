// Package logic contains pure business logic for infant sleep-check tracking.
// This package has NO external dependencies (no store, MQTT, audio, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Kind identifies what a sleep event records.
type Kind string

const (
	KindStart Kind = "START"
	KindCheck Kind = "CHECK"
	KindStop  Kind = "STOP"
)

// Position is the body position observed by staff.
type Position string

const (
	PositionBack     Position = "BACK"
	PositionSide     Position = "SIDE"
	PositionTummy    Position = "TUMMY"
	PositionSeated   Position = "SEATED"   // Stop only
	PositionStanding Position = "STANDING" // Stop only
)

// Breathing is the breathing condition observed by staff.
type Breathing string

const (
	BreathingNormal    Breathing = "NORMAL"
	BreathingLabored   Breathing = "LABORED"
	BreathingCongested Breathing = "CONGESTED"
)

// Mood is the child's mood on waking. Only recorded on Stop.
type Mood string

const (
	MoodHappy   Mood = "HAPPY"
	MoodNeutral Mood = "NEUTRAL"
	MoodFussy   Mood = "FUSSY"
	MoodUpset   Mood = "UPSET"
	MoodCrying  Mood = "CRYING"
)

// MaxNotesLength bounds the free-text notes field, in runes.
const MaxNotesLength = 500

// Staff identifies the operator who recorded an event.
type Staff struct {
	Initials string `json:"initials"`
	ID       string `json:"id"`
}

// Event is an immutable sleep-check fact. Events are created once and never mutated.
type Event struct {
	ID        string    `json:"id"`
	ChildID   string    `json:"child_id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Position  Position  `json:"position"`
	Breathing Breathing `json:"breathing"`
	Mood      Mood      `json:"mood,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	// IntervalSinceLastMinutes is nil for the Start event of a session.
	IntervalSinceLastMinutes *int  `json:"interval_since_last_minutes,omitempty"`
	RecordedBy               Staff `json:"recorded_by"`
}

// Session is a derived view over one Start through its Stop (or through now).
// It is rebuilt from the event list, never patched.
type Session struct {
	SessionID string
	ChildID   string
	StartTime time.Time
	EndTime   *time.Time
	Events    []Event
	Active    bool
	// TotalDurationMinutes is only meaningful when the session is closed.
	TotalDurationMinutes int
}

// Checkpoint returns the timestamp of the most recent Start or Check event.
func (s Session) Checkpoint() time.Time {
	for i := len(s.Events) - 1; i >= 0; i-- {
		if s.Events[i].Kind != KindStop {
			return s.Events[i].Timestamp
		}
	}
	return s.StartTime
}

// LastEvent returns the most recent member event.
func (s Session) LastEvent() Event {
	return s.Events[len(s.Events)-1]
}

// AnomalyKind classifies malformed-log findings.
type AnomalyKind string

const (
	AnomalyOrphanCheck      AnomalyKind = "ORPHAN_CHECK"
	AnomalyOrphanStop       AnomalyKind = "ORPHAN_STOP"
	AnomalyAbandonedSession AnomalyKind = "ABANDONED_SESSION"
	AnomalySessionMismatch  AnomalyKind = "SESSION_MISMATCH"
)

// Anomaly is a non-fatal diagnostic produced during reconstruction.
type Anomaly struct {
	Kind    AnomalyKind
	EventID string
	// SessionID is the run the anomaly was found in, if any.
	SessionID string
}

// Reconstruction is the derived state of one child's day.
type Reconstruction struct {
	// Sessions holds closed sessions in order, followed by the open session if any.
	Sessions []Session
	// Open points into Sessions when the last run has no Stop.
	Open *Session
	// Abandoned holds runs superseded by a later Start before any Stop.
	Abandoned []Session
	// Anomalies lists orphaned and mismatched events.
	Anomalies []Anomaly
	// ClosedMinutes sums whole-minute durations of closed sessions.
	ClosedMinutes int
	// TotalSleepMinutes is ClosedMinutes plus live elapsed time of the open session
	// when reconstruction was asked to include it.
	TotalSleepMinutes int
}

// HasOpen reports whether a session is currently open.
func (r Reconstruction) HasOpen() bool {
	return r.Open != nil
}

// Severity is the discrete alert level derived from seconds remaining.
type Severity string

const (
	SeverityNormal  Severity = "NORMAL"
	SeverityWarning Severity = "WARNING"
	SeverityUrgent  Severity = "URGENT"
)

// Threshold is a one-shot alert point, in seconds remaining.
type Threshold int

const (
	Threshold3Min Threshold = 180
	Threshold2Min Threshold = 120
	Threshold1Min Threshold = 60
)

// Thresholds are ordered from earliest to latest crossing.
var Thresholds = [3]Threshold{Threshold3Min, Threshold2Min, Threshold1Min}

// CheckInterval is the regulatory maximum time between checks.
const CheckInterval = 15 * time.Minute

// CheckIntervalSeconds is CheckInterval in whole seconds.
const CheckIntervalSeconds = 900

// CountdownState is the ephemeral countdown view for one open session.
type CountdownState struct {
	Checkpoint       time.Time
	SecondsRemaining int
	// Fired reports, per entry of Thresholds, whether it has fired for this checkpoint.
	Fired    [3]bool
	Severity Severity
	Running  bool
}
