package logic

import "time"

// Countdown tracks the 15-minute check window for one open session.
// It holds no clock of its own: every call receives the current time.
// Remaining time is always recomputed from now - checkpoint, so a Countdown
// rebuilt after a restart reports the same value as the one it replaced.
type Countdown struct {
	checkpoint time.Time
	running    bool
	fired      [3]bool
	// retired is the latest checkpoint torn down by Stop. Start refuses
	// anything at or before it, so a closed session cannot be revived.
	retired time.Time
}

// NewCountdown returns a stopped countdown.
func NewCountdown() *Countdown {
	return &Countdown{}
}

// Start anchors the countdown to checkpoint and re-arms all thresholds.
// Thresholds already reached at now are marked fired without being reported,
// so resuming an old checkpoint does not repeat alerts.
// A checkpoint that is not after the current one is ignored while running,
// and one not after the last stopped checkpoint is ignored once stopped.
// Returns true if the countdown was (re)anchored.
func (c *Countdown) Start(checkpoint, now time.Time) bool {
	floor := c.retired
	if c.running {
		floor = c.checkpoint
	}
	if !checkpoint.After(floor) {
		return false
	}
	c.checkpoint = checkpoint
	c.running = true
	remaining := SecondsRemaining(checkpoint, now)
	for i, th := range Thresholds {
		c.fired[i] = remaining <= int(th)
	}
	return true
}

// Stop halts the countdown. Subsequent ticks report nothing.
func (c *Countdown) Stop() {
	if c.checkpoint.After(c.retired) {
		c.retired = c.checkpoint
	}
	c.running = false
	c.fired = [3]bool{}
	c.checkpoint = time.Time{}
}

// Running reports whether the countdown is anchored to a checkpoint.
func (c *Countdown) Running() bool {
	return c.running
}

// Checkpoint returns the current anchor (zero if stopped).
func (c *Countdown) Checkpoint() time.Time {
	return c.checkpoint
}

// Tick returns the thresholds first reached at now, in crossing order.
// Each threshold is returned at most once per checkpoint.
func (c *Countdown) Tick(now time.Time) []Threshold {
	if !c.running {
		return nil
	}
	remaining := SecondsRemaining(c.checkpoint, now)
	var crossed []Threshold
	for i, th := range Thresholds {
		if !c.fired[i] && remaining <= int(th) {
			c.fired[i] = true
			crossed = append(crossed, th)
		}
	}
	return crossed
}

// State returns the countdown view at now.
func (c *Countdown) State(now time.Time) CountdownState {
	if !c.running {
		return CountdownState{Severity: SeverityNormal}
	}
	remaining := SecondsRemaining(c.checkpoint, now)
	return CountdownState{
		Checkpoint:       c.checkpoint,
		SecondsRemaining: remaining,
		Fired:            c.fired,
		Severity:         SeverityFor(remaining),
		Running:          true,
	}
}

// SecondsRemaining returns max(900 - elapsed, 0) where elapsed is whole
// seconds since checkpoint. A checkpoint in the future counts as zero elapsed.
func SecondsRemaining(checkpoint, now time.Time) int {
	elapsed := int(now.Sub(checkpoint) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := CheckIntervalSeconds - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SeverityFor maps seconds remaining to a display level:
// Normal above 180s, Warning from 61s to 180s, Urgent at 60s and below.
func SeverityFor(secondsRemaining int) Severity {
	switch {
	case secondsRemaining > int(Threshold3Min):
		return SeverityNormal
	case secondsRemaining > int(Threshold1Min):
		return SeverityWarning
	default:
		return SeverityUrgent
	}
}

// SeverityForThreshold is the severity an alert for th carries.
func SeverityForThreshold(th Threshold) Severity {
	return SeverityFor(int(th))
}

// Message is the staff-facing text for a threshold alert.
func (th Threshold) Message() string {
	switch th {
	case Threshold3Min:
		return "Sleep check due in 3 minutes"
	case Threshold2Min:
		return "Sleep check due in 2 minutes"
	default:
		return "Sleep check due in 1 minute"
	}
}

// Label is a short metric-friendly name for th.
func (th Threshold) Label() string {
	switch th {
	case Threshold3Min:
		return "3m"
	case Threshold2Min:
		return "2m"
	default:
		return "1m"
	}
}
