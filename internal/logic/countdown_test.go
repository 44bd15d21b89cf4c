package logic

import (
	"testing"
	"time"
)

func TestSecondsRemaining(t *testing.T) {
	cp := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{"at checkpoint", cp, 900},
		{"sub-second", cp.Add(999 * time.Millisecond), 900},
		{"one second", cp.Add(time.Second), 899},
		{"twelve minutes", cp.Add(12 * time.Minute), 180},
		{"exactly due", cp.Add(15 * time.Minute), 0},
		{"overdue", cp.Add(40 * time.Minute), 0},
		{"clock skew", cp.Add(-5 * time.Second), 900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SecondsRemaining(cp, tt.now); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		remaining int
		want      Severity
	}{
		{900, SeverityNormal},
		{181, SeverityNormal},
		{180, SeverityWarning},
		{61, SeverityWarning},
		{60, SeverityUrgent},
		{0, SeverityUrgent},
	}
	for _, tt := range tests {
		if got := SeverityFor(tt.remaining); got != tt.want {
			t.Errorf("SeverityFor(%d): got %s, want %s", tt.remaining, got, tt.want)
		}
	}
}

// simulate ticks once per second from start to end inclusive, collecting crossings.
func simulate(c *Countdown, start, end time.Time) []Threshold {
	var all []Threshold
	for now := start; !now.After(end); now = now.Add(time.Second) {
		all = append(all, c.Tick(now)...)
	}
	return all
}

func TestCountdownThresholdsFireExactlyOnce(t *testing.T) {
	cp := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewCountdown()
	if !c.Start(cp, cp) {
		t.Fatal("expected Start to anchor")
	}

	got := simulate(c, cp, cp.Add(CheckInterval))
	want := []Threshold{Threshold3Min, Threshold2Min, Threshold1Min}
	if len(got) != len(want) {
		t.Fatalf("expected %d crossings, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("crossing %d: got %d, want %d", i, got[i], want[i])
		}
	}

	// Continuing past due fires nothing more.
	if more := simulate(c, cp.Add(CheckInterval), cp.Add(30*time.Minute)); len(more) != 0 {
		t.Errorf("expected no crossings after due, got %v", more)
	}
}

func TestCountdownCrossingInstant(t *testing.T) {
	cp := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewCountdown()
	c.Start(cp, cp)

	if got := c.Tick(cp.Add(719 * time.Second)); len(got) != 0 {
		t.Errorf("181s remaining: expected nothing, got %v", got)
	}
	got := c.Tick(cp.Add(720 * time.Second))
	if len(got) != 1 || got[0] != Threshold3Min {
		t.Errorf("180s remaining: expected 3m crossing, got %v", got)
	}
}

func TestCountdownSkippedTicksFireAll(t *testing.T) {
	cp := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewCountdown()
	c.Start(cp, cp)

	// Process was suspended from 5 minutes until 14m30s.
	c.Tick(cp.Add(5 * time.Minute))
	got := c.Tick(cp.Add(14*time.Minute + 30*time.Second))
	if len(got) != 3 {
		t.Errorf("expected all three thresholds on catch-up tick, got %v", got)
	}
}

func TestCountdownResetRearms(t *testing.T) {
	cp := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewCountdown()
	c.Start(cp, cp)

	first := simulate(c, cp, cp.Add(13*time.Minute+30*time.Second))
	if len(first) != 2 {
		t.Fatalf("expected 3m and 2m before reset, got %v", first)
	}

	cp2 := cp.Add(13*time.Minute + 30*time.Second)
	if !c.Start(cp2, cp2) {
		t.Fatal("expected new checkpoint to anchor")
	}
	st := c.State(cp2)
	if st.SecondsRemaining != 900 {
		t.Errorf("expected full budget after reset, got %d", st.SecondsRemaining)
	}
	for i, f := range st.Fired {
		if f {
			t.Errorf("threshold %d still fired after reset", i)
		}
	}

	second := simulate(c, cp2, cp2.Add(CheckInterval))
	if len(second) != 3 {
		t.Errorf("expected all three thresholds after reset, got %v", second)
	}
}

func TestCountdownIgnoresStaleCheckpoint(t *testing.T) {
	cp := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewCountdown()
	c.Start(cp, cp)
	c.Tick(cp.Add(12 * time.Minute))

	if c.Start(cp, cp.Add(12*time.Minute)) {
		t.Error("same checkpoint must not reset")
	}
	if c.Start(cp.Add(-time.Minute), cp.Add(12*time.Minute)) {
		t.Error("older checkpoint must not reset")
	}
	if !c.State(cp.Add(12 * time.Minute)).Fired[0] {
		t.Error("3m flag should survive ignored Start")
	}
}

func TestCountdownResumeMarksPassedThresholds(t *testing.T) {
	cp := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	now := cp.Add(13*time.Minute + 10*time.Second) // 110s remaining

	c := NewCountdown()
	c.Start(cp, now)

	st := c.State(now)
	if st.SecondsRemaining != 110 {
		t.Errorf("expected 110s remaining, got %d", st.SecondsRemaining)
	}
	if st.Fired != [3]bool{true, true, false} {
		t.Errorf("unexpected fired flags: %v", st.Fired)
	}
	if st.Severity != SeverityWarning {
		t.Errorf("expected warning, got %s", st.Severity)
	}

	got := simulate(c, now, cp.Add(CheckInterval))
	if len(got) != 1 || got[0] != Threshold1Min {
		t.Errorf("expected only 1m crossing after resume, got %v", got)
	}
}

func TestCountdownResumeLongSuspension(t *testing.T) {
	cp := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	now := cp.Add(40 * time.Minute)

	c := NewCountdown()
	c.Start(cp, now)
	st := c.State(now)
	if st.SecondsRemaining != 0 || st.Severity != SeverityUrgent {
		t.Errorf("unexpected state: %+v", st)
	}
	if got := c.Tick(now.Add(time.Second)); len(got) != 0 {
		t.Errorf("expected no duplicate alerts, got %v", got)
	}
}

func TestCountdownStop(t *testing.T) {
	cp := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewCountdown()
	c.Start(cp, cp)
	c.Stop()

	if c.Running() {
		t.Error("expected stopped")
	}
	if got := simulate(c, cp, cp.Add(CheckInterval)); len(got) != 0 {
		t.Errorf("stopped countdown fired %v", got)
	}
	if st := c.State(cp); st.Running || st.Severity != SeverityNormal {
		t.Errorf("unexpected stopped state: %+v", st)
	}

	// The stopped checkpoint and anything older stay retired.
	if c.Start(cp, cp.Add(12*time.Minute)) {
		t.Error("stopped checkpoint must not re-anchor")
	}
	if c.Start(cp.Add(-time.Hour), cp) {
		t.Error("older checkpoint must not re-anchor after Stop")
	}
	if got := c.Tick(cp.Add(12 * time.Minute)); len(got) != 0 || c.Running() {
		t.Errorf("retired checkpoint revived: running=%v crossed=%v", c.Running(), got)
	}

	// A later session still anchors.
	next := cp.Add(30 * time.Minute)
	if !c.Start(next, next) {
		t.Error("expected a later checkpoint to anchor after Stop")
	}
	if st := c.State(next); !st.Running || st.SecondsRemaining != 900 {
		t.Errorf("unexpected state after new start: %+v", st)
	}
}

func TestCountdownStopWhileIdleKeepsFloor(t *testing.T) {
	cp := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	c := NewCountdown()
	c.Start(cp, cp)
	c.Stop()
	c.Stop()

	if c.Start(cp, cp) {
		t.Error("second Stop must not clear the retired checkpoint")
	}
}

func TestThresholdSeverityAndMessage(t *testing.T) {
	if SeverityForThreshold(Threshold3Min) != SeverityWarning {
		t.Error("3m alert should be warning")
	}
	if SeverityForThreshold(Threshold2Min) != SeverityWarning {
		t.Error("2m alert should be warning")
	}
	if SeverityForThreshold(Threshold1Min) != SeverityUrgent {
		t.Error("1m alert should be urgent")
	}
	if Threshold1Min.Message() != "Sleep check due in 1 minute" {
		t.Errorf("unexpected message: %s", Threshold1Min.Message())
	}
}
