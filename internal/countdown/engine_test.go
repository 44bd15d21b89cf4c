package countdown

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/sleepcheck/internal/logic"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type alertCall struct {
	Message  string
	Severity logic.Severity
}

type fakeAlerter struct {
	mu    sync.Mutex
	calls []alertCall
}

func (a *fakeAlerter) Fire(_ context.Context, message string, severity logic.Severity) {
	a.mu.Lock()
	a.calls = append(a.calls, alertCall{message, severity})
	a.mu.Unlock()
}

func (a *fakeAlerter) Calls() []alertCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]alertCall(nil), a.calls...)
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestEngine() (*Engine, *fakeClock, *fakeAlerter) {
	clock := &fakeClock{now: t0}
	alerter := &fakeAlerter{}
	return New("child-1", clock, alerter, nil), clock, alerter
}

// tickFor advances the clock one second at a time for d, ticking each step.
func tickFor(e *Engine, clock *fakeClock, d time.Duration) {
	ctx := context.Background()
	for i := time.Duration(0); i < d; i += time.Second {
		clock.Advance(time.Second)
		e.Tick(ctx)
	}
}

func TestEngineFiresEachThresholdOnce(t *testing.T) {
	e, clock, alerter := newTestEngine()
	e.Start(t0)

	tickFor(e, clock, 20*time.Minute)

	calls := alerter.Calls()
	want := []alertCall{
		{"Sleep check due in 3 minutes", logic.SeverityWarning},
		{"Sleep check due in 2 minutes", logic.SeverityWarning},
		{"Sleep check due in 1 minute", logic.SeverityUrgent},
	}
	if len(calls) != len(want) {
		t.Fatalf("expected %d alerts, got %d: %v", len(want), len(calls), calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("alert %d: got %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestEngineCheckResetsBudget(t *testing.T) {
	e, clock, alerter := newTestEngine()
	e.Start(t0)

	tickFor(e, clock, 12*time.Minute+30*time.Second) // 3m threshold fired
	if n := len(alerter.Calls()); n != 1 {
		t.Fatalf("expected 1 alert before check, got %d", n)
	}

	if !e.Start(clock.Now()) {
		t.Fatal("expected new checkpoint to re-anchor")
	}
	if got := e.State().SecondsRemaining; got != 900 {
		t.Errorf("after re-anchor: got %d seconds remaining, want 900", got)
	}

	tickFor(e, clock, 15*time.Minute)
	if n := len(alerter.Calls()); n != 4 {
		t.Errorf("expected 1 + 3 alerts, got %d", n)
	}
}

func TestEngineIgnoresSameCheckpoint(t *testing.T) {
	e, clock, alerter := newTestEngine()
	e.Start(t0)
	tickFor(e, clock, 13*time.Minute)

	if e.Start(t0) {
		t.Error("same checkpoint should not re-anchor")
	}
	tickFor(e, clock, time.Second)
	if n := len(alerter.Calls()); n != 2 {
		t.Errorf("expected 2 alerts without duplicates, got %d", n)
	}
}

func TestEngineStopTearsDown(t *testing.T) {
	e, clock, alerter := newTestEngine()
	e.Start(t0)
	tickFor(e, clock, 5*time.Minute)
	e.Stop()

	if e.Running() {
		t.Error("expected stopped engine")
	}
	tickFor(e, clock, 15*time.Minute)
	if n := len(alerter.Calls()); n != 0 {
		t.Errorf("expected no alerts after stop, got %d", n)
	}
	st := e.State()
	if st.Running || st.Severity != logic.SeverityNormal {
		t.Errorf("stopped state: got %+v", st)
	}
}

func TestEngineResumeAfterSuspension(t *testing.T) {
	e, clock, alerter := newTestEngine()
	clock.Set(t0.Add(13*time.Minute + 30*time.Second))

	e.Start(t0)
	st := e.State()
	if st.SecondsRemaining != 90 {
		t.Errorf("got %d seconds remaining, want 90", st.SecondsRemaining)
	}
	if !st.Fired[0] || !st.Fired[1] || st.Fired[2] {
		t.Errorf("fired flags: got %v, want [true true false]", st.Fired)
	}
	if st.Severity != logic.SeverityWarning {
		t.Errorf("severity: got %s, want %s", st.Severity, logic.SeverityWarning)
	}

	tickFor(e, clock, 2*time.Minute)
	calls := alerter.Calls()
	if len(calls) != 1 || calls[0].Message != "Sleep check due in 1 minute" {
		t.Errorf("expected only the 1-minute alert, got %v", calls)
	}
}

func TestEngineSkippedTicksCatchUp(t *testing.T) {
	e, clock, alerter := newTestEngine()
	e.Start(t0)

	// Process suspended: a single tick after 14.5 minutes.
	clock.Advance(14*time.Minute + 30*time.Second)
	got := e.Tick(context.Background())

	if len(got) != 3 {
		t.Fatalf("expected all three crossings on catch-up tick, got %v", got)
	}
	if n := len(alerter.Calls()); n != 3 {
		t.Errorf("expected 3 alerts, got %d", n)
	}
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	e, clock, alerter := newTestEngine()
	e.Start(t0)

	ctx, cancel := context.WithCancel(context.Background())
	tick := make(chan time.Time)
	done := make(chan struct{})
	go func() {
		e.Run(ctx, tick)
		close(done)
	}()

	clock.Advance(12 * time.Minute)
	tick <- clock.Now()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := len(alerter.Calls()); n != 1 {
		t.Errorf("expected 1 alert, got %d", n)
	}
}

func TestEngineRunStopsOnClosedTick(t *testing.T) {
	e, _, _ := newTestEngine()
	tick := make(chan time.Time)
	close(tick)

	done := make(chan struct{})
	go func() {
		e.Run(context.Background(), tick)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after tick closed")
	}
}
