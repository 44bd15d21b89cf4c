// Package countdown runs the 15-minute sleep-check countdown for one child.
//
// The Engine owns a logic.Countdown and supplies it with the time from an
// injected Clock. Threshold crossings are handed to an Alerter. All methods
// are safe for concurrent use, so the action controller can re-anchor the
// countdown while the tick loop is running.
package countdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/sleepcheck/internal/logic"
	"github.com/sweeney/sleepcheck/internal/metrics"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)

// Alerter receives threshold alerts. Fire must not block for long and must
// not call back into the Engine.
type Alerter interface {
	Fire(ctx context.Context, message string, severity logic.Severity)
}

// Engine is the countdown for a single child.
type Engine struct {
	childID string
	clock   Clock
	alerter Alerter
	logger  *zap.Logger

	mu sync.Mutex
	cd *logic.Countdown
}

// New creates a stopped engine.
func New(childID string, clock Clock, alerter Alerter, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		childID: childID,
		clock:   clock,
		alerter: alerter,
		logger:  logger.With(zap.String("child_id", childID)),
		cd:      logic.NewCountdown(),
	}
}

// Start anchors the countdown to checkpoint. A checkpoint no later than the
// current one is ignored, so repeated snapshots of the same log are harmless.
// Returns true if the countdown was re-anchored.
func (e *Engine) Start(checkpoint time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if !e.cd.Start(checkpoint, now) {
		return false
	}
	st := e.cd.State(now)
	metrics.SetCountdown(e.childID, true, st.SecondsRemaining)
	e.logger.Debug("countdown anchored",
		zap.Time("checkpoint", checkpoint),
		zap.Int("seconds_remaining", st.SecondsRemaining),
	)
	return true
}

// Stop tears the countdown down. No alerts fire until the next Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cd.Running() {
		return
	}
	e.cd.Stop()
	metrics.SetCountdown(e.childID, false, 0)
	e.logger.Debug("countdown stopped")
}

// Running reports whether the countdown is anchored.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cd.Running()
}

// State returns the countdown view now.
func (e *Engine) State() logic.CountdownState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cd.State(e.clock.Now())
}

// Tick recomputes the countdown and fires an alert for every threshold
// first reached. Alerts are fired under the lock so none can follow a Stop.
func (e *Engine) Tick(ctx context.Context) []logic.Threshold {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cd.Running() {
		return nil
	}
	now := e.clock.Now()
	crossed := e.cd.Tick(now)
	metrics.SetCountdown(e.childID, true, logic.SecondsRemaining(e.cd.Checkpoint(), now))

	for _, th := range crossed {
		e.logger.Info("sleep check threshold reached",
			zap.String("threshold", th.Label()),
			zap.Time("checkpoint", e.cd.Checkpoint()),
		)
		metrics.IncAlertFired(th.Label())
		if e.alerter != nil {
			e.alerter.Fire(ctx, th.Message(), logic.SeverityForThreshold(th))
		}
	}
	return crossed
}

// Run calls Tick on every value from tick until ctx is done or tick closes.
func (e *Engine) Run(ctx context.Context, tick <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-tick:
			if !ok {
				return
			}
			e.Tick(ctx)
		}
	}
}
