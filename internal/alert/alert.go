// Package alert delivers sleep-check alerts over independent channels:
// an audible tone, a haptic pulse and a persistent staff notification.
//
// Delivery is fire-and-forget. A failing or panicking channel is logged and
// counted but never stops the other channels and never reaches the caller.
package alert

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sweeney/sleepcheck/internal/logic"
	"github.com/sweeney/sleepcheck/internal/metrics"
)

// Channel names used in logs and metrics.
const (
	ChannelAudio        = "audio"
	ChannelHaptic       = "haptic"
	ChannelNotification = "notification"
)

// Alerter accepts alerts. It never reports failure.
type Alerter interface {
	Fire(ctx context.Context, message string, severity logic.Severity)
}

// Channel is one delivery path.
type Channel interface {
	Name() string
	Alert(ctx context.Context, message string, severity logic.Severity) error
}

// Dispatcher fans an alert out to every channel concurrently.
type Dispatcher struct {
	channels []Channel
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over channels. Nil channels are skipped.
func NewDispatcher(logger *zap.Logger, channels ...Channel) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{logger: logger}
	for _, c := range channels {
		if c != nil {
			d.channels = append(d.channels, c)
		}
	}
	return d
}

// Fire implements Alerter. It returns once every channel has finished.
func (d *Dispatcher) Fire(ctx context.Context, message string, severity logic.Severity) {
	var wg sync.WaitGroup
	for _, c := range d.channels {
		wg.Add(1)
		go func(c Channel) {
			defer wg.Done()
			d.deliver(ctx, c, message, severity)
		}(c)
	}
	wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, c Channel, message string, severity logic.Severity) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = c.Alert(ctx, message, severity)
	}()
	if err != nil {
		metrics.IncChannelFailure(c.Name())
		d.logger.Error("alert channel failed",
			zap.String("channel", c.Name()),
			zap.String("child_id", ChildFrom(ctx)),
			zap.String("message", message),
			zap.Error(err),
		)
	}
}

type childKey struct{}

// WithChild tags ctx with the child an alert concerns.
func WithChild(ctx context.Context, childID string) context.Context {
	return context.WithValue(ctx, childKey{}, childID)
}

// ChildFrom returns the child tagged by WithChild, or "".
func ChildFrom(ctx context.Context) string {
	id, _ := ctx.Value(childKey{}).(string)
	return id
}

// ForChild returns an Alerter that tags every alert with childID before
// passing it to next.
func ForChild(next Alerter, childID string) Alerter {
	return childAlerter{next: next, childID: childID}
}

type childAlerter struct {
	next    Alerter
	childID string
}

func (a childAlerter) Fire(ctx context.Context, message string, severity logic.Severity) {
	a.next.Fire(WithChild(ctx, a.childID), message, severity)
}
