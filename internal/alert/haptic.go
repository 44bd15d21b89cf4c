package alert

import (
	"context"
	"time"

	"github.com/sweeney/sleepcheck/internal/logic"
)

// DefaultPattern alternates on and off durations: three 200ms pulses
// separated by 100ms gaps.
var DefaultPattern = []time.Duration{
	200 * time.Millisecond, 100 * time.Millisecond,
	200 * time.Millisecond, 100 * time.Millisecond,
	200 * time.Millisecond,
}

// Vibrator drives a vibration output.
type Vibrator interface {
	// Supported reports whether the host can vibrate.
	Supported() bool
	// Vibrate plays pattern (on, off, on, ...) and returns when done.
	Vibrate(ctx context.Context, pattern []time.Duration) error
}

// Haptic is the vibration channel. Without a supported vibrator it does nothing.
type Haptic struct {
	vibrator Vibrator
	pattern  []time.Duration
}

// NewHaptic creates a haptic channel. A nil pattern uses DefaultPattern.
func NewHaptic(v Vibrator, pattern []time.Duration) *Haptic {
	if pattern == nil {
		pattern = DefaultPattern
	}
	return &Haptic{vibrator: v, pattern: pattern}
}

// Name implements Channel.
func (h *Haptic) Name() string { return ChannelHaptic }

// Alert implements Channel.
func (h *Haptic) Alert(ctx context.Context, _ string, _ logic.Severity) error {
	if h.vibrator == nil || !h.vibrator.Supported() {
		return nil
	}
	return h.vibrator.Vibrate(ctx, h.pattern)
}
