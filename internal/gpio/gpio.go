// Package gpio drives the vibration motor used for haptic sleep-check alerts.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultChip is the Raspberry Pi GPIO chip.
const DefaultChip = "gpiochip0"

// DefaultPinMotor is the BCM pin wired to the motor driver.
const DefaultPinMotor = 18

// Motor switches a vibration motor on and off.
type Motor interface {
	// Set drives the motor line: true = vibrating.
	Set(on bool) error

	// Close releases GPIO resources and leaves the motor off.
	Close() error
}

// Vibrator plays on/off patterns on a Motor.
// Patterns are serialized: one pattern finishes before the next starts.
type Vibrator struct {
	mu    sync.Mutex
	motor Motor
	sleep func(ctx context.Context, d time.Duration) error
}

// NewVibrator wraps m. A nil motor yields an unsupported vibrator.
func NewVibrator(m Motor) *Vibrator {
	return &Vibrator{motor: m, sleep: sleepCtx}
}

// Supported reports whether a motor is attached.
func (v *Vibrator) Supported() bool {
	return v != nil && v.motor != nil
}

// Vibrate plays pattern, alternating on and off durations starting with on.
// The motor is always left off, including when ctx is cancelled.
func (v *Vibrator) Vibrate(ctx context.Context, pattern []time.Duration) (err error) {
	if !v.Supported() {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	defer func() {
		if offErr := v.motor.Set(false); offErr != nil && err == nil {
			err = fmt.Errorf("motor off: %w", offErr)
		}
	}()

	for i, d := range pattern {
		on := i%2 == 0
		if err := v.motor.Set(on); err != nil {
			return fmt.Errorf("motor set %v: %w", on, err)
		}
		if err := v.sleep(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
