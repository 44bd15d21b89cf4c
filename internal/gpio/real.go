//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealMotor drives a motor from an actual GPIO output line.
type RealMotor struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealMotor requests pin on chip as an output, initially off.
func NewRealMotor(chip string, pin int) (*RealMotor, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chip, err)
	}

	line, err := c.RequestLine(pin, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("sleepcheck-haptic"))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request motor pin %d: %w", pin, err)
	}

	return &RealMotor{chip: c, line: line}, nil
}

// Set drives the motor line high (on) or low (off).
func (m *RealMotor) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := m.line.SetValue(v); err != nil {
		return fmt.Errorf("set motor pin: %w", err)
	}
	return nil
}

// Close turns the motor off and returns the pin to an input with pull-down,
// matching Pi boot defaults so the driver stays off across reboot.
func (m *RealMotor) Close() error {
	var errs []error

	if m.line != nil {
		if err := m.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("motor off: %w", err))
		}
		if err := m.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure motor pin: %w", err))
		}
		if err := m.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close motor pin: %w", err))
		}
	}
	if m.chip != nil {
		if err := m.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
