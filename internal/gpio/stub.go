//go:build !linux

package gpio

import "errors"

// RealMotor is not available on non-Linux platforms.
type RealMotor struct{}

// NewRealMotor returns an error on non-Linux platforms.
func NewRealMotor(chip string, pin int) (*RealMotor, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (m *RealMotor) Set(on bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (m *RealMotor) Close() error {
	return nil
}
