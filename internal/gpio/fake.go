package gpio

import "sync"

// FakeMotor records motor line changes for test assertions.
type FakeMotor struct {
	mu sync.Mutex

	// States contains every value passed to Set, in order.
	States []bool

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeMotor creates a FakeMotor.
func NewFakeMotor() *FakeMotor {
	return &FakeMotor{}
}

// Set records the line value.
func (f *FakeMotor) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.States = append(f.States, on)
	return nil
}

// On reports the last value set.
func (f *FakeMotor) On() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.States) > 0 && f.States[len(f.States)-1]
}

// Close marks the motor as closed.
func (f *FakeMotor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Values returns a copy of the values passed to Set.
func (f *FakeMotor) Values() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.States...)
}
