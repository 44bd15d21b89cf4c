package alert

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/sleepcheck/internal/logic"
)

// FireCall is one recorded alert.
type FireCall struct {
	ChildID  string
	Message  string
	Severity logic.Severity
}

// FakeAlerter records alerts for test assertions.
type FakeAlerter struct {
	mu    sync.Mutex
	calls []FireCall
}

// Fire records the alert.
func (f *FakeAlerter) Fire(ctx context.Context, message string, severity logic.Severity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, FireCall{ChildID: ChildFrom(ctx), Message: message, Severity: severity})
}

// Calls returns a copy of the recorded alerts.
func (f *FakeAlerter) Calls() []FireCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FireCall(nil), f.calls...)
}

// FakeChannel is a scripted Channel.
type FakeChannel struct {
	ChannelName string

	// Err, if set, is returned by Alert.
	Err error
	// Panic, if set, is raised by Alert.
	Panic interface{}
	// Block, if set, makes Alert wait for it to close (or ctx).
	Block chan struct{}

	mu    sync.Mutex
	calls []FireCall
}

// Name implements Channel.
func (f *FakeChannel) Name() string { return f.ChannelName }

// Alert implements Channel.
func (f *FakeChannel) Alert(ctx context.Context, message string, severity logic.Severity) error {
	f.mu.Lock()
	f.calls = append(f.calls, FireCall{ChildID: ChildFrom(ctx), Message: message, Severity: severity})
	f.mu.Unlock()

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.Panic != nil {
		panic(f.Panic)
	}
	return f.Err
}

// Calls returns a copy of the recorded alerts.
func (f *FakeChannel) Calls() []FireCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FireCall(nil), f.calls...)
}

// FakeDevice is a scripted audio Device.
type FakeDevice struct {
	mu sync.Mutex

	// IsSuspended is reported by Suspended and cleared by a successful Resume.
	IsSuspended bool
	ResumeError error
	PlayError   error
	// Playing, if set, receives a value as each Play begins.
	Playing chan struct{}
	// Block, if set, holds Play until it is closed or ctx ends.
	Block chan struct{}

	Resumes int
	Played  [][]byte
	Closed  bool
}

// Suspended implements Device.
func (f *FakeDevice) Suspended() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.IsSuspended
}

// Resume implements Device.
func (f *FakeDevice) Resume(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Resumes++
	if f.ResumeError != nil {
		return f.ResumeError
	}
	f.IsSuspended = false
	return nil
}

// Play implements Device.
func (f *FakeDevice) Play(ctx context.Context, wav []byte) error {
	f.mu.Lock()
	playing, block := f.Playing, f.Block
	f.mu.Unlock()
	if playing != nil {
		playing <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PlayError != nil {
		return f.PlayError
	}
	f.Played = append(f.Played, wav)
	return nil
}

// Close implements Device.
func (f *FakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Suspend simulates the platform pausing the output.
func (f *FakeDevice) Suspend() {
	f.mu.Lock()
	f.IsSuspended = true
	f.mu.Unlock()
}

// FakeOpener hands out Device and counts opens.
type FakeOpener struct {
	Device *FakeDevice
	Err    error
	Opens  int
}

// Open is an Opener.
func (f *FakeOpener) Open(context.Context) (Device, error) {
	f.Opens++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Device, nil
}

// FakeVibrator records vibration patterns.
type FakeVibrator struct {
	IsSupported bool
	Err         error

	mu       sync.Mutex
	Patterns [][]time.Duration
}

// Supported implements Vibrator.
func (f *FakeVibrator) Supported() bool { return f.IsSupported }

// Vibrate implements Vibrator.
func (f *FakeVibrator) Vibrate(_ context.Context, pattern []time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Patterns = append(f.Patterns, pattern)
	return nil
}

// FakeNotifier records notifications.
type FakeNotifier struct {
	Err error

	mu            sync.Mutex
	Notifications []Notification
}

// Notify implements Notifier.
func (f *FakeNotifier) Notify(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Notifications = append(f.Notifications, n)
	return nil
}

// Sent returns a copy of the recorded notifications.
func (f *FakeNotifier) Sent() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.Notifications...)
}
