package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sweeney/sleepcheck/internal/logic"
)

// ErrAudioTornDown is returned by Audio after Teardown.
var ErrAudioTornDown = errors.New("alert: audio pipeline torn down")

// Device is an open audio output.
type Device interface {
	// Suspended reports whether the platform has paused the output.
	Suspended() bool
	// Resume reactivates a suspended output.
	Resume(ctx context.Context) error
	// Play blocks until wav has been played.
	Play(ctx context.Context, wav []byte) error
	Close() error
}

// Opener acquires a Device.
type Opener func(ctx context.Context) (Device, error)

// Audio is the audible channel. It owns the single audio pipeline for the
// process: the device is opened on first use and then reused until Teardown.
type Audio struct {
	open Opener
	tone Tone

	mu       sync.Mutex
	dev      Device
	tornDown bool

	// playMu serializes tones. It is never held together with mu, so a
	// staff gesture can acquire the pipeline while a tone is playing.
	playMu sync.Mutex
}

// NewAudio creates an audio channel that plays tone via devices from open.
// No device is opened until Acquire or the first Alert.
func NewAudio(open Opener, tone Tone) *Audio {
	return &Audio{open: open, tone: tone}
}

// Name implements Channel.
func (a *Audio) Name() string { return ChannelAudio }

// Acquire opens the pipeline if needed and resumes it if suspended.
// Call it from a staff action so the output is ready before the first alert.
func (a *Audio) Acquire(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, err := a.acquireLocked(ctx)
	return err
}

func (a *Audio) acquireLocked(ctx context.Context) (Device, error) {
	if a.tornDown {
		return nil, ErrAudioTornDown
	}
	if a.dev == nil {
		dev, err := a.open(ctx)
		if err != nil {
			return nil, fmt.Errorf("open audio device: %w", err)
		}
		a.dev = dev
	}
	if a.dev.Suspended() {
		if err := a.dev.Resume(ctx); err != nil {
			return nil, fmt.Errorf("resume audio device: %w", err)
		}
	}
	return a.dev, nil
}

// Acquired reports whether a device is currently held.
func (a *Audio) Acquired() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dev != nil
}

// Alert implements Channel.
func (a *Audio) Alert(ctx context.Context, _ string, _ logic.Severity) error {
	a.mu.Lock()
	dev, err := a.acquireLocked(ctx)
	a.mu.Unlock()
	if err != nil {
		return err
	}

	a.playMu.Lock()
	defer a.playMu.Unlock()
	if err := dev.Play(ctx, a.tone.WAV()); err != nil {
		return fmt.Errorf("play tone: %w", err)
	}
	return nil
}

// Teardown releases the device. Later calls fail with ErrAudioTornDown.
func (a *Audio) Teardown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tornDown = true
	if a.dev == nil {
		return nil
	}
	err := a.dev.Close()
	a.dev = nil
	return err
}
