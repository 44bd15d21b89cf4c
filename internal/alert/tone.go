package alert

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

// Tone describes the alert beep. It is synthesized on demand so there is
// no audio asset to ship or load.
type Tone struct {
	FrequencyHz float64
	Duration    time.Duration
	SampleRate  int
	// Volume is the peak amplitude in [0,1].
	Volume float64
	// Decay is the exponential envelope rate per second.
	Decay float64
}

// DefaultTone is a 0.5s 800Hz beep that fades out.
func DefaultTone() Tone {
	return Tone{
		FrequencyHz: 800,
		Duration:    500 * time.Millisecond,
		SampleRate:  22050,
		Volume:      0.6,
		Decay:       6,
	}
}

// Validate reports whether the tone can be synthesized.
func (t Tone) Validate() error {
	switch {
	case t.FrequencyHz <= 0:
		return errors.New("alert: tone frequency must be positive")
	case t.SampleRate <= 0:
		return errors.New("alert: sample rate must be positive")
	case t.FrequencyHz >= float64(t.SampleRate)/2:
		return errors.New("alert: tone frequency must be below half the sample rate")
	case t.Duration <= 0:
		return errors.New("alert: tone duration must be positive")
	case t.Volume <= 0 || t.Volume > 1:
		return errors.New("alert: tone volume must be in (0,1]")
	case t.Decay < 0:
		return errors.New("alert: tone decay must not be negative")
	}
	return nil
}

// Samples returns mono signed 16-bit PCM.
func (t Tone) Samples() []int16 {
	n := int(t.Duration.Seconds() * float64(t.SampleRate))
	out := make([]int16, n)
	rate := float64(t.SampleRate)
	for i := range out {
		secs := float64(i) / rate
		env := math.Exp(-t.Decay * secs)
		v := t.Volume * env * math.Sin(2*math.Pi*t.FrequencyHz*secs)
		out[i] = int16(math.Round(v * math.MaxInt16))
	}
	return out
}

// WAV returns the tone as a RIFF/WAVE file.
func (t Tone) WAV() []byte {
	samples := t.Samples()
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(samples) * blockAlign

	var buf bytes.Buffer
	buf.Grow(44 + dataSize)
	le := binary.LittleEndian

	buf.WriteString("RIFF")
	binary.Write(&buf, le, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, le, uint32(16)) // PCM chunk size
	binary.Write(&buf, le, uint16(1))  // PCM format
	binary.Write(&buf, le, uint16(channels))
	binary.Write(&buf, le, uint32(t.SampleRate))
	binary.Write(&buf, le, uint32(t.SampleRate*blockAlign))
	binary.Write(&buf, le, uint16(blockAlign))
	binary.Write(&buf, le, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, le, uint32(dataSize))
	binary.Write(&buf, le, samples)

	return buf.Bytes()
}
