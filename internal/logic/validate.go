package logic

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	ErrInvalidKind      = errors.New("invalid event kind")
	ErrInvalidPosition  = errors.New("invalid position")
	ErrInvalidBreathing = errors.New("invalid breathing condition")
	ErrInvalidMood      = errors.New("invalid mood")
	ErrNotesTooLong     = errors.New("notes too long")
)

// ValidPosition reports whether p is allowed for an event of kind k.
// Start and Check allow Back, Side and Tummy; Stop additionally allows Seated and Standing.
func ValidPosition(k Kind, p Position) bool {
	switch p {
	case PositionBack, PositionSide, PositionTummy:
		return true
	case PositionSeated, PositionStanding:
		return k == KindStop
	}
	return false
}

// ValidBreathing reports whether b is a known breathing condition.
func ValidBreathing(b Breathing) bool {
	switch b {
	case BreathingNormal, BreathingLabored, BreathingCongested:
		return true
	}
	return false
}

// ValidMood reports whether m is a known mood.
func ValidMood(m Mood) bool {
	switch m {
	case MoodHappy, MoodNeutral, MoodFussy, MoodUpset, MoodCrying:
		return true
	}
	return false
}

// Validate checks the observation fields of an event. It does not check
// session membership; that is the controller's job.
func Validate(e Event) error {
	switch e.Kind {
	case KindStart, KindCheck, KindStop:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, e.Kind)
	}
	if !ValidPosition(e.Kind, e.Position) {
		return fmt.Errorf("%w: %q for %s", ErrInvalidPosition, e.Position, e.Kind)
	}
	if !ValidBreathing(e.Breathing) {
		return fmt.Errorf("%w: %q", ErrInvalidBreathing, e.Breathing)
	}
	if e.Kind == KindStop {
		if e.Mood != "" && !ValidMood(e.Mood) {
			return fmt.Errorf("%w: %q", ErrInvalidMood, e.Mood)
		}
	} else if e.Mood != "" {
		return fmt.Errorf("%w: mood is only recorded on stop", ErrInvalidMood)
	}
	if n := utf8.RuneCountInString(e.Notes); n > MaxNotesLength {
		return fmt.Errorf("%w: %d > %d", ErrNotesTooLong, n, MaxNotesLength)
	}
	return nil
}
