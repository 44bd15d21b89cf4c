package logic

import (
	"errors"
	"strings"
	"testing"
)

func TestValidPosition(t *testing.T) {
	tests := []struct {
		kind Kind
		pos  Position
		want bool
	}{
		{KindStart, PositionBack, true},
		{KindStart, PositionTummy, true},
		{KindStart, PositionSeated, false},
		{KindCheck, PositionSide, true},
		{KindCheck, PositionStanding, false},
		{KindStop, PositionSeated, true},
		{KindStop, PositionStanding, true},
		{KindStop, Position("UPSIDE_DOWN"), false},
	}
	for _, tt := range tests {
		if got := ValidPosition(tt.kind, tt.pos); got != tt.want {
			t.Errorf("ValidPosition(%s, %s): got %v, want %v", tt.kind, tt.pos, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	ok := Event{Kind: KindCheck, Position: PositionBack, Breathing: BreathingNormal}

	tests := []struct {
		name   string
		mutate func(e *Event)
		want   error
	}{
		{"valid", func(e *Event) {}, nil},
		{"bad kind", func(e *Event) { e.Kind = "NAP" }, ErrInvalidKind},
		{"seated on check", func(e *Event) { e.Position = PositionSeated }, ErrInvalidPosition},
		{"bad breathing", func(e *Event) { e.Breathing = "FAST" }, ErrInvalidBreathing},
		{"mood on check", func(e *Event) { e.Mood = MoodHappy }, ErrInvalidMood},
		{"bad mood on stop", func(e *Event) { e.Kind = KindStop; e.Mood = "SLEEPY" }, ErrInvalidMood},
		{"mood on stop", func(e *Event) { e.Kind = KindStop; e.Mood = MoodCrying }, nil},
		{"notes at limit", func(e *Event) { e.Notes = strings.Repeat("é", MaxNotesLength) }, nil},
		{"notes too long", func(e *Event) { e.Notes = strings.Repeat("a", MaxNotesLength+1) }, ErrNotesTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ok
			tt.mutate(&e)
			err := Validate(e)
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}
