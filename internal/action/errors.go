package action

import (
	"errors"
	"fmt"

	"github.com/sweeney/sleepcheck/internal/logic"
)

// Precondition errors. They are returned before any store write.
var (
	ErrNotIdentified      = errors.New("operator has no staff identity")
	ErrSessionAlreadyOpen = errors.New("sleep session already open")
	ErrNoOpenSession      = errors.New("no open sleep session")
	ErrMissingMood        = errors.New("mood is required to stop a session")
	ErrUnknownChild       = errors.New("unknown child")
)

// StoreError reports an event log failure. The controller does not retry.
type StoreError struct {
	Op  string // "load" or "append"
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("event log %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err is a store failure rather than a
// precondition or validation error.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// Code is a stable machine-readable name for err, used in API responses
// and rejection metrics.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotIdentified):
		return "not_identified"
	case errors.Is(err, ErrSessionAlreadyOpen):
		return "session_already_open"
	case errors.Is(err, ErrNoOpenSession):
		return "no_open_session"
	case errors.Is(err, ErrMissingMood):
		return "missing_mood"
	case errors.Is(err, ErrUnknownChild):
		return "unknown_child"
	case errors.Is(err, logic.ErrInvalidPosition):
		return "invalid_position"
	case errors.Is(err, logic.ErrInvalidBreathing):
		return "invalid_breathing"
	case errors.Is(err, logic.ErrInvalidMood):
		return "invalid_mood"
	case errors.Is(err, logic.ErrNotesTooLong):
		return "notes_too_long"
	case errors.Is(err, logic.ErrInvalidKind):
		return "invalid_kind"
	case IsStoreError(err):
		return "store_unavailable"
	}
	return "internal"
}

// Message is the staff-facing text for err.
func Message(err error) string {
	switch Code(err) {
	case "":
		return ""
	case "not_identified":
		return "Set your initials first."
	case "session_already_open":
		return "A sleep session is already open for this child. Record a check or stop it first."
	case "no_open_session":
		return "No open sleep session to check or stop. Start a session first."
	case "missing_mood":
		return "Choose the child's mood before stopping the session."
	case "unknown_child":
		return "This child is not on today's list."
	case "invalid_position":
		return "Choose a valid sleep position."
	case "invalid_breathing":
		return "Choose a valid breathing condition."
	case "invalid_mood":
		return "Mood is only recorded when stopping, and must be one of the listed moods."
	case "notes_too_long":
		return fmt.Sprintf("Notes must be %d characters or fewer.", logic.MaxNotesLength)
	case "store_unavailable":
		return "The record could not be saved. Check the connection and try again."
	}
	return "Something went wrong. Try again."
}

// IsPrecondition reports whether err is a session-state precondition failure.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrNotIdentified) ||
		errors.Is(err, ErrSessionAlreadyOpen) ||
		errors.Is(err, ErrNoOpenSession) ||
		errors.Is(err, ErrMissingMood)
}
