package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when the requested event is not legal
	// from the booking's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTerminalState is returned when a transition is attempted out of a
	// terminal status. The record is left unchanged.
	ErrTerminalState = errors.New("booking is in a terminal state")

	// ErrAccessDenied is returned when the acting party is not authorized for
	// the booking: wrong access secret or a provider that does not own it.
	ErrAccessDenied = errors.New("access denied")
)

// ValidationError reports a malformed or missing input field. The caller must
// fix the input and resubmit; it is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
