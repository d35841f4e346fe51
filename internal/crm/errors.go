package crm

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrTerminalState is returned when an operation targets a schedule that
	// already reached sent, failed, or cancelled.
	ErrTerminalState = errors.New("schedule is in a terminal state")

	ErrDuplicateEmail = errors.New("a contact with that email already exists")
)

// ValidationError rejects malformed input at creation time; invalid records
// are never persisted.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
