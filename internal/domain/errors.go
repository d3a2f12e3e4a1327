package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a referenced id as absent or inaccessible. Hidden
// entities surface as ErrNotFound rather than a distinct authorization
// failure to avoid existence leakage.
var ErrNotFound = errors.New("not found")

// ErrConflict marks a unique-key race during create. Callers resubmit the
// write as an update once the row becomes visible.
var ErrConflict = errors.New("conflict")

// ValidationError reports a missing or malformed required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) error {
	return ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
