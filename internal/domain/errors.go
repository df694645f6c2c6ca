package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers unknown entities and references to another persona's entities.
	ErrNotFound = errors.New("not found")
	// ErrLockedStance is returned when an automated update targets a locked stance.
	ErrLockedStance = errors.New("stance is locked")
	// ErrValidation marks malformed input: bad enum values, empty required fields, out-of-range numbers.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidConfidence is a validation error for caller-supplied target confidence outside [0,1].
	ErrInvalidConfidence = fmt.Errorf("%w: confidence must be within [0,1]", ErrValidation)
	// ErrConcurrency signals that the current stance changed underneath a mutation.
	ErrConcurrency = errors.New("concurrent stance modification")
	// ErrIndexUnavailable means the persona's similarity index is missing or corrupt.
	ErrIndexUnavailable = errors.New("similarity index unavailable")
	// ErrConflict is returned on duplicate unique keys.
	ErrConflict = errors.New("already exists")
)

// Invalid builds a validation error with context.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
