// Package apperr holds the error taxonomy shared by the service, the stores and the transports.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed or empty input. Nothing is changed.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown order id.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidTransition marks a backward status change. The order is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStorage marks a failed persistence call. The operation may be retried.
	ErrStorage = errors.New("storage unavailable")
)

// ValidationError describes which input field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}

	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Validation creates a new ValidationError.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Storage wraps a persistence error so that it matches ErrStorage.
func Storage(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrStorage, err)
}
