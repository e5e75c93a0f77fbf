// Package apperrors defines the error taxonomy of spec.md §7 and the
// mapping each kind needs at the transport boundary.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Endpoints translate these to HTTP status via errors.Is;
// see pkg/api/errors.go for the mapping table.
var (
	// ErrUnauthorized — missing/invalid/mismatched-address token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotAllowed — action forbidden by current state.
	ErrNotAllowed = errors.New("not allowed")
	// ErrNotFound — targeted entity absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict — sync-version saturation, stale iterator session, optimistic check fail.
	ErrConflict = errors.New("conflict")
	// ErrDataError — persistence or serialization failure; internal.
	ErrDataError = errors.New("data error")
	// ErrTime — clock/reset computation failure; internal.
	ErrTime = errors.New("time error")
	// ErrFeatureDisabled — optional subsystem not configured.
	ErrFeatureDisabled = errors.New("feature disabled")
	// ErrExternal — upstream service failed.
	ErrExternal = errors.New("external service error")
)

// ValidationError wraps field-specific input validation failures,
// reported as 400 Bad Request at the transport boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %q: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Wrap attaches a sentinel kind to a lower-level error while preserving
// it for errors.Is/As and logging.
func Wrap(kind error, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", kind, cause)
}
