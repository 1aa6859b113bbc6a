package errors

import (
	stdErrors "errors"
	"fmt"
)

// ValidationError is returned for input rejected before any network activity,
// such as a malformed ISBN or invalid profile fields.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is a ValidationError (even when wrapped)
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return stdErrors.As(err, &validationErr)
}
