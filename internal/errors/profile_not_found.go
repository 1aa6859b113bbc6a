package errors

import (
	stdErrors "errors"
	"fmt"
)

// ProfileNotFoundError is returned when a recommendation is requested for an unknown profile id.
type ProfileNotFoundError struct {
	ID string
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("profile %q not found", e.ID)
}

// NewProfileNotFoundError creates a ProfileNotFoundError
func NewProfileNotFoundError(id string) *ProfileNotFoundError {
	return &ProfileNotFoundError{ID: id}
}

// IsProfileNotFoundError reports whether err is a ProfileNotFoundError (even when wrapped)
func IsProfileNotFoundError(err error) bool {
	var notFound *ProfileNotFoundError
	return stdErrors.As(err, &notFound)
}
