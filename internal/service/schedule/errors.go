package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("export schedule not found")
	ErrRunInProgress = errors.New("export schedule is already running")
	ErrConflict      = errors.New("export schedule changed while updating, retry")
	ErrValidation    = errors.New("invalid export schedule")
)

// ValidationError points at the field that failed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
