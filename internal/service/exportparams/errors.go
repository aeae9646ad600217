package exportparams

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParams = errors.New("invalid export params")
	ErrUnknownType   = errors.New("unknown export type")
)

// FieldError names the offending field so callers can point at it.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Is(target error) bool { return target == ErrInvalidParams }

func fieldErr(field, format string, args ...any) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}
