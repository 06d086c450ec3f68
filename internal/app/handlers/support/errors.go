package support

import (
	"errors"
	"fmt"
)

var ErrInvalidArgument = errors.New("invalid argument")

// ArgumentError reports a malformed command or query field.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

func Required(field string) error {
	return &ArgumentError{Field: field, Reason: "is required"}
}
