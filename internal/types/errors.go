package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for client-caused outcomes. Callers branch on them with
// errors.Is; anything else coming out of the lifecycle is a storage fault.
//
//	if errors.Is(err, types.ErrNotFound) {
//	    // 404
//	}
var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrEmptyPatch is returned when an update carries no fields.
	ErrEmptyPatch = &ValidationError{Message: "no fields to update"}
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports a missing task or project.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TaskNotFound returns a NotFoundError for a task id.
func TaskNotFound(id int64) error {
	return &NotFoundError{Kind: "task", ID: id}
}

// ProjectNotFound returns a NotFoundError for a project id.
func ProjectNotFound(id int64) error {
	return &NotFoundError{Kind: "project", ID: id}
}

// IsClientError reports whether err is a validation or not-found outcome.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound)
}
