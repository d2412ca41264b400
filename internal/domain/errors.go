package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateSubmission is returned when the student already answered the step.
	ErrDuplicateSubmission = errors.New("already submitted for this step")
	// ErrCaseNotFound indicates no configuration is stored for the case.
	ErrCaseNotFound = errors.New("case not found")
	// ErrSessionNotFound is returned for an unknown session of a case.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStepNotFound indicates a step id outside the case's step list.
	ErrStepNotFound = errors.New("step not found")
	// ErrConnection wraps failures of the initial fetch of a synchronized scope.
	ErrConnection = errors.New("connection error")
)

// ValidationError reports a missing or malformed field. Nothing is written when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err denotes an unknown case, session or step.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCaseNotFound) || errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrStepNotFound)
}
