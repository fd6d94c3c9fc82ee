package domain

import "errors"

var (
	// Validation errors
	ErrInvalidArgument = errors.New("invalid argument")
	ErrEmptyMessage    = errors.New("message cannot be empty")

	// Business logic errors
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrFailedPrecondition = errors.New("failed precondition")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden - insufficient permissions")

	// Infrastructure errors
	ErrUnavailable = errors.New("dependency unavailable")
)

// ValidationError reports an invalid request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidArgument
}
