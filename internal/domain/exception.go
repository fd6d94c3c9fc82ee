package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExceptionEvent describes one failure that was turned into a response.
type ExceptionEvent struct {
	ID         string
	Method     string
	Phase      string
	Code       string
	Message    string
	Cause      string
	Panicked   bool
	RequestID  string
	OccurredAt time.Time
}

// NewExceptionEvent stamps a new event with an id and the current time.
func NewExceptionEvent(method, phase, code, message, cause string, panicked bool) ExceptionEvent {
	return ExceptionEvent{
		ID:         uuid.New().String(),
		Method:     method,
		Phase:      phase,
		Code:       code,
		Message:    message,
		Cause:      cause,
		Panicked:   panicked,
		OccurredAt: time.Now().UTC(),
	}
}
