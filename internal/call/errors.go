package call

import (
	"fmt"
)

// Phase identifies where in the call lifecycle a failure happened.
type Phase int

const (
	PhaseSetup Phase = iota + 1
	PhaseMessage
	PhaseHalfClose
	PhaseCancel
	PhaseComplete
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseMessage:
		return "message"
	case PhaseHalfClose:
		return "half_close"
	case PhaseCancel:
		return "cancel"
	case PhaseComplete:
		return "complete"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// InFlight reports whether the failure happened after the listener was
// created.
func (p Phase) InFlight() bool {
	return p > PhaseSetup && p <= PhaseReady
}

// CallError is a failure raised while handling a call, either returned from
// a callback or recovered from a panic.
type CallError struct {
	Method string
	Phase  Phase
	Cause  error

	// Panic holds the recovered value when the failure was a panic.
	Panic any
	Stack []byte
}

func (e *CallError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("%s: panic during %s: %v", e.Method, e.Phase, e.Cause)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Method, e.Phase, e.Cause)
}

func (e *CallError) Unwrap() error {
	return e.Cause
}

// Panicked reports whether the failure was a recovered panic.
func (e *CallError) Panicked() bool {
	return e.Panic != nil
}
