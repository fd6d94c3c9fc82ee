package interceptors

import (
	"fmt"
	"runtime/debug"

	"github.com/dmehra2102/grpcadvice/internal/call"
)

// protect runs fn and turns a returned error or a panic into a *call.CallError.
func protect(method string, phase call.Phase, fn func() error) (cerr *call.CallError) {
	defer func() {
		if r := recover(); r != nil {
			cerr = &call.CallError{
				Method: method,
				Phase:  phase,
				Cause:  panicCause(r),
				Panic:  r,
				Stack:  debug.Stack(),
			}
		}
	}()

	if err := fn(); err != nil {
		return &call.CallError{Method: method, Phase: phase, Cause: err}
	}
	return nil
}

func panicCause(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
