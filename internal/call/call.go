// Package call models the server side lifecycle of a single RPC: the call
// object, the listener receiving lifecycle events and the handler chain that
// produces listeners.
package call

import (
	"context"
	"errors"

	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// ErrCallClosed is returned when sending on or closing an already closed call.
var ErrCallClosed = errors.New("call already closed")

// ServerCall is the server view of one inbound RPC.
type ServerCall interface {
	// Context returns the context of the call. It is cancelled when the
	// client cancels or the deadline expires.
	Context() context.Context

	// Method returns the full method name, e.g. "/pkg.Service/Method".
	Method() string

	// SendHeader sends response headers.
	SendHeader(md metadata.MD) error

	// SendMessage sends a response message.
	SendMessage(msg any) error

	// Close completes the call with the given status and trailers.
	// Only the first Close takes effect.
	Close(st *status.Status, trailer metadata.MD) error

	// Closed reports whether Close has been called.
	Closed() bool
}

// Listener receives the lifecycle events of a call. Callbacks for one call
// are invoked sequentially; callbacks of different calls run concurrently.
type Listener interface {
	OnMessage(msg any) error
	OnHalfClose() error
	OnCancel() error
	OnComplete() error
	OnReady() error
}

// CallHandler starts a call and returns the listener for its events.
type CallHandler interface {
	StartCall(c ServerCall, md metadata.MD) (Listener, error)
}

// CallHandlerFunc adapts a function to CallHandler.
type CallHandlerFunc func(c ServerCall, md metadata.MD) (Listener, error)

// StartCall implements CallHandler.
func (f CallHandlerFunc) StartCall(c ServerCall, md metadata.MD) (Listener, error) {
	return f(c, md)
}

// ServerInterceptor wraps the start of a call.
type ServerInterceptor interface {
	InterceptCall(c ServerCall, md metadata.MD, next CallHandler) StartResult
}

// InterceptorFunc adapts a function to ServerInterceptor.
type InterceptorFunc func(c ServerCall, md metadata.MD, next CallHandler) StartResult

// InterceptCall implements ServerInterceptor.
func (f InterceptorFunc) InterceptCall(c ServerCall, md metadata.MD, next CallHandler) StartResult {
	return f(c, md, next)
}
