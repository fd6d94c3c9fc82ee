package interceptors

import (
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/grpcadvice/internal/call"
)

var errNilListener = errors.New("handler returned a nil listener")

// ExceptionHandler turns a failure raised while a call is in flight into a
// response on that call.
type ExceptionHandler interface {
	HandleException(c call.ServerCall, err *call.CallError)
}

// ExceptionHandlerFunc adapts a function to ExceptionHandler.
type ExceptionHandlerFunc func(c call.ServerCall, err *call.CallError)

func (f ExceptionHandlerFunc) HandleException(c call.ServerCall, err *call.CallError) {
	f(c, err)
}

// ExceptionInterceptor routes every failure raised by the rest of the chain
// to a single ExceptionHandler.
//
// A failure while starting the call yields a Failed result, which the chain
// turns into an inert listener; no response is sent. A failure inside any
// listener callback is passed to the handler and the callback returns nil.
type ExceptionInterceptor struct {
	handler ExceptionHandler
	logger  *zap.Logger
}

// NewExceptionInterceptor panics if handler is nil.
func NewExceptionInterceptor(handler ExceptionHandler, logger *zap.Logger) *ExceptionInterceptor {
	if handler == nil {
		panic("interceptors: nil exception handler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExceptionInterceptor{handler: handler, logger: logger}
}

func (i *ExceptionInterceptor) InterceptCall(c call.ServerCall, md metadata.MD, next call.CallHandler) call.StartResult {
	var delegate call.Listener
	cerr := protect(c.Method(), call.PhaseSetup, func() error {
		l, err := next.StartCall(c, md)
		if err != nil {
			return err
		}
		if l == nil {
			return errNilListener
		}
		delegate = l
		return nil
	})
	if cerr != nil {
		grpcSetupFailures.WithLabelValues(c.Method()).Inc()
		i.logger.Warn("failed to start call, dropping it",
			zap.String("method", c.Method()),
			zap.Bool("panic", cerr.Panicked()),
			zap.Error(cerr.Cause),
		)
		return call.Failed(cerr)
	}

	return call.Started(&exceptionListener{
		Forwarding: call.Forwarding{Delegate: delegate},
		call:       c,
		handler:    i.handler,
		logger:     i.logger,
	})
}

type exceptionListener struct {
	call.Forwarding
	call    call.ServerCall
	handler ExceptionHandler
	logger  *zap.Logger
}

func (l *exceptionListener) OnMessage(msg any) error {
	return l.guard(call.PhaseMessage, func() error { return l.Delegate.OnMessage(msg) })
}

func (l *exceptionListener) OnHalfClose() error {
	return l.guard(call.PhaseHalfClose, l.Delegate.OnHalfClose)
}

func (l *exceptionListener) OnCancel() error {
	return l.guard(call.PhaseCancel, l.Delegate.OnCancel)
}

func (l *exceptionListener) OnComplete() error {
	return l.guard(call.PhaseComplete, l.Delegate.OnComplete)
}

func (l *exceptionListener) OnReady() error {
	return l.guard(call.PhaseReady, l.Delegate.OnReady)
}

func (l *exceptionListener) guard(phase call.Phase, fn func() error) error {
	cerr := protect(l.call.Method(), phase, fn)
	if cerr == nil {
		return nil
	}

	if herr := protect(l.call.Method(), phase, func() error {
		l.handler.HandleException(l.call, cerr)
		return nil
	}); herr != nil {
		l.logger.Error("exception handler failed",
			zap.String("method", l.call.Method()),
			zap.String("phase", phase.String()),
			zap.Any("handler_panic", herr.Panic),
			zap.NamedError("original", cerr.Cause),
			zap.ByteString("stack", herr.Stack),
		)
		if !l.call.Closed() {
			_ = l.call.Close(status.New(codes.Internal, "failed to handle exception"), nil)
		}
	}
	return nil
}
