package call

import (
	"errors"

	"google.golang.org/grpc/metadata"
)

var errNoListener = errors.New("no listener")

// Intercept returns a handler that runs interceptors around handler. The
// first interceptor is the outermost one.
//
// The returned handler never fails: a Failed start result at any level is
// replaced by Inert before it reaches the caller.
func Intercept(handler CallHandler, interceptors ...ServerInterceptor) CallHandler {
	for i := len(interceptors) - 1; i >= 0; i-- {
		handler = &interceptedHandler{
			interceptor: interceptors[i],
			next:        handler,
		}
	}
	return handler
}

type interceptedHandler struct {
	interceptor ServerInterceptor
	next        CallHandler
}

func (h *interceptedHandler) StartCall(c ServerCall, md metadata.MD) (Listener, error) {
	return h.interceptor.InterceptCall(c, md, h.next).Listener(), nil
}
