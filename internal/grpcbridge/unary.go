package grpcbridge

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/grpcadvice/internal/call"
)

// UnaryServerInterceptor runs interceptors around every unary call.
func UnaryServerInterceptor(interceptors ...call.ServerInterceptor) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		uc := &unaryCall{ctx: ctx, method: info.FullMethod}
		md, _ := metadata.FromIncomingContext(ctx)

		chain := call.Intercept(unaryHandler(handler), interceptors...)
		run(uc, md.Copy(), chain, func(l call.Listener) error {
			if err := l.OnMessage(req); err != nil {
				return err
			}
			return l.OnHalfClose()
		})

		return uc.result()
	}
}

// unaryHandler invokes the grpc handler once the request has arrived and
// the client half-closed.
func unaryHandler(handler grpc.UnaryHandler) call.CallHandler {
	return call.CallHandlerFunc(func(c call.ServerCall, _ metadata.MD) (call.Listener, error) {
		var (
			req      any
			received bool
		)
		return call.ListenerFuncs{
			Message: func(msg any) error {
				if received {
					return status.Error(codes.Internal, "too many requests for unary call")
				}
				req, received = msg, true
				return nil
			},
			HalfClose: func() error {
				if !received {
					return status.Error(codes.Internal, "half-closed without a request")
				}
				resp, err := handler(c.Context(), req)
				if err != nil {
					return err
				}
				if err := c.SendMessage(resp); err != nil {
					return err
				}
				return c.Close(status.New(codes.OK, ""), nil)
			},
		}, nil
	})
}

type unaryCall struct {
	ctx    context.Context
	method string

	mu     sync.Mutex
	resp   any
	sent   bool
	status *status.Status
}

func (c *unaryCall) Context() context.Context { return c.ctx }
func (c *unaryCall) Method() string           { return c.method }

func (c *unaryCall) SendHeader(md metadata.MD) error {
	if c.Closed() {
		return call.ErrCallClosed
	}
	return grpc.SetHeader(c.ctx, md)
}

func (c *unaryCall) SendMessage(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != nil {
		return call.ErrCallClosed
	}
	if c.sent {
		return status.Error(codes.Internal, "unary call already has a response")
	}
	c.resp, c.sent = msg, true
	return nil
}

func (c *unaryCall) Close(st *status.Status, trailer metadata.MD) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != nil {
		return call.ErrCallClosed
	}
	if st == nil {
		st = status.New(codes.OK, "")
	}
	c.status = st
	if len(trailer) > 0 {
		// The status is final at this point; trailers are best effort.
		_ = grpc.SetTrailer(c.ctx, trailer)
	}
	return nil
}

func (c *unaryCall) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status != nil
}

func (c *unaryCall) result() (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.status == nil:
		return nil, errDropped
	case c.status.Code() != codes.OK:
		return nil, c.status.Err()
	case !c.sent:
		return nil, status.Error(codes.Internal, "no response for unary call")
	default:
		return c.resp, nil
	}
}
