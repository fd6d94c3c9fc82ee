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

// StreamServerInterceptor runs interceptors around every streaming call.
// The stream handler runs inside OnReady, so failures raised while it
// streams are reported from that callback.
func StreamServerInterceptor(interceptors ...call.ServerInterceptor) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		sc := &streamCall{ServerStream: ss, method: info.FullMethod}
		md, _ := metadata.FromIncomingContext(ss.Context())

		chain := call.Intercept(streamHandler(srv, sc, handler), interceptors...)
		run(sc, md.Copy(), chain, func(l call.Listener) error {
			return l.OnHalfClose()
		})

		return sc.result()
	}
}

func streamHandler(srv any, sc *streamCall, handler grpc.StreamHandler) call.CallHandler {
	return call.CallHandlerFunc(func(c call.ServerCall, _ metadata.MD) (call.Listener, error) {
		return call.ListenerFuncs{
			Ready: func() error {
				if err := handler(srv, &callStream{ServerStream: sc.ServerStream, call: c}); err != nil {
					return err
				}
				return c.Close(status.New(codes.OK, ""), nil)
			},
		}, nil
	})
}

type streamCall struct {
	grpc.ServerStream
	method string

	mu     sync.Mutex
	status *status.Status
}

func (c *streamCall) Context() context.Context { return c.ServerStream.Context() }
func (c *streamCall) Method() string           { return c.method }

func (c *streamCall) SendHeader(md metadata.MD) error {
	if c.Closed() {
		return call.ErrCallClosed
	}
	return c.ServerStream.SendHeader(md)
}

func (c *streamCall) SendMessage(msg any) error {
	if c.Closed() {
		return call.ErrCallClosed
	}
	return c.ServerStream.SendMsg(msg)
}

func (c *streamCall) Close(st *status.Status, trailer metadata.MD) error {
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
		c.ServerStream.SetTrailer(trailer)
	}
	return nil
}

func (c *streamCall) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status != nil
}

func (c *streamCall) result() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == nil {
		return errDropped
	}
	return c.status.Err()
}

// callStream is the grpc.ServerStream handed to the stream handler. Sends
// go through the call so they fail once it is closed, and the context is
// the one interceptors attached to the call.
type callStream struct {
	grpc.ServerStream
	call call.ServerCall
}

func (s *callStream) Context() context.Context {
	return s.call.Context()
}

func (s *callStream) SendMsg(m any) error {
	return s.call.SendMessage(m)
}

func (s *callStream) SendHeader(md metadata.MD) error {
	return s.call.SendHeader(md)
}
