// Package grpcbridge runs call interceptor chains inside a grpc-go server.
package grpcbridge

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/grpcadvice/internal/call"
)

var errDropped = status.Error(codes.Internal, "call dropped before completion")

// ServerOptions installs interceptors for both unary and streaming calls.
func ServerOptions(interceptors ...call.ServerInterceptor) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(interceptors...)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(interceptors...)),
	}
}

// run starts c through chain and drives the listener: OnReady, then deliver,
// then OnComplete or OnCancel depending on the call context. An error that
// escapes a callback closes the call with its status.
func run(c call.ServerCall, md metadata.MD, chain call.CallHandler, deliver func(call.Listener) error) {
	l, err := chain.StartCall(c, md)
	if err != nil {
		return
	}
	if l == nil {
		l = call.Inert{}
	}

	fail := func(err error) {
		if err != nil && !c.Closed() {
			_ = c.Close(status.Convert(err), nil)
		}
	}

	fail(l.OnReady())
	if !c.Closed() {
		fail(deliver(l))
	}

	if c.Context().Err() != nil {
		fail(l.OnCancel())
		return
	}
	fail(l.OnComplete())
}
