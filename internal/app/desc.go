package app

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	DiagnosticsServiceName = "grpcadvice.diagnostics.v1.Diagnostics"

	EchoMethod       = "/" + DiagnosticsServiceName + "/Echo"
	RaiseMethod      = "/" + DiagnosticsServiceName + "/Raise"
	EchoStreamMethod = "/" + DiagnosticsServiceName + "/EchoStream"
)

// DiagnosticsServer is the server API for the diagnostics service.
type DiagnosticsServer interface {
	Echo(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	Raise(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	EchoStream(grpc.BidiStreamingServer[wrapperspb.StringValue, wrapperspb.StringValue]) error
}

func RegisterDiagnosticsServer(s grpc.ServiceRegistrar, srv DiagnosticsServer) {
	s.RegisterService(&diagnosticsServiceDesc, srv)
}

var diagnosticsServiceDesc = grpc.ServiceDesc{
	ServiceName: DiagnosticsServiceName,
	HandlerType: (*DiagnosticsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Echo", Handler: unaryHandler(EchoMethod, DiagnosticsServer.Echo)},
		{MethodName: "Raise", Handler: unaryHandler(RaiseMethod, DiagnosticsServer.Raise)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "EchoStream",
			Handler:       echoStreamHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "grpcadvice/diagnostics/v1/diagnostics.proto",
}

type unaryMethod func(DiagnosticsServer, context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)

func unaryHandler(fullMethod string, method unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(wrapperspb.StringValue)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(DiagnosticsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(DiagnosticsServer), ctx, req.(*wrapperspb.StringValue))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func echoStreamHandler(srv any, stream grpc.ServerStream) error {
	return srv.(DiagnosticsServer).EchoStream(&grpc.GenericServerStream[wrapperspb.StringValue, wrapperspb.StringValue]{ServerStream: stream})
}

// DiagnosticsClient is the client API for the diagnostics service.
type DiagnosticsClient struct {
	cc grpc.ClientConnInterface
}

func NewDiagnosticsClient(cc grpc.ClientConnInterface) *DiagnosticsClient {
	return &DiagnosticsClient{cc: cc}
}

func (c *DiagnosticsClient) Echo(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, EchoMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DiagnosticsClient) Raise(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, RaiseMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DiagnosticsClient) EchoStream(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[wrapperspb.StringValue, wrapperspb.StringValue], error) {
	stream, err := c.cc.NewStream(ctx, &diagnosticsServiceDesc.Streams[0], EchoStreamMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[wrapperspb.StringValue, wrapperspb.StringValue]{ClientStream: stream}, nil
}
