package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmehra2102/grpcadvice/internal/domain"
	"github.com/dmehra2102/grpcadvice/pkg/auth"
)

const maxMessageLength = 1024

// Failure kinds understood by Raise.
const (
	KindNotFound     = "not_found"
	KindInvalid      = "invalid"
	KindConflict     = "conflict"
	KindPrecondition = "precondition"
	KindForbidden    = "forbidden"
	KindUnavailable  = "unavailable"
	KindStatus       = "status"
	KindInternal     = "internal"
	KindPanic        = "panic"
)

// DiagnosticsServiceServer echoes messages and raises failures on demand so
// the exception path of the server can be exercised end to end.
type DiagnosticsServiceServer struct {
	logger *zap.Logger
	tracer trace.Tracer
	authz  *auth.Authorizer
}

var _ DiagnosticsServer = (*DiagnosticsServiceServer)(nil)

// NewDiagnosticsServiceServer returns the service. With a nil authz every
// caller may use Raise.
func NewDiagnosticsServiceServer(logger *zap.Logger, authz *auth.Authorizer) *DiagnosticsServiceServer {
	return &DiagnosticsServiceServer{
		logger: logger,
		tracer: otel.Tracer("diagnostics-service"),
		authz:  authz,
	}
}

func (s *DiagnosticsServiceServer) Echo(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	_, span := s.tracer.Start(ctx, "Echo")
	defer span.End()

	if err := validateMessage(req.GetValue()); err != nil {
		return nil, err
	}

	return wrapperspb.String(req.GetValue()), nil
}

func (s *DiagnosticsServiceServer) Raise(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	ctx, span := s.tracer.Start(ctx, "Raise")
	defer span.End()

	if s.authz != nil {
		userCtx, err := auth.UserContextFromContext(ctx)
		if err != nil {
			return nil, domain.ErrUnauthorized
		}
		if !s.authz.CanRaise(userCtx) {
			return nil, domain.ErrForbidden
		}
	}

	kind := strings.TrimSpace(req.GetValue())
	span.SetAttributes(attribute.String("diagnostics.kind", kind))

	s.logger.Debug("raising requested failure", zap.String("kind", kind))

	return nil, failure(kind)
}

func (s *DiagnosticsServiceServer) EchoStream(stream grpc.BidiStreamingServer[wrapperspb.StringValue, wrapperspb.StringValue]) error {
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if msg.GetValue() == KindPanic {
			panic("diagnostics: requested panic in stream")
		}
		if err := validateMessage(msg.GetValue()); err != nil {
			return err
		}

		if err := stream.Send(wrapperspb.String(msg.GetValue())); err != nil {
			return err
		}
	}
}

func validateMessage(msg string) error {
	if msg == "" {
		return domain.ErrEmptyMessage
	}
	if len(msg) > maxMessageLength {
		return &domain.ValidationError{
			Field:  "value",
			Reason: fmt.Sprintf("exceeds %d bytes", maxMessageLength),
		}
	}
	return nil
}

func failure(kind string) error {
	switch kind {
	case KindNotFound:
		return fmt.Errorf("lookup diagnostics target: %w", domain.ErrNotFound)
	case KindInvalid:
		return &domain.ValidationError{Field: "value", Reason: "requested invalid argument"}
	case KindConflict:
		return domain.ErrAlreadyExists
	case KindPrecondition:
		return domain.ErrFailedPrecondition
	case KindForbidden:
		return domain.ErrForbidden
	case KindUnavailable:
		return fmt.Errorf("diagnostics backend: %w", domain.ErrUnavailable)
	case KindStatus:
		return status.Error(codes.ResourceExhausted, "diagnostics quota exceeded")
	case KindInternal:
		return errors.New("diagnostics: unexpected failure")
	case KindPanic:
		panic("diagnostics: requested panic")
	default:
		return &domain.ValidationError{Field: "value", Reason: fmt.Sprintf("unknown failure kind %q", kind)}
	}
}
