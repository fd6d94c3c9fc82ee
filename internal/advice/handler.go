package advice

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/grpcadvice/internal/call"
	"github.com/dmehra2102/grpcadvice/internal/domain"
	"github.com/dmehra2102/grpcadvice/internal/interceptors"
)

var (
	internalStatus      = status.New(codes.Internal, "internal server error")
	resolveFailedStatus = status.New(codes.Internal, "failed to handle exception")
)

// Option configures a Handler.
type Option func(*Handler)

// WithFallback sets the advice used when nothing in the registry matches
// and the error carries no gRPC status.
func WithFallback(fn Func) Option {
	return func(h *Handler) {
		if fn != nil {
			h.fallback = fn
		}
	}
}

// WithJournal records every handled exception.
func WithJournal(j domain.Journal) Option {
	return func(h *Handler) {
		h.journal = j
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Handler closes calls that failed in flight with a status resolved from
// the registry.
type Handler struct {
	registry *Registry
	fallback Func
	journal  domain.Journal
	logger   *zap.Logger
}

var _ interceptors.ExceptionHandler = (*Handler)(nil)

func NewHandler(registry *Registry, opts ...Option) *Handler {
	if registry == nil {
		registry = NewRegistry()
	}
	h := &Handler{
		registry: registry,
		fallback: func(context.Context, error) (*status.Status, metadata.MD) {
			return internalStatus, nil
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleException implements interceptors.ExceptionHandler.
func (h *Handler) HandleException(c call.ServerCall, cerr *call.CallError) {
	ctx := c.Context()
	method := c.Method()

	if c.Closed() {
		h.logger.Debug("exception raised after call was closed",
			zap.String("method", method),
			zap.String("phase", cerr.Phase.String()),
			zap.Error(cerr.Cause),
		)
		return
	}

	st, trailer := h.resolve(ctx, cerr.Cause)

	span := trace.SpanFromContext(ctx)
	span.RecordError(cerr.Cause, trace.WithAttributes(
		attribute.String("rpc.advice.phase", cerr.Phase.String()),
		attribute.Bool("rpc.advice.panic", cerr.Panicked()),
	))
	span.SetStatus(otelcodes.Error, st.Message())

	grpcAdviceExceptions.WithLabelValues(method, cerr.Phase.String(), st.Code().String()).Inc()

	fields := []zap.Field{
		zap.String("method", method),
		zap.String("phase", cerr.Phase.String()),
		zap.String("code", st.Code().String()),
		zap.Error(cerr.Cause),
	}
	if id := interceptors.RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	switch {
	case cerr.Panicked():
		fields = append(fields, zap.Any("panic", cerr.Panic), zap.ByteString("stack", cerr.Stack))
		h.logger.Error("panic handled", fields...)
	case st.Code() == codes.Internal || st.Code() == codes.Unknown:
		h.logger.Error("exception handled", fields...)
	default:
		h.logger.Warn("exception handled", fields...)
	}

	if err := c.Close(st, trailer); err != nil {
		h.logger.Debug("failed to close call", zap.String("method", method), zap.Error(err))
		return
	}

	h.record(ctx, method, cerr, st)
}

// resolve never returns a nil status.
func (h *Handler) resolve(ctx context.Context, err error) (st *status.Status, trailer metadata.MD) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("advice panicked",
				zap.Any("panic", r),
				zap.NamedError("original", err),
			)
			st, trailer = resolveFailedStatus, nil
		}
	}()

	if st, trailer, ok := h.registry.Resolve(ctx, err); ok {
		if st == nil {
			h.logger.Error("advice returned no status", zap.NamedError("original", err))
			return resolveFailedStatus, nil
		}
		return st, trailer
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, err.Error()), nil
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, err.Error()), nil
	}

	if st, ok := status.FromError(err); ok {
		return st, nil
	}

	st, trailer = h.fallback(ctx, err)
	if st == nil {
		return internalStatus, nil
	}
	return st, trailer
}

func (h *Handler) record(ctx context.Context, method string, cerr *call.CallError, st *status.Status) {
	if h.journal == nil {
		return
	}

	event := domain.NewExceptionEvent(
		method,
		cerr.Phase.String(),
		st.Code().String(),
		st.Message(),
		fmt.Sprint(cerr.Cause),
		cerr.Panicked(),
	)
	event.RequestID = interceptors.RequestIDFromContext(ctx)

	if err := h.journal.Record(ctx, event); err != nil {
		h.logger.Warn("failed to record exception",
			zap.String("method", method),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
}
