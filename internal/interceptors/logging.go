package interceptors

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/grpcadvice/internal/call"
)

const (
	requestIDKey = "x-request-id"
)

type requestIDCtxKey struct{}

// RequestIDFromContext returns the request id assigned by LoggingInterceptor.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey{}).(string)
	return id
}

func LoggingInterceptor(logger *zap.Logger) call.ServerInterceptor {
	return call.InterceptorFunc(func(c call.ServerCall, md metadata.MD, next call.CallHandler) call.StartResult {
		start := time.Now()
		method := c.Method()
		requestID := getOrGenerateRequestID(md)

		logger.Info("gRPC request started",
			zap.String("method", method),
			zap.String("request_id", requestID),
		)

		ctx := context.WithValue(c.Context(), requestIDCtxKey{}, requestID)

		return track(c, ctx, md, next, func(st *status.Status) {
			duration := time.Since(start)
			if st.Code() != codes.OK {
				logger.Error("gRPC request failed",
					zap.String("method", method),
					zap.String("request_id", requestID),
					zap.Duration("duration", duration),
					zap.String("code", st.Code().String()),
					zap.String("message", st.Message()),
				)
				return
			}
			logger.Info("gRPC request completed",
				zap.String("method", method),
				zap.String("request_id", requestID),
				zap.Duration("duration", duration),
			)
		})
	})
}

func getOrGenerateRequestID(md metadata.MD) string {
	requestIDs := md.Get(requestIDKey)
	if len(requestIDs) > 0 && requestIDs[0] != "" {
		return requestIDs[0]
	}

	return uuid.New().String()
}
