package interceptors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/grpcadvice/internal/call"
	"github.com/dmehra2102/grpcadvice/internal/call/calltest"
	"github.com/dmehra2102/grpcadvice/pkg/auth"
)

const testSecret = "test-secret"

// closingHandler closes the call on half-close with st.
func closingHandler(st *status.Status, seen *call.ServerCall) call.CallHandler {
	return call.CallHandlerFunc(func(c call.ServerCall, _ metadata.MD) (call.Listener, error) {
		if seen != nil {
			*seen = c
		}
		return call.ListenerFuncs{
			HalfClose: func() error { return c.Close(st, nil) },
		}, nil
	})
}

func TestLoggingInterceptor_LogsStartAndCompletion(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	c := calltest.New(context.Background(), "/svc/Logging")
	md := metadata.Pairs(requestIDKey, "req-123")

	var seen call.ServerCall
	res := LoggingInterceptor(zap.New(core)).InterceptCall(c, md, closingHandler(status.New(codes.OK, ""), &seen))
	require.True(t, res.OK())

	assert.Equal(t, "req-123", RequestIDFromContext(seen.Context()))

	l := res.Listener()
	require.NoError(t, l.OnHalfClose())
	require.NoError(t, l.OnComplete())

	assert.Equal(t, 1, logs.FilterMessage("gRPC request started").Len())
	completed := logs.FilterMessage("gRPC request completed").All()
	require.Len(t, completed, 1)
	assert.Equal(t, "req-123", completed[0].ContextMap()["request_id"])
}

func TestLoggingInterceptor_LogsFailureCode(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	c := calltest.New(context.Background(), "/svc/LoggingFail")

	l := LoggingInterceptor(zap.New(core)).
		InterceptCall(c, nil, closingHandler(status.New(codes.NotFound, "missing"), nil)).
		Listener()
	require.NoError(t, l.OnHalfClose())
	require.NoError(t, l.OnComplete())
	require.NoError(t, l.OnComplete())

	failed := logs.FilterMessage("gRPC request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "NotFound", failed[0].ContextMap()["code"])
}

func TestLoggingInterceptor_GeneratesRequestID(t *testing.T) {
	t.Parallel()

	c := calltest.New(context.Background(), "/svc/LoggingID")

	var seen call.ServerCall
	LoggingInterceptor(zap.NewNop()).InterceptCall(c, metadata.MD{}, closingHandler(nil, &seen))

	assert.NotEmpty(t, RequestIDFromContext(seen.Context()))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestLoggingInterceptor_DroppedCallIsReported(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	c := calltest.New(context.Background(), "/svc/LoggingDropped")

	handler := call.Intercept(
		call.CallHandlerFunc(func(call.ServerCall, metadata.MD) (call.Listener, error) {
			panic("setup")
		}),
		LoggingInterceptor(zap.New(core)),
		NewExceptionInterceptor(&MockExceptionHandler{}, nil),
	)

	l, err := handler.StartCall(c, nil)
	require.NoError(t, err)
	require.NoError(t, l.OnComplete())

	failed := logs.FilterMessage("gRPC request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "Internal", failed[0].ContextMap()["code"])
}

func TestMetricsInterceptor_CountsClosedCalls(t *testing.T) {
	t.Parallel()

	const method = "/svc/Metrics"
	c := calltest.New(context.Background(), method)

	l := MetricsInterceptor().InterceptCall(c, nil, closingHandler(status.New(codes.AlreadyExists, "dup"), nil)).Listener()
	assert.Equal(t, 1.0, testutil.ToFloat64(grpcActiveRequests.WithLabelValues(method)))

	require.NoError(t, l.OnHalfClose())
	require.NoError(t, l.OnComplete())

	assert.Equal(t, 1.0, testutil.ToFloat64(grpcRequestsTotal.WithLabelValues(method, "AlreadyExists")))
	assert.Equal(t, 0.0, testutil.ToFloat64(grpcActiveRequests.WithLabelValues(method)))
}

func TestMetricsInterceptor_CancelledCall(t *testing.T) {
	t.Parallel()

	const method = "/svc/MetricsCancel"
	c := calltest.New(context.Background(), method)

	l := MetricsInterceptor().InterceptCall(c, nil, closingHandler(nil, nil)).Listener()
	require.NoError(t, l.OnCancel())

	assert.Equal(t, 1.0, testutil.ToFloat64(grpcRequestsTotal.WithLabelValues(method, "Canceled")))
}

func TestMetricsInterceptor_FailedStart(t *testing.T) {
	t.Parallel()

	const method = "/svc/MetricsFailed"
	c := calltest.New(context.Background(), method)

	res := MetricsInterceptor().InterceptCall(c, nil, startWith(nil, errors.New("no listener")))
	assert.False(t, res.OK())
	assert.Equal(t, 1.0, testutil.ToFloat64(grpcRequestsTotal.WithLabelValues(method, "Internal")))
	assert.Equal(t, 0.0, testutil.ToFloat64(grpcActiveRequests.WithLabelValues(method)))
}

func TestExceptionInterceptor_CountsSetupFailures(t *testing.T) {
	t.Parallel()

	const method = "/svc/SetupFailures"
	c := calltest.New(context.Background(), method)

	NewExceptionInterceptor(&MockExceptionHandler{}, nil).InterceptCall(c, nil, startWith(nil, errors.New("x")))
	assert.Equal(t, 1.0, testutil.ToFloat64(grpcSetupFailures.WithLabelValues(method)))
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestAuthInterceptor(t *testing.T) {
	t.Parallel()

	valid := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"user_id":   "u-1",
		"tenant_id": "t-1",
		"roles":     []any{"operator", 7},
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	wrongKey := signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"user_id": "u-1"})
	noUser := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"tenant_id": "t-1"})
	expired := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"user_id": "u-1",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})

	tests := []struct {
		name     string
		method   string
		md       metadata.MD
		wantCode codes.Code
		started  bool
	}{
		{name: "valid token", method: "/svc/Auth", md: metadata.Pairs("authorization", "Bearer "+valid), started: true},
		{name: "public method", method: "/grpc.health.v1.Health/Check", md: metadata.MD{}, started: true},
		{name: "missing header", method: "/svc/Auth", md: metadata.MD{}, wantCode: codes.Unauthenticated},
		{name: "not bearer", method: "/svc/Auth", md: metadata.Pairs("authorization", valid), wantCode: codes.Unauthenticated},
		{name: "wrong key", method: "/svc/Auth", md: metadata.Pairs("authorization", "Bearer "+wrongKey), wantCode: codes.Unauthenticated},
		{name: "no user", method: "/svc/Auth", md: metadata.Pairs("authorization", "Bearer "+noUser), wantCode: codes.Unauthenticated},
		{name: "expired", method: "/svc/Auth", md: metadata.Pairs("authorization", "Bearer "+expired), wantCode: codes.Unauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := calltest.New(context.Background(), tt.method)
			var seen call.ServerCall
			res := AuthInterceptor(testSecret).InterceptCall(c, tt.md, closingHandler(nil, &seen))
			require.True(t, res.OK())

			if !tt.started {
				assert.Nil(t, seen)
				require.True(t, c.Closed())
				assert.Equal(t, tt.wantCode, c.Status().Code())
				assert.Equal(t, call.Inert{}, res.Listener())
				return
			}

			require.NotNil(t, seen)
			assert.False(t, c.Closed())
		})
	}
}

func TestAuthInterceptor_PutsUserOnContext(t *testing.T) {
	t.Parallel()

	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"user_id":   "u-9",
		"tenant_id": "t-9",
		"roles":     []any{"admin"},
	})

	var seen call.ServerCall
	AuthInterceptor(testSecret).InterceptCall(
		calltest.New(context.Background(), "/svc/Auth"),
		metadata.Pairs("authorization", "Bearer "+token),
		closingHandler(nil, &seen),
	)

	require.NotNil(t, seen)
	userCtx, err := auth.UserContextFromContext(seen.Context())
	require.NoError(t, err)
	assert.Equal(t, "u-9", userCtx.UserID)
	assert.Equal(t, "t-9", userCtx.TenantID)
	assert.Equal(t, []string{"admin"}, userCtx.Roles)
}

func TestExtractRoles(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{}, extractRoles(nil))
	assert.Equal(t, []string{}, extractRoles("admin"))
	assert.Equal(t, []string{"a", "b"}, extractRoles([]any{"a", 1, "b"}))
}
