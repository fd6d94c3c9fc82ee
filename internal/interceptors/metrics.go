package interceptors

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmehra2102/grpcadvice/internal/call"
)

var (
	grpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "code"},
	)

	grpcRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grpc_request_duration_seconds",
			Help:    "Histogram of gRPC request durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	grpcActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "grpc_active_requests",
			Help: "Number of active gRPC requests",
		},
		[]string{"method"},
	)

	grpcSetupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_advice_setup_failures_total",
			Help: "Calls dropped because their listener could not be created",
		},
		[]string{"method"},
	)
)

func MetricsInterceptor() call.ServerInterceptor {
	return call.InterceptorFunc(func(c call.ServerCall, md metadata.MD, next call.CallHandler) call.StartResult {
		start := time.Now()
		method := c.Method()

		grpcActiveRequests.WithLabelValues(method).Inc()

		return track(c, nil, md, next, func(st *status.Status) {
			grpcActiveRequests.WithLabelValues(method).Dec()
			grpcRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
			grpcRequestsTotal.WithLabelValues(method, st.Code().String()).Inc()
		})
	})
}
