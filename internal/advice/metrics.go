package advice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var grpcAdviceExceptions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "grpc_advice_exceptions_total",
		Help: "Exceptions turned into a response by the advice handler",
	},
	[]string{"method", "phase", "code"},
)
