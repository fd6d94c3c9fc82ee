package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/dmehra2102/grpcadvice/internal/advice"
	"github.com/dmehra2102/grpcadvice/internal/app"
	"github.com/dmehra2102/grpcadvice/internal/call"
	"github.com/dmehra2102/grpcadvice/internal/grpcbridge"
	"github.com/dmehra2102/grpcadvice/internal/infrastructure/config"
	"github.com/dmehra2102/grpcadvice/internal/infrastructure/postgres"
	"github.com/dmehra2102/grpcadvice/internal/interceptors"
	"github.com/dmehra2102/grpcadvice/pkg/auth"
)

const (
	serviceName    = "grpc-advice"
	serviceVersion = "1.0.0"
)

func main() {
	// Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	obs := cfg.GetObservabilityConfig()

	// Initialize logger
	logger := initLogger(obs, cfg.IsProduction())
	defer logger.Sync()

	logger.Info("Starting advice server",
		zap.String("version", serviceVersion),
		zap.String("environment", cfg.Environment),
	)

	// Initialize OpenTelemetry
	if obs.EnableTracing {
		shutdown, err := initTracer(obs.OTLPEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer shutdown(context.Background())
	}

	// Exception journal
	handlerOpts := []advice.Option{advice.WithLogger(logger)}
	var journal *postgres.Journal
	if cfg.JournalEnabled() {
		dbCfg := cfg.GetDatabaseConfig()
		db, err := postgres.Open(dbCfg)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer db.Close()

		if err := postgres.RunMigrations(db, dbCfg.MigrationsPath); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}

		journal = postgres.NewJournal(db, cfg.JournalBufferSize, logger)
		handlerOpts = append(handlerOpts, advice.WithJournal(journal))
	}

	registry := advice.NewRegistry()
	if err := app.RegisterDomainAdvice(registry); err != nil {
		logger.Fatal("Failed to register advice", zap.Error(err))
	}
	exceptionHandler := advice.NewHandler(registry, handlerOpts...)

	grpcServer := initGRPCServer(cfg, logger, exceptionHandler)

	// Service Registry
	var authz *auth.Authorizer
	if cfg.AuthEnabled {
		authz = auth.NewAuthorizer()
	}
	app.RegisterDiagnosticsServer(grpcServer, app.NewDiagnosticsServiceServer(logger, authz))

	// Register health service
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if cfg.EnableReflection || cfg.IsDevelopment() {
		reflection.Register(grpcServer)
	}

	var metricsServer *http.Server
	if obs.EnableMetrics {
		metricsServer = startMetricsServer(cfg.MetricsPort, logger)
	}

	// Start server
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		logger.Fatal("Failed to listen", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Server starting", zap.Int("port", cfg.Port))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("Failed to serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")
	healthServer.Shutdown()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Server stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout exceeded, forcing stop")
		grpcServer.Stop()
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to stop metrics server", zap.Error(err))
		}
	}
	if journal != nil {
		if err := journal.Close(shutdownCtx); err != nil {
			logger.Warn("Exception journal not fully drained", zap.Error(err))
		}
	}
}

func initLogger(obs config.ObservabilityConfig, production bool) *zap.Logger {
	var zcfg zap.Config
	if production {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(obs.LogLevel)
	if err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	zcfg.Encoding = obs.LogFormat

	logger, err := zcfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	return logger
}

func initTracer(endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		)),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func startMetricsServer(port int, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics server starting", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return srv
}

func initGRPCServer(cfg *config.Config, logger *zap.Logger, handler interceptors.ExceptionHandler) *grpc.Server {
	chain := []call.ServerInterceptor{
		interceptors.LoggingInterceptor(logger),
		interceptors.MetricsInterceptor(),
		interceptors.NewExceptionInterceptor(handler, logger),
	}
	if cfg.AuthEnabled {
		chain = append(chain, interceptors.AuthInterceptor(cfg.JWTSecret))
	}

	opts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     15 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Minute,
			Time:                  5 * time.Minute,
			Timeout:               1 * time.Minute,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             1 * time.Minute,
			PermitWithoutStream: true,
		}),

		grpc.MaxRecvMsgSize(4 * 1024 * 1024),
		grpc.MaxSendMsgSize(4 * 1024 * 1024),

		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	}
	opts = append(opts, grpcbridge.ServerOptions(chain...)...)

	// TLS configuration for production
	if cfg.TLSEnabled {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			logger.Fatal("Failed to load TLS credentials", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}

	return grpc.NewServer(opts...)
}
