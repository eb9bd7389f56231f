package commands

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

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"voice-ordering-service/internal/app"
	apihttp "voice-ordering-service/internal/http"
	"voice-ordering-service/internal/observability"
	"voice-ordering-service/internal/observability/metrics"
)

const healthServiceName = "voiceordering.OrderingService"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the voice ordering server",
	Long: `Run the voice ordering server.

Listeners:
  HTTP_PORT     session API (/v1/sessions, /v1/menu, /v1/cart, ...)
  GRPC_PORT     gRPC health checks and reflection
  METRICS_PORT  Prometheus /metrics, /healthz, /readyz`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	cfg := loadConfig()

	application, err := app.New(cfg)
	if err != nil {
		return err
	}
	log := application.Logger.With().Str("method", "serve").Logger()

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(observability.UnaryServerInterceptor(metrics.DefaultMetrics)),
		grpc.ChainStreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics)),
	)

	// Register gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(grpcServer)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           apihttp.NewRouter(application),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := observability.NewServer(":"+cfg.Service.MetricsPort, application.Ready)

	if err := application.Start(); err != nil {
		return err
	}
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	errs := make(chan error, 2)
	go func() {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("gRPC server started")
		if err := grpcServer.Serve(lis); err != nil {
			errs <- fmt.Errorf("grpc serve failed: %w", err)
		}
	}()
	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("HTTP session API started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http serve failed: %w", err)
		}
	}()
	metricsServer.Start()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case serveErr = <-errs:
		log.Error().Err(serveErr).Msg("Server failed")
	}

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown failed")
	}
	grpcServer.GracefulStop()
	application.Shutdown()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Metrics server shutdown failed")
	}
	return serveErr
}
