package utilities

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// RegisterHealthServer registers the gRPC health check service and returns it so the
// caller can flip the serving status.
func RegisterHealthServer(grpcServer *grpc.Server) *health.Server {
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	return healthServer
}

// WatchHealth probes check every interval and mirrors the result into healthServer
// until ctx is done.
func WatchHealth(
	ctx context.Context,
	logger *zerolog.Logger,
	healthServer *health.Server,
	interval time.Duration,
	check func(context.Context) error,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			healthServer.Shutdown()
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			err := check(probeCtx)
			cancel()

			switch {
			case err != nil && serving:
				logger.Warn().Err(err).Msg("health check failed, reporting NOT_SERVING")
				healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
				serving = false
			case err == nil && !serving:
				logger.Info().Msg("health check recovered, reporting SERVING")
				healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
				serving = true
			}
		}
	}
}
