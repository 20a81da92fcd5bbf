package utilities_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vasapolrittideah/taskdash-api/shared/utilities"
)

func servingStatus(hs grpc_health_v1.HealthServer) grpc_health_v1.HealthCheckResponse_ServingStatus {
	resp, err := hs.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN
	}

	return resp.GetStatus()
}

func TestRegisterHealthServer_StartsServing(t *testing.T) {
	hs := utilities.RegisterHealthServer(grpc.NewServer())

	require.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, servingStatus(hs))
}

func TestWatchHealth_FlipsStatus(t *testing.T) {
	hs := utilities.RegisterHealthServer(grpc.NewServer())
	logger := zerolog.Nop()

	var failing atomic.Bool
	failing.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		utilities.WatchHealth(ctx, &logger, hs, 10*time.Millisecond, func(context.Context) error {
			if failing.Load() {
				return errors.New("mongodb unreachable")
			}
			return nil
		})
		close(done)
	}()

	require.Eventually(t, func() bool {
		return servingStatus(hs) == grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)

	failing.Store(false)

	require.Eventually(t, func() bool {
		return servingStatus(hs) == grpc_health_v1.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
