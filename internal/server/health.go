package server

import (
	"context"
	"log/slog"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const defaultHealthInterval = 15 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type statusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// watchBackend reports the server as serving only while the giveaway backend answers.
func watchBackend(ctx context.Context, p pinger, hs statusSetter, interval time.Duration) {
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	check := func() {
		ctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err := p.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "server: backend ping failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}

		hs.SetServingStatus("", status)
	}

	check()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			check()
		}
	}
}
