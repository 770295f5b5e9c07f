package handler

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/inventory-tracker/internal/logger"
)

// ServiceName is the health service name reported alongside the overall ("")
// status.
const ServiceName = "inventory.v1.Inventory"

// GRPCHealth exposes grpc.health.v1.Health and keeps it in step with the
// database.
type GRPCHealth struct {
	server *health.Server
	db     Pinger
}

func NewGRPCHealth(db Pinger) *GRPCHealth {
	return &GRPCHealth{server: health.NewServer(), db: db}
}

func (g *GRPCHealth) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, g.server)
}

// Check pings the database once and publishes the result.
func (g *GRPCHealth) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := g.db.PingContext(pingCtx); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("database ping failed")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	g.server.SetServingStatus("", status)
	g.server.SetServingStatus(ServiceName, status)
	return status
}

// Watch re-checks every interval until ctx is done.
func (g *GRPCHealth) Watch(ctx context.Context, interval time.Duration) {
	g.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Check(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING so clients drain before stop.
func (g *GRPCHealth) Shutdown() {
	g.server.Shutdown()
}
