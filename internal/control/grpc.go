package control

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/minhvu/warden/internal/scheduler"
)

// GRPCServer mirrors the scheduler state onto the standard gRPC health
// service: SERVING while the loop runs, NOT_SERVING otherwise. Cluster
// tooling that speaks grpc.health.v1 can probe the agent directly.
type GRPCServer struct {
	sched  *scheduler.Scheduler
	srv    *grpc.Server
	health *grpchealth.Server
	port   int
}

func NewGRPCServer(sched *scheduler.Scheduler, port int) *GRPCServer {
	g := &GRPCServer{
		sched:  sched,
		srv:    grpc.NewServer(),
		health: grpchealth.NewServer(),
		port:   port,
	}
	healthpb.RegisterHealthServer(g.srv, g.health)
	return g
}

// Start serves until Stop is called, refreshing the serving status from
// the scheduler state in the background.
func (g *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go g.refresh(ctx)
	return g.srv.Serve(lis)
}

func (g *GRPCServer) refresh(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if g.sched.State() == scheduler.StateRunning {
			status = healthpb.HealthCheckResponse_SERVING
		}
		g.health.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.srv.GracefulStop()
}
