package grpc_control

import (
	"context"
	"fmt"
	"net"

	"battery-observer/src/logger"
	"battery-observer/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// IngestService is the gRPC health service name that follows the event
// source: SERVING while streaming, NOT_SERVING otherwise.
const IngestService = "battery_observer.ingest"

// HealthService exposes ingestion liveness over the standard gRPC health
// protocol.
type HealthService struct {
	Health *health.Server
	Logger *logger.Logger

	server *grpc.Server
}

// -----------------------------------------------------------------------------

func NewHealthService(log *logger.Logger) *HealthService {
	h := health.NewServer()
	h.SetServingStatus(IngestService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthService{Health: h, Logger: log}
}

// -----------------------------------------------------------------------------

// ObserveState is an event source state listener.
func (s *HealthService) ObserveState(st models.ConnectionState) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if st == models.StateStreaming {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.Health.SetServingStatus(IngestService, status)
}

// -----------------------------------------------------------------------------

// Register attaches the health and reflection services to srv.
func (s *HealthService) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s.Health)
	reflection.Register(srv)
}

// -----------------------------------------------------------------------------

// Serve listens on addr and blocks until Stop is called or ctx ends.
func (s *HealthService) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, lis)
}

// -----------------------------------------------------------------------------

func (s *HealthService) ServeListener(ctx context.Context, lis net.Listener) error {
	s.server = grpc.NewServer()
	s.Register(s.server)

	go func() {
		<-ctx.Done()
		s.Health.Shutdown()
		s.server.GracefulStop()
	}()

	s.Logger.Info("Starting gRPC health server on %s", lis.Addr())
	return s.server.Serve(lis)
}
