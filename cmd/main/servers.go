package main

import (
	"context"
	"fmt"
	"sync"

	"battery-observer/src/config"
	pb "battery-observer/src/grpc_control"
	"battery-observer/src/interfaces"
	"battery-observer/src/logger"
	"battery-observer/src/metrics"
	"battery-observer/src/models"
	"battery-observer/src/server"
)

// -----------------------------------------------------------------------------

// startServers starts the dashboard and, when a port is configured, the gRPC
// health server. Both stop when ctx is cancelled.
func startServers(
	ctx context.Context,
	wg *sync.WaitGroup,
	conf *config.Config,
	view interfaces.IReadingView,
	state func() models.ConnectionState,
	m *metrics.Metrics,
	appLogger *logger.Logger,
) (*server.DashboardServer, *pb.HealthService) {

	// 1. Dashboard
	dashboard := server.NewDashboardServer(conf.MConfig, view, state, m, logger.NewLogger(conf.MConfig, "DashboardServer"))
	go func() {
		if err := dashboard.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 2. gRPC health server
	health := pb.NewHealthService(logger.NewLogger(conf.MConfig, "HealthService"))
	if conf.GrpcPort == 0 {
		appLogger.Info("gRPC health server disabled")
		return dashboard, health
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		addr := fmt.Sprintf("%s:%d", conf.GrpcHost, conf.GrpcPort)
		if err := health.Serve(ctx, addr); err != nil {
			appLogger.Error("gRPC server failed: %v", err)
		}
	}()
	return dashboard, health
}
