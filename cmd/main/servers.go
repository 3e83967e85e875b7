package main

import (
	"fmt"
	"net"
	"time"

	"market-pipeline/src/config"
	pb "market-pipeline/src/grpc_control"
	"market-pipeline/src/interfaces"
	"market-pipeline/src/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// -----------------------------------------------------------------------------

// startServers starts the REST/websocket server and the gRPC control server.
// The returned grpc server is stopped by the caller.
func startServers(
	srv interfaces.IDataExchanger,
	pipeline interfaces.IPipeline,
	config *config.Config,
	configPath string,
	appLogger *logger.Logger,
) (*grpc.Server, error) {

	// 1. FastAPIServer
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}()

	// 2. gRPC Control Server
	port := config.GrpcPort
	if port == 0 {
		port = 50051 // Default fallback
	}
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", config.GrpcHost, port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for gRPC: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 5 * time.Minute,
			Time:              20 * time.Second,
			Timeout:           10 * time.Second,
		}),
	)
	controlService := pb.NewControlService(config, pipeline, configPath, appLogger.Named("ControlService"))
	pb.RegisterControlServer(grpcServer, controlService)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		appLogger.Info("Starting gRPC Control Server on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Error("gRPC server stopped: %v", err)
		}
	}()
	return grpcServer, nil
}
