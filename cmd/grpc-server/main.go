package main

import (
	"context"
	"net"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"swrfmods/internal/catalog"
	"swrfmods/internal/grpcserver"
	"swrfmods/pkg/utils"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger, err := utils.NewLogger(cfg.LogLevel, cfg.Dev)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	var src catalog.Source = catalog.NewFileSource(cfg.Data.File)
	if cfg.Data.URL != "" {
		src = catalog.NewHTTPSource(cfg.Data.URL)
	}
	svc := grpcserver.NewServer(catalog.NewLoader(src, logger), logger)

	listener, err := net.Listen("tcp", cfg.HTTP.GRPCAddr)
	if err != nil {
		logger.Fatal("grpc listen failed", zap.String("addr", cfg.HTTP.GRPCAddr), zap.Error(err))
	}

	grpcServer := grpc.NewServer()
	grpcserver.RegisterCatalogServer(grpcServer, svc)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("stopping grpc server")
		healthSrv.Shutdown()
		grpcServer.GracefulStop()
	}()

	logger.Info("grpc server listening", zap.String("addr", cfg.HTTP.GRPCAddr))
	if err := grpcServer.Serve(listener); err != nil {
		logger.Fatal("grpc server stopped", zap.Error(err))
	}
}
