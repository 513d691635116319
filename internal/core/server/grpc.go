// Package server provides gRPC server lifecycle management.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/solatis/approvalgate/internal/core/api"
	"github.com/solatis/approvalgate/internal/core/auth"
	"github.com/solatis/approvalgate/internal/core/config"
)

// shutdownTimeout bounds graceful shutdown before connections are forced closed.
const shutdownTimeout = 30 * time.Second

// GRPCServer manages gRPC server lifecycle.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	config   config.ServerConfig
	logger   *zap.Logger
}

// NewGRPCServer creates gRPC server with interceptors and service registration.
// Interceptor order: logging, request timeout, authentication.
func NewGRPCServer(cfg config.ServerConfig, service api.ApprovalServiceServer, authenticator *auth.Authenticator, logger *zap.Logger) (*GRPCServer, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator cannot be nil")
	}
	if cfg.MaxConnections <= 0 || cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("max_connections and request_timeout must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []grpc.ServerOption{
		grpc.MaxConcurrentStreams(uint32(cfg.MaxConnections)),
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(logger),
			TimeoutInterceptor(cfg.RequestTimeout),
			authenticator.UnaryInterceptor(grpc_health_v1.Health_Check_FullMethodName),
		),
	}

	server := grpc.NewServer(opts...)
	api.RegisterApprovalServiceServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
		logger: logger,
	}, nil
}

// Start binds listener and serves gRPC requests.
// Context is provided for API consistency but Serve blocks until Shutdown is called.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves gRPC requests on an existing listener.
func (s *GRPCServer) Serve(listener net.Listener) error {
	s.listener = listener
	s.logger.Info("serving gRPC", zap.String("addr", listener.Addr().String()))
	return s.server.Serve(listener)
}

// Shutdown marks the server not serving and stops it gracefully,
// forcing a stop after 30 seconds or when ctx is done.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
