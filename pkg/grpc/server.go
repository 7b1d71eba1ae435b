// Package grpc runs a minimal gRPC endpoint next to the HTTP API. It
// serves the standard grpc.health.v1 service so load balancers and
// orchestrators can probe liveness without touching the HTTP surface.
package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/snapbuy/snapbuy/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server represents a gRPC server instance.
type Server struct {
	config  *Config
	log     logger.Logger
	grpcSrv *grpc.Server
	lis     net.Listener
	health  *health.Server
	mu      sync.RWMutex
	running bool
}

// New creates a new gRPC server with the given configuration.
func New(cfg *Config, log logger.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = logger.Global()
	}
	return &Server{config: cfg, log: log}, nil
}

// Start starts the gRPC server.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	lis, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	s.lis = lis
	s.grpcSrv = grpc.NewServer()

	if s.config.EnableReflection {
		reflection.Register(s.grpcSrv)
	}

	if s.config.EnableHealthCheck {
		s.health = health.NewServer()
		grpc_health_v1.RegisterHealthServer(s.grpcSrv, s.health)
		s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	}

	s.running = true

	go func() {
		if err := s.grpcSrv.Serve(lis); err != nil {
			s.log.Error("grpc server stopped", "error", err)
		}
	}()

	return nil
}

// Stop gracefully stops the gRPC server. If the context expires before
// in-flight RPCs drain, the server is stopped forcefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if s.health != nil {
		s.health.Shutdown()
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcSrv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcSrv.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}

	s.running = false
	return nil
}

// SetServing flips the health status for all registered services.
func (s *Server) SetServing(serving bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.health == nil {
		return
	}
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Address returns the server's listening address.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lis != nil {
		return s.lis.Addr().String()
	}
	return s.config.Address
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
