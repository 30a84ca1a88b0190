// Package grpc exposes the dependency health of the business API over the
// standard gRPC health protocol.
package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ronl/business-api/internal/application/service"
	"github.com/ronl/business-api/pkg/constants"
	"github.com/ronl/business-api/pkg/logger"
)

const defaultProbeInterval = 15 * time.Second

// HealthServer serves grpc.health.v1 and keeps its statuses in step with a
// periodic dependency probe. The empty service name reports readiness; the
// ServiceName entry reports the composite health.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	svc      service.HealthAppService
	interval time.Duration
	log      logger.Logger
}

// NewHealthServer creates the server. A non-positive interval uses the default.
func NewHealthServer(svc service.HealthAppService, chain *InterceptorChain, interval time.Duration, log logger.Logger) *HealthServer {
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	var opts []grpc.ServerOption
	if chain != nil {
		opts = append(opts, chain.ChainUnaryInterceptors())
	}

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(constants.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	server := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(server, hs)

	return &HealthServer{
		server:   server,
		health:   hs,
		svc:      svc,
		interval: interval,
		log:      log.WithComponent("grpc"),
	}
}

// Refresh probes the dependencies once and publishes the result.
func (s *HealthServer) Refresh(ctx context.Context) {
	ready := healthpb.HealthCheckResponse_SERVING
	if err := s.svc.Ready(ctx); err != nil {
		ready = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", ready)

	overall := healthpb.HealthCheckResponse_SERVING
	if report := s.svc.Check(ctx); !report.Healthy() {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(constants.ServiceName, overall)
}

// Run refreshes the statuses every interval until ctx is done.
func (s *HealthServer) Run(ctx context.Context) {
	s.Refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Serve accepts connections on lis until Stop.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.log.Info(context.Background(), "Starting gRPC health server", logger.String("address", lis.Addr().String()))
	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// Stop marks every service NOT_SERVING and drains open calls.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
