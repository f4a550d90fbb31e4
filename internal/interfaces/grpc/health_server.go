// Package grpc serves the gRPC health protocol for the key manager.
package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/turtacn/clusterkeys/pkg/logger"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "clusterkeys.KeyManager"

// ReadinessChecker reports whether the key cache has been loaded.
type ReadinessChecker interface {
	Ready() bool
}

// HealthReporter mirrors the manager's readiness into the gRPC health service:
// NOT_SERVING until the first successful refresh, SERVING afterwards.
type HealthReporter struct {
	checker  ReadinessChecker
	health   *health.Server
	interval time.Duration
	log      logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHealthReporter creates a reporter polling checker every interval.
func NewHealthReporter(checker ReadinessChecker, interval time.Duration, log logger.Logger) *HealthReporter {
	if interval <= 0 {
		interval = time.Second
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthReporter{
		checker:  checker,
		health:   hs,
		interval: interval,
		log:      log.WithComponent("HealthReporter"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Server returns the health service implementation for registration.
func (r *HealthReporter) Server() *health.Server {
	return r.health
}

// Update sets the status from the current readiness.
func (r *HealthReporter) Update() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if r.checker.Ready() {
		st = healthpb.HealthCheckResponse_SERVING
	}
	r.health.SetServingStatus("", st)
	r.health.SetServingStatus(ServiceName, st)
}

// Run polls readiness until ctx is done or Stop is called.
func (r *HealthReporter) Run(ctx context.Context) {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Update()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.Update()
		}
	}
}

// Stop ends Run and marks every service NOT_SERVING. Run must have been started.
func (r *HealthReporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		<-r.doneCh
		r.health.Shutdown()
	})
}

// Server wraps a grpc.Server carrying the health service.
type Server struct {
	server   *grpc.Server
	reporter *HealthReporter
	log      logger.Logger
}

// NewServer creates a gRPC server with the interceptor chain and health service registered.
func NewServer(reporter *HealthReporter, log logger.Logger) *Server {
	s := grpc.NewServer(NewInterceptorChain(log).ServerOptions()...)
	healthpb.RegisterHealthServer(s, reporter.Server())
	return &Server{server: s, reporter: reporter, log: log.WithComponent("GRPCServer")}
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info(context.Background(), "Starting gRPC server", logger.String("address", lis.Addr().String()))
	return s.server.Serve(lis)
}

// Stop drains in-flight RPCs.
func (s *Server) Stop() {
	s.server.GracefulStop()
}
