// Package health serves the gRPC health checking protocol for the coach.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the service reported alongside the overall "" status.
const ServiceName = "coach.Coach"

const pingTimeout = 5 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is a gRPC server exposing grpc.health.v1 with a status that
// follows the archive ping.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	pinger   Pinger
	interval time.Duration
	addr     net.Addr
}

// NewServer creates a health server. Status starts NOT_SERVING until the
// first check.
func NewServer(pinger Pinger, interval time.Duration) *Server {
	gs := grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
		Time:    2 * time.Minute,
		Timeout: 10 * time.Second,
	}))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{grpc: gs, health: hs, pinger: pinger, interval: interval}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Check pings the archive once and updates the served status.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.pinger.Ping(ctx); err != nil {
		slog.Warn("Archive ping failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.set(status)
	return status
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Addr is the listen address when started with Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Watch re-checks every interval until ctx is done.
func (s *Server) Watch(ctx context.Context) {
	s.Check(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Stop marks every service NOT_SERVING and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

// Start listens on addr and runs the server and its watcher until ctx is done.
func Start(ctx context.Context, addr string, pinger Pinger, interval time.Duration) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for gRPC health on %s: %w", addr, err)
	}

	s := NewServer(pinger, interval)
	s.addr = lis.Addr()
	go func() {
		slog.Info("gRPC health server listening", "addr", lis.Addr().String())
		if err := s.Serve(lis); err != nil {
			slog.Error("gRPC health server failed", "error", err)
		}
	}()
	go s.Watch(ctx)
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return s, nil
}
