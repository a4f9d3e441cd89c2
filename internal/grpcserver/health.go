// Package grpcserver hosts the gRPC health plane. Its serving status follows
// a periodic probe of the backing store.
package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside "".
const ServiceName = "doorkeeper.v1.Doorkeeper"

// Probe reports whether the process can serve requests.
type Probe func(ctx context.Context) error

type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	probe      Probe
	interval   time.Duration
	logger     log.FieldLogger
}

// New listens on addr. A nil probe always reports serving.
func New(addr string, probe Probe, interval time.Duration, logger log.FieldLogger) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		probe:      probe,
		interval:   interval,
		logger:     logger,
	}, nil
}

func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Check runs the probe once and updates the serving status.
func (s *Server) Check(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if s.probe != nil {
		ctx, cancel := context.WithTimeout(ctx, s.interval)
		defer cancel()
		if err := s.probe(ctx); err != nil {
			s.logger.WithError(err).Warn("health probe failed")
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve runs until ctx is cancelled, then stops gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.Check(ctx)

	s.logger.WithField("addr", s.Addr()).Info("grpc health server listening")
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Check(ctx)
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpcServer.GracefulStop()
			return serveResult(<-serveErr)
		case err := <-serveErr:
			return serveResult(err)
		}
	}
}

func serveResult(err error) error {
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("serve gRPC: %w", err)
}
