/**
 * HTTP server runner shared by every binary
 *
 * Serves the chi router with the configured timeouts, optionally exposes
 * the standard gRPC health service for orchestrators that probe over gRPC,
 * and drains both on context cancellation.
 */

package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/adverant/nexus/doctranslate/internal/config"
	"github.com/adverant/nexus/doctranslate/internal/logging"
)

// Server runs one service's HTTP API and optional gRPC health endpoint
type Server struct {
	service string
	cfg     config.ServerConfig
	http    *http.Server
	grpc    *grpc.Server
	health  *health.Server
	logger  *logging.Logger
}

// New creates a server for handler. service names the gRPC health entry.
func New(service string, cfg config.ServerConfig, handler http.Handler) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		http: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		logger: logging.NewLogger("server"),
	}

	if cfg.GRPCHealthPort > 0 {
		s.health = health.NewServer()
		s.grpc = grpc.NewServer()
		healthpb.RegisterHealthServer(s.grpc, s.health)
	}

	return s
}

// Run listens on the configured ports and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}

	var grpcLn net.Listener
	if s.grpc != nil {
		addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.GRPCHealthPort)
		grpcLn, err = net.Listen("tcp", addr)
		if err != nil {
			httpLn.Close()
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
	}

	return s.Serve(ctx, httpLn, grpcLn)
}

// Serve serves on the given listeners until ctx is cancelled or the HTTP
// server fails. grpcLn is ignored when the gRPC health service is disabled.
func (s *Server) Serve(ctx context.Context, httpLn, grpcLn net.Listener) error {
	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("HTTP server listening", "addr", httpLn.Addr().String(), "service", s.service)
		if err := s.http.Serve(httpLn); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if s.grpc != nil && grpcLn != nil {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		s.health.SetServingStatus(s.service, healthpb.HealthCheckResponse_SERVING)

		go func() {
			s.logger.Info("gRPC health server listening", "addr", grpcLn.Addr().String())
			if err := s.grpc.Serve(grpcLn); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc health server: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown requested", "service", s.service)
	case serveErr = <-errCh:
		s.logger.Error("Server error", "error", serveErr)
	}

	return stderrors.Join(serveErr, s.shutdown())
}

func (s *Server) shutdown() error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.grpc != nil {
		// NOT_SERVING before the listener goes away
		s.health.Shutdown()
		s.grpc.GracefulStop()
	}

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("Graceful shutdown failed", "error", err)
		if cerr := s.http.Close(); cerr != nil {
			s.logger.Error("Forced shutdown failed", "error", cerr)
		}
		return fmt.Errorf("http shutdown: %w", err)
	}

	s.logger.Info("Server stopped", "service", s.service)
	return nil
}
