// Package server composes the gateway's listeners.
package server

import (
	"context"
	"net/http"
	"time"

	"authgate/internal/httpapi"
	"authgate/internal/observability/logging"
	"authgate/internal/pgwire"
)

// Server runs the pgwire listener, the HTTP query listener, and the metrics
// server.
type Server struct {
	pg              *pgwire.Server
	httpAPI         *httpapi.Server
	metricsServer   *http.Server
	logger          *logging.Logger
	shutdownTimeout time.Duration
}

// New creates a server from already-constructed listeners.
func New(pg *pgwire.Server, httpAPI *httpapi.Server, metricsAddr string, metricsHandler http.Handler, logger *logging.Logger, shutdownTimeout time.Duration) *Server {
	return &Server{
		pg:      pg,
		httpAPI: httpAPI,
		metricsServer: &http.Server{
			Addr:              metricsAddr,
			Handler:           metricsHandler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:          logger.WithModule("server"),
		shutdownTimeout: shutdownTimeout,
	}
}

// Start starts all listeners.
func (s *Server) Start() error {
	go func() {
		s.logger.Info("Starting metrics server", "address", s.metricsServer.Addr)
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server failed", logging.Err(err))
		}
	}()

	if err := s.pg.Start(); err != nil {
		return err
	}
	return s.httpAPI.Start()
}

// Stop stops all listeners gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping servers", "timeout", s.shutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shut down metrics server", logging.Err(err))
	}
	if err := s.httpAPI.Stop(shutdownCtx); err != nil {
		s.logger.Error("Failed to shut down HTTP listener", logging.Err(err))
	}
	if err := s.pg.Stop(shutdownCtx); err != nil {
		s.logger.Error("Failed to shut down pgwire listener", logging.Err(err))
		return err
	}

	s.logger.Info("Servers stopped")
	return nil
}
