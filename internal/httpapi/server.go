// Package httpapi is the gateway's HTTP query listener. It serves plaintext
// and TLS on one port, applies the transport policy and the default-identity
// rules, and answers a minimal /sql surface so clients can observe their
// authenticated identity.
package httpapi

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"authgate/internal/auth"
	"authgate/internal/observability"
	"authgate/internal/observability/logging"
	"authgate/internal/observability/metrics"
	"authgate/internal/tlsutil"
)

// Config holds HTTP listener configuration.
type Config struct {
	// Address is the address to listen on
	Address string

	// Mode is the transport mode for this listener
	Mode tlsutil.Mode

	// TLSConfig is the server TLS configuration; nil under ModeDisable
	TLSConfig *tls.Config

	// DefaultUser is the fixed superuser identity assumed when no identity
	// provider is configured and the transport mode does not bind identity
	// to the certificate.
	DefaultUser string

	// ProviderConfigured controls whether Authorization headers are
	// consulted. When false they are ignored entirely.
	ProviderConfigured bool
}

// Server is the HTTP listener.
type Server struct {
	config        Config
	authenticator *auth.Authenticator
	obs           *observability.Provider
	logger        *logging.Logger
	metrics       *metrics.Collector

	httpServer *http.Server
	ln         net.Listener
}

// New creates an HTTP server.
func New(config Config, authenticator *auth.Authenticator, obs *observability.Provider) *Server {
	return &Server{
		config:        config,
		authenticator: authenticator,
		obs:           obs,
		logger:        obs.Logger.WithModule("httpapi"),
		metrics:       obs.Metrics,
	}
}

// Start begins listening. When TLS is enabled the listener sniffs each
// connection's first byte: TLS handshakes are unwrapped, everything else is
// served as plaintext HTTP so the policy layer can answer with a protocol
// error instead of a hung socket.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	s.ln = ln

	serveLn := ln
	if s.config.TLSConfig != nil {
		serveLn = newSniffListener(ln, s.config.TLSConfig)
	}

	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ConnState: func(_ net.Conn, state http.ConnState) {
			if state == http.StateNew {
				s.metrics.RecordConnection(metrics.ProtocolHTTP)
			}
		},
	}

	s.logger.Info("Starting HTTP listener", "address", ln.Addr().String(), "mode", s.config.Mode.String())
	go func() {
		if err := s.httpServer.Serve(serveLn); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server failed", logging.Err(err))
		}
	}()
	return nil
}

// Addr returns the listener's bound address. Valid after Start.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("HTTP listener stopped")
	return nil
}
