// Package pgwire is the gateway's wire-protocol listener. It negotiates TLS
// per the configured transport mode, drives the authentication handshake,
// and answers a minimal query surface so clients can observe their
// authenticated identity.
package pgwire

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"

	"authgate/internal/auth"
	"authgate/internal/observability/logging"
	"authgate/internal/observability/metrics"
	"authgate/internal/tlsutil"
)

// Config holds pgwire listener configuration.
type Config struct {
	// Address is the address to listen on
	Address string

	// Mode is the transport mode for this listener
	Mode tlsutil.Mode

	// TLSConfig is the server TLS configuration; nil under ModeDisable
	TLSConfig *tls.Config

	// RequestPassword controls whether the startup handshake asks the client
	// for a cleartext password. Set when an identity provider is configured.
	RequestPassword bool
}

// Server accepts pgwire connections and authenticates each one
// independently. Connections are handled fully in parallel; the only shared
// state is the immutable configuration.
type Server struct {
	config        Config
	authenticator *auth.Authenticator
	logger        *logging.Logger
	metrics       *metrics.Collector

	ln     net.Listener
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a pgwire server.
func New(config Config, authenticator *auth.Authenticator, logger *logging.Logger, collector *metrics.Collector) *Server {
	return &Server{
		config:        config,
		authenticator: authenticator,
		logger:        logger.WithModule("pgwire"),
		metrics:       collector,
	}
}

// Start begins listening and accepting connections.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	s.ln = ln

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.logger.Info("Starting pgwire listener", "address", ln.Addr().String(), "mode", s.config.Mode.String())
	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return nil
}

// Addr returns the listener's bound address. Valid after Start.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("Accept failed", logging.Err(err))
			continue
		}
		s.metrics.RecordConnection(metrics.ProtocolPgwire)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Stop closes the listener and waits for in-flight connections, bounded by
// the context.
func (s *Server) Stop(ctx context.Context) error {
	if s.ln != nil {
		s.ln.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("pgwire listener stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
