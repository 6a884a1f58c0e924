package pgwire

import (
	"context"
	"crypto/tls"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgproto3"

	"authgate/internal/auth"
	"authgate/internal/observability/logging"
	"authgate/internal/observability/metrics"
	"authgate/internal/tlsutil"
)

// sslResponseAccept and sslResponseRefuse are the single-byte answers to an
// SSLRequest.
const (
	sslResponseAccept = 'S'
	sslResponseRefuse = 'N'
)

// handleConn drives one connection through startup negotiation,
// authentication, and the query loop. Every failure is terminal for the
// attempt; nothing is retried.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := s.logger.WithConn(logging.NewConnID())

	backend := pgproto3.NewBackend(conn, conn)
	tlsNegotiated := false

	var startup *pgproto3.StartupMessage
startupLoop:
	for {
		msg, err := backend.ReceiveStartupMessage()
		if err != nil {
			logger.Debug("Startup receive failed", logging.Err(err))
			return
		}
		switch m := msg.(type) {
		case *pgproto3.SSLRequest:
			if s.config.TLSConfig == nil || tlsNegotiated {
				// Refusal is transport-level: the client sees 'N' and either
				// proceeds in plaintext or gives up with a handshake error.
				if _, err := conn.Write([]byte{sslResponseRefuse}); err != nil {
					return
				}
				continue
			}
			if _, err := conn.Write([]byte{sslResponseAccept}); err != nil {
				return
			}
			tlsConn := tls.Server(conn, s.config.TLSConfig)
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				// Chain failures abort here, before any credential is read.
				logger.Debug("TLS handshake failed", logging.Err(err))
				return
			}
			conn = tlsConn
			backend = pgproto3.NewBackend(conn, conn)
			tlsNegotiated = true
		case *pgproto3.GSSEncRequest:
			if _, err := conn.Write([]byte{sslResponseRefuse}); err != nil {
				return
			}
		case *pgproto3.CancelRequest:
			return
		case *pgproto3.StartupMessage:
			startup = m
			break startupLoop
		}
	}

	user := startup.Parameters["user"]
	logger = logger.With("user", user)

	transport := tlsutil.Enforce(s.config.Mode, tlsNegotiated)
	if transport.Kind == tlsutil.TLSRequiredButAbsent {
		s.reject(backend, logger, auth.Reject(auth.TLSRequired, user))
		return
	}

	cred := auth.NoCredential()
	if s.config.RequestPassword {
		password, ok := s.requestPassword(backend, logger)
		if !ok {
			return
		}
		cred = auth.PasswordCredential(password)
	}

	req := auth.Request{
		User:       user,
		Credential: cred,
		Transport:  transport,
	}
	if tlsConn, ok := conn.(*tls.Conn); ok {
		state := tlsConn.ConnectionState()
		req.CertCommonName, req.HasCert = tlsutil.PeerCommonName(&state)
	}

	identity, err := s.authenticator.Authenticate(ctx, req)
	if err != nil {
		authErr, ok := err.(*auth.Error)
		if !ok {
			authErr = auth.Reject(auth.InvalidCredential, user)
		}
		s.reject(backend, logger, authErr)
		return
	}

	s.metrics.RecordAuthentication(metrics.ProtocolPgwire, "ok")
	logger.Info("Connection authenticated", "identity", identity)

	if !s.completeStartup(backend, logger) {
		return
	}
	s.queryLoop(backend, logger, identity)
}

// requestPassword asks the client for a cleartext password and reads the
// response.
func (s *Server) requestPassword(backend *pgproto3.Backend, logger *logging.Logger) (string, bool) {
	backend.Send(&pgproto3.AuthenticationCleartextPassword{})
	if err := backend.Flush(); err != nil {
		return "", false
	}
	backend.SetAuthType(pgproto3.AuthTypeCleartextPassword)
	msg, err := backend.Receive()
	if err != nil {
		logger.Debug("Password receive failed", logging.Err(err))
		return "", false
	}
	passwordMsg, ok := msg.(*pgproto3.PasswordMessage)
	if !ok {
		logger.Debug("Unexpected message during password exchange")
		return "", false
	}
	return passwordMsg.Password, true
}

// reject renders the failure in protocol form and records the outcome.
func (s *Server) reject(backend *pgproto3.Backend, logger *logging.Logger, authErr *auth.Error) {
	s.metrics.RecordAuthentication(metrics.ProtocolPgwire, string(authErr.Kind))
	logger.Info("Connection rejected", "kind", string(authErr.Kind))
	backend.Send(errorResponse(authErr))
	if err := backend.Flush(); err != nil {
		logger.Debug("Failed to send rejection", logging.Err(err))
	}
}

// completeStartup finishes the handshake so drivers consider the session
// established.
func (s *Server) completeStartup(backend *pgproto3.Backend, logger *logging.Logger) bool {
	backend.Send(&pgproto3.AuthenticationOk{})
	backend.Send(&pgproto3.ParameterStatus{Name: "server_version", Value: "13.0.0"})
	backend.Send(&pgproto3.ParameterStatus{Name: "client_encoding", Value: "UTF8"})
	backend.Send(&pgproto3.BackendKeyData{ProcessID: 0, SecretKey: 0})
	backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
	if err := backend.Flush(); err != nil {
		logger.Debug("Failed to complete startup", logging.Err(err))
		return false
	}
	return true
}

// queryLoop answers the current-user probe so clients can observe the
// authenticated identity. Anything else is out of scope for the gateway.
func (s *Server) queryLoop(backend *pgproto3.Backend, logger *logging.Logger, identity string) {
	for {
		msg, err := backend.Receive()
		if err != nil {
			return
		}
		switch m := msg.(type) {
		case *pgproto3.Query:
			if isCurrentUserQuery(m.String) {
				backend.Send(&pgproto3.RowDescription{Fields: []pgproto3.FieldDescription{{
					Name:         []byte("current_user"),
					DataTypeOID:  25, // text
					DataTypeSize: -1,
					TypeModifier: -1,
				}}})
				backend.Send(&pgproto3.DataRow{Values: [][]byte{[]byte(identity)}})
				backend.Send(&pgproto3.CommandComplete{CommandTag: []byte("SELECT 1")})
			} else {
				backend.Send(&pgproto3.ErrorResponse{
					Severity:            "ERROR",
					SeverityUnlocalized: "ERROR",
					Code:                sqlstateFeatureNotSupported,
					Message:             "unsupported query",
				})
			}
			backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
			if err := backend.Flush(); err != nil {
				return
			}
		case *pgproto3.Terminate:
			return
		default:
			logger.Debug("Ignoring unsupported message")
		}
	}
}

func isCurrentUserQuery(sql string) bool {
	return strings.Contains(strings.ToLower(sql), "current_user")
}
