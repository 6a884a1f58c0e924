package pgwire_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgate/internal/auth"
	"authgate/internal/catalog"
	"authgate/internal/identity"
	"authgate/internal/identity/identitytest"
	"authgate/internal/observability/logging"
	"authgate/internal/observability/metrics"
	"authgate/internal/pgwire"
	"authgate/internal/tlsutil"
	"authgate/internal/tlsutil/tlstest"
)

func startServer(t *testing.T, mode tlsutil.Mode, tlsCfg *tls.Config, provider *auth.Provider, roles []string) string {
	t.Helper()

	logger, err := logging.NewLogger("error")
	require.NoError(t, err)

	authenticator := auth.New(mode, provider, catalog.NewStatic(roles), logger)
	srv := pgwire.New(pgwire.Config{
		Address:         "127.0.0.1:0",
		Mode:            mode,
		TLSConfig:       tlsCfg,
		RequestPassword: provider != nil,
	}, authenticator, logger, metrics.NewCollector())
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	return srv.Addr().String()
}

// connect dials the server, optionally upgrading to TLS via SSLRequest, and
// returns a ready frontend.
func connect(t *testing.T, addr string, clientTLS *tls.Config) (net.Conn, *pgproto3.Frontend) {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	if clientTLS != nil {
		frontend := pgproto3.NewFrontend(conn, conn)
		frontend.Send(&pgproto3.SSLRequest{})
		require.NoError(t, frontend.Flush())

		buf := make([]byte, 1)
		_, err = conn.Read(buf)
		require.NoError(t, err)
		require.Equal(t, byte('S'), buf[0], "server must accept the SSLRequest")

		tlsConn := tls.Client(conn, clientTLS)
		require.NoError(t, tlsConn.Handshake())
		conn = tlsConn
	}
	return conn, pgproto3.NewFrontend(conn, conn)
}

// startup drives the startup handshake to its terminal message. It returns
// nil once ReadyForQuery arrives, or the server's rejection.
func startup(t *testing.T, frontend *pgproto3.Frontend, user, password string) *pgproto3.ErrorResponse {
	t.Helper()

	frontend.Send(&pgproto3.StartupMessage{
		ProtocolVersion: pgproto3.ProtocolVersionNumber,
		Parameters:      map[string]string{"user": user, "database": "db"},
	})
	require.NoError(t, frontend.Flush())

	for {
		msg, err := frontend.Receive()
		require.NoError(t, err)
		switch m := msg.(type) {
		case *pgproto3.AuthenticationCleartextPassword:
			frontend.Send(&pgproto3.PasswordMessage{Password: password})
			require.NoError(t, frontend.Flush())
		case *pgproto3.AuthenticationOk, *pgproto3.ParameterStatus, *pgproto3.BackendKeyData:
		case *pgproto3.ReadyForQuery:
			return nil
		case *pgproto3.ErrorResponse:
			return m
		default:
			t.Fatalf("unexpected startup message %T", msg)
		}
	}
}

// probeCurrentUser runs the identity probe over an established session.
func probeCurrentUser(t *testing.T, frontend *pgproto3.Frontend) string {
	t.Helper()

	frontend.Send(&pgproto3.Query{String: "SELECT current_user"})
	require.NoError(t, frontend.Flush())

	var user string
	for {
		msg, err := frontend.Receive()
		require.NoError(t, err)
		switch m := msg.(type) {
		case *pgproto3.RowDescription, *pgproto3.CommandComplete:
		case *pgproto3.DataRow:
			require.Len(t, m.Values, 1)
			user = string(m.Values[0])
		case *pgproto3.ReadyForQuery:
			return user
		case *pgproto3.ErrorResponse:
			t.Fatalf("query rejected: %s", m.Message)
		default:
			t.Fatalf("unexpected query message %T", msg)
		}
	}
}

func serverTLSConfig(t *testing.T, ca *tlstest.CA, mode tlsutil.Mode) *tls.Config {
	t.Helper()

	cfg := &tls.Config{
		Certificates: []tls.Certificate{ca.Issue(t, "localhost", net.IPv4(127, 0, 0, 1))},
		MinVersion:   tls.VersionTLS12,
	}
	if mode.RequiresClientCert() {
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
		cfg.ClientCAs = ca.Pool()
	}
	return cfg
}

func clientTLSConfig(ca *tlstest.CA, certs ...tls.Certificate) *tls.Config {
	return &tls.Config{
		RootCAs:      ca.Pool(),
		ServerName:   "127.0.0.1",
		Certificates: certs,
		MinVersion:   tls.VersionTLS12,
	}
}

func TestTrustPlaintext(t *testing.T) {
	addr := startServer(t, tlsutil.ModeDisable, nil, nil, []string{"system"})

	_, frontend := connect(t, addr, nil)
	require.Nil(t, startup(t, frontend, "system", ""))
	assert.Equal(t, "system", probeCurrentUser(t, frontend))
}

func TestTrustUnknownRole(t *testing.T) {
	addr := startServer(t, tlsutil.ModeDisable, nil, nil, []string{"system"})

	_, frontend := connect(t, addr, nil)
	errResp := startup(t, frontend, "nobody", "")
	require.NotNil(t, errResp)
	assert.Equal(t, "28000", errResp.Code)
	assert.Equal(t, `role "nobody" does not exist`, errResp.Message)
}

// With TLS disabled an SSLRequest gets the single-byte refusal and the client
// may continue in plaintext on the same connection.
func TestDisableRefusesSSLRequest(t *testing.T) {
	addr := startServer(t, tlsutil.ModeDisable, nil, nil, []string{"system"})

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	frontend := pgproto3.NewFrontend(conn, conn)
	frontend.Send(&pgproto3.SSLRequest{})
	require.NoError(t, frontend.Flush())

	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, byte('N'), buf[0])

	require.Nil(t, startup(t, frontend, "system", ""))
	assert.Equal(t, "system", probeCurrentUser(t, frontend))
}

func TestRequireRejectsPlaintext(t *testing.T) {
	ca := tlstest.New(t)
	addr := startServer(t, tlsutil.ModeRequire, serverTLSConfig(t, ca, tlsutil.ModeRequire), nil, []string{"system"})

	_, frontend := connect(t, addr, nil)
	errResp := startup(t, frontend, "system", "")
	require.NotNil(t, errResp)
	assert.Equal(t, "08004", errResp.Code)
	assert.Equal(t, "TLS encryption is required", errResp.Message)
}

func TestRequireWithProvider(t *testing.T) {
	ca := tlstest.New(t)
	providerKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tenantID := uuid.New()

	creds := identitytest.Credentials{ClientID: uuid.New(), Secret: uuid.New()}
	mock := identitytest.StartProvider(t, providerKey, tenantID, map[identitytest.Credentials]string{
		creds: "user@example.com",
	})

	logger, err := logging.NewLogger("error")
	require.NoError(t, err)
	validator, err := identity.NewValidator(identitytest.PublicKeyPEM(t, providerKey), tenantID)
	require.NoError(t, err)
	provider := &auth.Provider{
		Exchanger: identity.NewClient(mock.URL, 5*time.Second, logger, metrics.NewCollector()),
		Validator: validator,
	}

	addr := startServer(t, tlsutil.ModeRequire, serverTLSConfig(t, ca, tlsutil.ModeRequire), provider, nil)
	password := creds.ClientID.String() + creds.Secret.String()

	t.Run("valid password", func(t *testing.T) {
		_, frontend := connect(t, addr, clientTLSConfig(ca))
		require.Nil(t, startup(t, frontend, "user@example.com", password))
		assert.Equal(t, "user@example.com", probeCurrentUser(t, frontend))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, frontend := connect(t, addr, clientTLSConfig(ca))
		errResp := startup(t, frontend, "user@example.com", uuid.NewString()+uuid.NewString())
		require.NotNil(t, errResp)
		assert.Equal(t, "28P01", errResp.Code)
		assert.Equal(t, "invalid password", errResp.Message)
	})

	t.Run("malformed password", func(t *testing.T) {
		_, frontend := connect(t, addr, clientTLSConfig(ca))
		errResp := startup(t, frontend, "user@example.com", "not an app password")
		require.NotNil(t, errResp)
		assert.Equal(t, "28P01", errResp.Code)
		assert.Equal(t, "invalid password", errResp.Message)
	})

	t.Run("user mismatch", func(t *testing.T) {
		_, frontend := connect(t, addr, clientTLSConfig(ca))
		errResp := startup(t, frontend, "other@example.com", password)
		require.NotNil(t, errResp)
		assert.Equal(t, "28P01", errResp.Code)
		assert.Equal(t, "invalid password", errResp.Message)
	})
}

// With both a provider and verify-full configured, the certificate satisfies
// the transport policy and the password establishes identity; the Common Name
// is never compared to the token email.
func TestVerifyFullWithProvider(t *testing.T) {
	ca := tlstest.New(t)
	providerKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tenantID := uuid.New()

	creds := identitytest.Credentials{ClientID: uuid.New(), Secret: uuid.New()}
	mock := identitytest.StartProvider(t, providerKey, tenantID, map[identitytest.Credentials]string{
		creds: "user@example.com",
	})

	logger, err := logging.NewLogger("error")
	require.NoError(t, err)
	validator, err := identity.NewValidator(identitytest.PublicKeyPEM(t, providerKey), tenantID)
	require.NoError(t, err)
	provider := &auth.Provider{
		Exchanger: identity.NewClient(mock.URL, 5*time.Second, logger, metrics.NewCollector()),
		Validator: validator,
	}

	addr := startServer(t, tlsutil.ModeVerifyFull, serverTLSConfig(t, ca, tlsutil.ModeVerifyFull), provider, nil)
	password := creds.ClientID.String() + creds.Secret.String()
	clientCert := ca.Issue(t, "user@example.com")

	t.Run("valid password with certificate", func(t *testing.T) {
		_, frontend := connect(t, addr, clientTLSConfig(ca, clientCert))
		require.Nil(t, startup(t, frontend, "user@example.com", password))
		assert.Equal(t, "user@example.com", probeCurrentUser(t, frontend))
	})

	t.Run("user mismatch", func(t *testing.T) {
		_, frontend := connect(t, addr, clientTLSConfig(ca, clientCert))
		errResp := startup(t, frontend, "other", password)
		require.NotNil(t, errResp)
		assert.Equal(t, "28P01", errResp.Code)
		assert.Equal(t, "invalid password", errResp.Message)
	})

	t.Run("empty password", func(t *testing.T) {
		_, frontend := connect(t, addr, clientTLSConfig(ca, clientCert))
		errResp := startup(t, frontend, "user@example.com", "")
		require.NotNil(t, errResp)
		assert.Equal(t, "28P01", errResp.Code)
		assert.Equal(t, "invalid password", errResp.Message)
	})

	t.Run("unrelated common name", func(t *testing.T) {
		_, frontend := connect(t, addr, clientTLSConfig(ca, ca.Issue(t, "someone-else")))
		require.Nil(t, startup(t, frontend, "user@example.com", password))
		assert.Equal(t, "user@example.com", probeCurrentUser(t, frontend))
	})
}

func TestVerifyFull(t *testing.T) {
	ca := tlstest.New(t)
	addr := startServer(t, tlsutil.ModeVerifyFull, serverTLSConfig(t, ca, tlsutil.ModeVerifyFull), nil, []string{"admin"})

	t.Run("matching common name", func(t *testing.T) {
		_, frontend := connect(t, addr, clientTLSConfig(ca, ca.Issue(t, "admin")))
		require.Nil(t, startup(t, frontend, "admin", ""))
		assert.Equal(t, "admin", probeCurrentUser(t, frontend))
	})

	t.Run("mismatched common name", func(t *testing.T) {
		_, frontend := connect(t, addr, clientTLSConfig(ca, ca.Issue(t, "other")))
		errResp := startup(t, frontend, "admin", "")
		require.NotNil(t, errResp)
		assert.Equal(t, "28000", errResp.Code)
		assert.Equal(t, `certificate authentication failed for user "admin"`, errResp.Message)
	})
}

func TestVerifyCA(t *testing.T) {
	ca := tlstest.New(t)
	addr := startServer(t, tlsutil.ModeVerifyCA, serverTLSConfig(t, ca, tlsutil.ModeVerifyCA), nil, []string{"admin"})

	// Any Common Name from the trusted CA will do; only the role must exist.
	_, frontend := connect(t, addr, clientTLSConfig(ca, ca.Issue(t, "unrelated")))
	require.Nil(t, startup(t, frontend, "admin", ""))
	assert.Equal(t, "admin", probeCurrentUser(t, frontend))
}

// A certificate signed by an unknown CA never reaches authentication; the
// handshake itself fails.
func TestVerifyCARejectsUntrustedChain(t *testing.T) {
	ca := tlstest.New(t)
	rogue := tlstest.New(t)
	addr := startServer(t, tlsutil.ModeVerifyCA, serverTLSConfig(t, ca, tlsutil.ModeVerifyCA), nil, []string{"admin"})

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	frontend := pgproto3.NewFrontend(conn, conn)
	frontend.Send(&pgproto3.SSLRequest{})
	require.NoError(t, frontend.Flush())
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, byte('S'), buf[0])

	clientCfg := clientTLSConfig(ca, rogue.Issue(t, "admin"))
	tlsConn := tls.Client(conn, clientCfg)
	tlsConn.SetDeadline(time.Now().Add(5 * time.Second))
	err = tlsConn.Handshake()
	if err == nil {
		// The server aborts after verifying the chain; the failure may only
		// surface on the first read.
		_, err = tlsConn.Read(buf)
	}
	require.Error(t, err)
}

func TestUnsupportedQuery(t *testing.T) {
	addr := startServer(t, tlsutil.ModeDisable, nil, nil, []string{"system"})

	_, frontend := connect(t, addr, nil)
	require.Nil(t, startup(t, frontend, "system", ""))

	frontend.Send(&pgproto3.Query{String: "SELECT 1"})
	require.NoError(t, frontend.Flush())

	msg, err := frontend.Receive()
	require.NoError(t, err)
	errResp, ok := msg.(*pgproto3.ErrorResponse)
	require.True(t, ok, "expected an error response, got %T", msg)
	assert.Equal(t, "0A000", errResp.Code)

	msg, err = frontend.Receive()
	require.NoError(t, err)
	require.IsType(t, &pgproto3.ReadyForQuery{}, msg)
}
