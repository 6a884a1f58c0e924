package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"authgate/internal/observability/logging"
)

// Config holds the material needed to build a server TLS configuration.
type Config struct {
	// Logger is the logger to use
	Logger *logging.Logger

	// Mode is the transport mode for the listener
	Mode Mode

	// CertPath is the path to the server certificate
	CertPath string

	// KeyPath is the path to the server key
	KeyPath string

	// CAPath is the path to the CA certificate for client verification.
	// Required for verify-ca and verify-full.
	CAPath string
}

// ServerConfig builds the *tls.Config for a listener operating under the
// configured mode. Returns nil for ModeDisable.
func (c *Config) ServerConfig() (*tls.Config, error) {
	if !c.Mode.TLSEnabled() {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(c.CertPath, c.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		ClientAuth:   tls.NoClientCert,
	}

	if c.Mode.RequiresClientCert() {
		caPEM, err := os.ReadFile(c.CAPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA file: %s", c.CAPath)
		}
		tlsConfig.ClientCAs = pool
		// Chain failures abort the handshake before any credential is read;
		// the peer sees whatever the TLS layer reports.
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		c.Logger.Debug("Client certificate verification configured", "ca", c.CAPath)
	}

	c.Logger.Info("TLS configuration successful", "mode", c.Mode.String())
	return tlsConfig, nil
}

// PeerCommonName extracts the verified leaf certificate's Common Name from a
// completed handshake. The second return is false when no client certificate
// was presented.
func PeerCommonName(state *tls.ConnectionState) (string, bool) {
	if state == nil || len(state.PeerCertificates) == 0 {
		return "", false
	}
	return state.PeerCertificates[0].Subject.CommonName, true
}
