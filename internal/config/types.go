package config

import (
	"time"

	"github.com/google/uuid"

	"authgate/internal/tlsutil"
)

// Config represents the complete application configuration
type Config struct {
	// Server holds listener configuration
	Server struct {
		// PgwireAddr is the address the pgwire listener binds
		PgwireAddr string
		// HTTPAddr is the address the HTTP query listener binds
		HTTPAddr string
		// MetricsAddr is the address the metrics server binds
		MetricsAddr string
		// ShutdownTimeout is the maximum time to wait for a graceful shutdown
		ShutdownTimeout time.Duration
	}

	// TLS holds the transport policy shared by both listeners
	TLS struct {
		// Mode is the transport mode
		Mode tlsutil.Mode
		// CertPath is the path to the server certificate
		CertPath string
		// KeyPath is the path to the server key
		KeyPath string
		// CAPath is the path to the CA certificate for client verification
		CAPath string
	}

	// Provider holds identity provider configuration. When disabled, all
	// authentication is transport/trust-based.
	Provider struct {
		// Enabled indicates whether provider authentication is enabled
		Enabled bool
		// URL is the provider's token-exchange endpoint
		URL string
		// PublicKeyPath is the path to the provider's public key (PEM)
		PublicKeyPath string
		// TenantID is the tenant this deployment is bound to
		TenantID uuid.UUID
		// Timeout bounds each token exchange
		Timeout time.Duration
	}

	// HTTP holds HTTP-adapter specific configuration
	HTTP struct {
		// DefaultUser is the fixed superuser identity assumed when no
		// provider is configured and the mode does not bind identity to the
		// client certificate
		DefaultUser string
	}

	// Catalog holds the role catalog contents
	Catalog struct {
		// Roles is the set of role names known to the catalog
		Roles []string
	}

	// Observability holds observability configuration
	Observability struct {
		// LogLevel is the minimum log level to emit
		LogLevel string
	}
}
