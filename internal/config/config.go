package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"authgate/internal/tlsutil"
)

// Load loads the configuration from all sources and returns the merged result
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	Settings.PopulateViperDefaults(v)

	// Set up environment variable handling
	v.SetEnvPrefix("AUTHGATE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// Load from config file if specified
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	config := &Config{}

	// Populate server configuration
	config.Server.PgwireAddr = v.GetString("PGWIRE_ADDR")
	config.Server.HTTPAddr = v.GetString("HTTP_ADDR")
	config.Server.MetricsAddr = v.GetString("METRICS_ADDR")
	shutdownTimeout, err := time.ParseDuration(v.GetString("SHUTDOWN_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	config.Server.ShutdownTimeout = shutdownTimeout

	// Populate TLS configuration
	mode, err := tlsutil.ParseMode(v.GetString("TLS_MODE"))
	if err != nil {
		return nil, err
	}
	config.TLS.Mode = mode
	config.TLS.CertPath = v.GetString("TLS_CERT_PATH")
	config.TLS.KeyPath = v.GetString("TLS_KEY_PATH")
	config.TLS.CAPath = v.GetString("TLS_CA_PATH")

	// Populate provider configuration
	config.Provider.Enabled = v.GetBool("PROVIDER_ENABLED")
	config.Provider.URL = v.GetString("PROVIDER_URL")
	config.Provider.PublicKeyPath = v.GetString("PROVIDER_PUBLIC_KEY_PATH")
	if config.Provider.Enabled {
		tenantID, err := uuid.Parse(v.GetString("PROVIDER_TENANT_ID"))
		if err != nil {
			return nil, fmt.Errorf("invalid provider tenant ID: %w", err)
		}
		config.Provider.TenantID = tenantID
	}
	providerTimeout, err := time.ParseDuration(v.GetString("PROVIDER_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid provider timeout: %w", err)
	}
	config.Provider.Timeout = providerTimeout

	// Populate HTTP adapter configuration
	config.HTTP.DefaultUser = v.GetString("HTTP_DEFAULT_USER")

	// Populate catalog configuration
	config.Catalog.Roles = v.GetStringSlice("CATALOG_ROLES")

	// Populate observability configuration
	config.Observability.LogLevel = v.GetString("LOG_LEVEL")

	// Validate the configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validateConfig performs validation on the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.TLS.Mode.TLSEnabled() {
		if cfg.TLS.CertPath == "" {
			return fmt.Errorf("TLS certificate path is required for mode %s", cfg.TLS.Mode)
		}
		if cfg.TLS.KeyPath == "" {
			return fmt.Errorf("TLS key path is required for mode %s", cfg.TLS.Mode)
		}
		if _, err := os.Stat(cfg.TLS.CertPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file not found: %s", cfg.TLS.CertPath)
		}
		if _, err := os.Stat(cfg.TLS.KeyPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file not found: %s", cfg.TLS.KeyPath)
		}
	}

	if cfg.TLS.Mode.RequiresClientCert() {
		if cfg.TLS.CAPath == "" {
			return fmt.Errorf("CA path is required for mode %s", cfg.TLS.Mode)
		}
		if _, err := os.Stat(cfg.TLS.CAPath); os.IsNotExist(err) {
			return fmt.Errorf("CA file not found: %s", cfg.TLS.CAPath)
		}
	}

	if cfg.Provider.Enabled {
		if cfg.Provider.URL == "" {
			return fmt.Errorf("provider URL is required when the provider is enabled")
		}
		if _, err := url.Parse(cfg.Provider.URL); err != nil {
			return fmt.Errorf("invalid provider URL: %w", err)
		}
		if cfg.Provider.PublicKeyPath == "" {
			return fmt.Errorf("provider public key path is required when the provider is enabled")
		}
		if _, err := os.Stat(cfg.Provider.PublicKeyPath); os.IsNotExist(err) {
			return fmt.Errorf("provider public key file not found: %s", cfg.Provider.PublicKeyPath)
		}
	}

	if cfg.HTTP.DefaultUser == "" {
		return fmt.Errorf("HTTP default user must not be empty")
	}

	return nil
}
