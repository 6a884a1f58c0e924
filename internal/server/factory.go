package server

import (
	"fmt"
	"os"

	"authgate/internal/auth"
	"authgate/internal/catalog"
	"authgate/internal/config"
	"authgate/internal/httpapi"
	"authgate/internal/identity"
	"authgate/internal/observability"
	"authgate/internal/observability/logging"
	"authgate/internal/pgwire"
	"authgate/internal/tlsutil"
)

// NewFromConfig creates a new server from configuration
func NewFromConfig(cfg *config.Config) (*Server, error) {
	obs, err := observability.NewProvider(cfg.Observability.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	tlsSetup := &tlsutil.Config{
		Logger:   logger.WithModule("tls"),
		Mode:     cfg.TLS.Mode,
		CertPath: cfg.TLS.CertPath,
		KeyPath:  cfg.TLS.KeyPath,
		CAPath:   cfg.TLS.CAPath,
	}
	tlsConfig, err := tlsSetup.ServerConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
	}

	var provider *auth.Provider
	if cfg.Provider.Enabled {
		publicKey, err := os.ReadFile(cfg.Provider.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read provider public key: %w", err)
		}
		validator, err := identity.NewValidator(publicKey, cfg.Provider.TenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize token validator: %w", err)
		}
		provider = &auth.Provider{
			Exchanger: identity.NewClient(cfg.Provider.URL, cfg.Provider.Timeout, logger, obs.Metrics),
			Validator: validator,
		}
		logger.Info("Identity provider authentication enabled",
			"url", logging.RedactStringURL(cfg.Provider.URL), "tenant_id", cfg.Provider.TenantID.String())
	}

	roleCatalog := catalog.NewStatic(cfg.Catalog.Roles)
	authenticator := auth.New(cfg.TLS.Mode, provider, roleCatalog, logger)

	pg := pgwire.New(pgwire.Config{
		Address:         cfg.Server.PgwireAddr,
		Mode:            cfg.TLS.Mode,
		TLSConfig:       tlsConfig,
		RequestPassword: cfg.Provider.Enabled,
	}, authenticator, logger, obs.Metrics)

	httpAPI := httpapi.New(httpapi.Config{
		Address:            cfg.Server.HTTPAddr,
		Mode:               cfg.TLS.Mode,
		TLSConfig:          tlsConfig,
		DefaultUser:        cfg.HTTP.DefaultUser,
		ProviderConfigured: cfg.Provider.Enabled,
	}, authenticator, obs)

	return New(pg, httpAPI, cfg.Server.MetricsAddr, obs.MetricsHandler(), logger, cfg.Server.ShutdownTimeout), nil
}
