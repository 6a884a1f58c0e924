package config

import "github.com/spf13/viper"

// SettingType represents the type of a setting
type SettingType string

const (
	// String type for string settings
	String SettingType = "string"
	// Bool type for boolean settings
	Bool SettingType = "bool"
	// StringSlice type for string slice settings
	StringSlice SettingType = "stringSlice"
)

// Setting defines a configuration setting
type Setting struct {
	// Name is the name of the setting
	Name string
	// Short is a short description of the setting
	Short string
	// Type is the type of the setting
	Type SettingType
	// Default is the default value of the setting
	Default interface{}
	// Env is the environment variable name for the setting
	Env string
}

// SettingList is a list of settings
type SettingList []Setting

// PopulateViperDefaults sets default values for all settings in Viper
func (sl SettingList) PopulateViperDefaults(v *viper.Viper) {
	for _, s := range sl {
		v.SetDefault(s.Name, s.Default)
	}
}

// Settings defines all application settings
var Settings = SettingList{
	// Server settings
	{
		Name:    "PGWIRE_ADDR",
		Short:   "Address on which the pgwire listener listens",
		Type:    String,
		Default: ":6432",
		Env:     "PGWIRE_ADDR",
	},
	{
		Name:    "HTTP_ADDR",
		Short:   "Address on which the HTTP query listener listens",
		Type:    String,
		Default: ":8080",
		Env:     "HTTP_ADDR",
	},
	{
		Name:    "METRICS_ADDR",
		Short:   "Address on which the metrics server listens",
		Type:    String,
		Default: ":9090",
		Env:     "METRICS_ADDR",
	},
	{
		Name:    "SHUTDOWN_TIMEOUT",
		Short:   "Maximum time to wait for graceful shutdown",
		Type:    String,
		Default: "30s",
		Env:     "SHUTDOWN_TIMEOUT",
	},

	// TLS settings
	{
		Name:    "TLS_MODE",
		Short:   "Transport mode (disable, require, verify-ca, verify-full)",
		Type:    String,
		Default: "disable",
		Env:     "TLS_MODE",
	},
	{
		Name:    "TLS_CERT_PATH",
		Short:   "Path to the server certificate file",
		Type:    String,
		Default: "",
		Env:     "TLS_CERT_PATH",
	},
	{
		Name:    "TLS_KEY_PATH",
		Short:   "Path to the server key file",
		Type:    String,
		Default: "",
		Env:     "TLS_KEY_PATH",
	},
	{
		Name:    "TLS_CA_PATH",
		Short:   "Path to the CA certificate for client verification",
		Type:    String,
		Default: "",
		Env:     "TLS_CA_PATH",
	},

	// Identity provider settings
	{
		Name:    "PROVIDER_ENABLED",
		Short:   "Enable identity provider authentication",
		Type:    Bool,
		Default: false,
		Env:     "PROVIDER_ENABLED",
	},
	{
		Name:    "PROVIDER_URL",
		Short:   "Identity provider token-exchange endpoint",
		Type:    String,
		Default: "",
		Env:     "PROVIDER_URL",
	},
	{
		Name:    "PROVIDER_PUBLIC_KEY_PATH",
		Short:   "Path to the identity provider's public key (PEM)",
		Type:    String,
		Default: "",
		Env:     "PROVIDER_PUBLIC_KEY_PATH",
	},
	{
		Name:    "PROVIDER_TENANT_ID",
		Short:   "Tenant ID this deployment is bound to",
		Type:    String,
		Default: "",
		Env:     "PROVIDER_TENANT_ID",
	},
	{
		Name:    "PROVIDER_TIMEOUT",
		Short:   "Timeout for identity provider token exchanges",
		Type:    String,
		Default: "5s",
		Env:     "PROVIDER_TIMEOUT",
	},

	// HTTP adapter settings
	{
		Name:    "HTTP_DEFAULT_USER",
		Short:   "Fixed superuser identity for unauthenticated HTTP access",
		Type:    String,
		Default: "system",
		Env:     "HTTP_DEFAULT_USER",
	},

	// Catalog settings
	{
		Name:    "CATALOG_ROLES",
		Short:   "Role names known to the catalog",
		Type:    StringSlice,
		Default: []string{"system"},
		Env:     "CATALOG_ROLES",
	},

	// Observability
	{
		Name:    "LOG_LEVEL",
		Short:   "Logging level",
		Type:    String,
		Default: "info",
		Env:     "LOG_LEVEL",
	},
}
