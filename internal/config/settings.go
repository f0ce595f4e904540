// internal/config/settings.go
package config

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/viper"
)

// SettingType represents the type of a setting
type SettingType string

const (
	// String type for string settings
	String SettingType = "string"
	// Bool type for boolean settings
	Bool SettingType = "bool"
	// Int type for integer settings
	Int SettingType = "int"
	// StringSlice type for string slice settings
	StringSlice SettingType = "stringSlice"
	// Duration type for time.Duration settings
	Duration SettingType = "duration"
)

// Setting defines a configuration setting. The environment variable is the
// name prefixed with AUTHZ_.
type Setting struct {
	Name    string
	Short   string
	Type    SettingType
	Default any
}

// SettingList is a list of settings
type SettingList []Setting

// PopulateViperDefaults sets default values for all settings in Viper
func (sl SettingList) PopulateViperDefaults(v *viper.Viper) {
	for _, s := range sl {
		v.SetDefault(s.Name, s.Default)
	}
}

// WriteUsage prints every setting with its environment variable and default
func (sl SettingList) WriteUsage(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENVIRONMENT\tTYPE\tDEFAULT\tDESCRIPTION")
	for _, s := range sl {
		fmt.Fprintf(tw, "%s_%s\t%s\t%v\t%s\n", EnvPrefix, s.Name, s.Type, s.Default, s.Short)
	}
	return tw.Flush()
}

// Settings defines all application settings
var Settings = SettingList{
	// Server settings
	{
		Name:    "SERVER_ADDR",
		Short:   "Address on which the API server listens",
		Type:    String,
		Default: ":8000",
	},
	{
		Name:    "METRICS_ADDR",
		Short:   "Address on which the metrics server listens",
		Type:    String,
		Default: ":9090",
	},
	{
		Name:    "SHUTDOWN_TIMEOUT",
		Short:   "Maximum time to wait for graceful shutdown",
		Type:    Duration,
		Default: "30s",
	},
	{
		Name:    "MAX_BODY_BYTES",
		Short:   "Maximum accepted request body size in bytes",
		Type:    Int,
		Default: 4 << 20,
	},

	// TLS settings
	{
		Name:    "TLS_ENABLED",
		Short:   "Enable TLS for the server",
		Type:    Bool,
		Default: false,
	},
	{
		Name:    "TLS_CERT_PATH",
		Short:   "Path to TLS certificate file",
		Type:    String,
		Default: "",
	},
	{
		Name:    "TLS_KEY_PATH",
		Short:   "Path to TLS key file",
		Type:    String,
		Default: "",
	},
	{
		Name:    "TLS_CA_PATH",
		Short:   "Path to TLS CA certificate file",
		Type:    String,
		Default: "",
	},

	// Authentication: mTLS
	{
		Name:    "AUTH_MTLS_ENABLED",
		Short:   "Enable mTLS authentication",
		Type:    Bool,
		Default: false,
	},
	{
		Name:    "AUTH_MTLS_CA_PATHS",
		Short:   "Paths to CA certificates for client verification",
		Type:    StringSlice,
		Default: []string{},
	},
	{
		Name:    "AUTH_MTLS_ALLOW_DNS_NAME",
		Short:   "Use the first DNS name as subject when the certificate has no Common Name",
		Type:    Bool,
		Default: false,
	},

	// Authentication: OIDC
	{
		Name:    "AUTH_OIDC_ENABLED",
		Short:   "Enable OIDC session authentication",
		Type:    Bool,
		Default: false,
	},
	{
		Name:    "AUTH_OIDC_ISSUER",
		Short:   "OIDC issuer URL",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTH_OIDC_CLIENT_ID",
		Short:   "OIDC client ID",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTH_OIDC_CLIENT_SECRET",
		Short:   "OIDC client secret",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTH_OIDC_REDIRECT_URL",
		Short:   "OIDC redirect URL",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTH_OIDC_SCOPES",
		Short:   "OIDC scopes",
		Type:    StringSlice,
		Default: []string{"openid", "email", "profile"},
	},
	{
		Name:    "AUTH_OIDC_COOKIE_NAME",
		Short:   "Name of the session cookie",
		Type:    String,
		Default: "authzbff_session",
	},
	{
		Name:    "AUTH_OIDC_COOKIE_SECRET",
		Short:   "Secret key for session cookie encryption (32 bytes)",
		Type:    String,
		Default: "",
	},

	// Authentication: Bearer
	{
		Name:    "AUTH_BEARER_ENABLED",
		Short:   "Enable Bearer token authentication",
		Type:    Bool,
		Default: false,
	},
	{
		Name:    "AUTH_BEARER_ISSUER",
		Short:   "Bearer token issuer",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTH_BEARER_CLIENT_ID",
		Short:   "Bearer token client ID",
		Type:    String,
		Default: "",
	},

	// Authorization backend
	{
		Name:    "AUTHZ_TYPE",
		Short:   "Authorization backend (spicedb, openfga)",
		Type:    String,
		Default: "spicedb",
	},
	{
		Name:    "AUTHZ_CALL_TIMEOUT",
		Short:   "Timeout for a single authorization call",
		Type:    Duration,
		Default: "10s",
	},
	{
		Name:    "AUTHZ_SPICEDB_ENDPOINT",
		Short:   "SpiceDB gRPC endpoint",
		Type:    String,
		Default: "localhost:50051",
	},
	{
		Name:    "AUTHZ_SPICEDB_INSECURE",
		Short:   "Use a plaintext connection to SpiceDB",
		Type:    Bool,
		Default: false,
	},
	{
		Name:    "AUTHZ_SPICEDB_TOKEN",
		Short:   "SpiceDB preshared key",
		Type:    String,
		Default: "",
	},
	{
		Name:    "AUTHZ_SPICEDB_STORE_PREFIX",
		Short:   "Use the policy store id as object type prefix",
		Type:    Bool,
		Default: true,
	},
	{
		Name:    "AUTHZ_SPICEDB_FULLY_CONSISTENT",
		Short:   "Request fully consistent permission checks",
		Type:    Bool,
		Default: false,
	},
	{
		Name:    "AUTHZ_OPENFGA_API_URL",
		Short:   "OpenFGA API URL",
		Type:    String,
		Default: "http://localhost:8080",
	},
	{
		Name:    "AUTHZ_OPENFGA_API_TOKEN",
		Short:   "OpenFGA API token",
		Type:    String,
		Default: "",
	},

	// Console access
	{
		Name:    "CONSOLE_POLICY_STORE_ID",
		Short:   "Policy store holding console access policies",
		Type:    String,
		Default: "",
	},
	{
		Name:    "CONSOLE_SUBJECT_TYPE",
		Short:   "Entity type of console users",
		Type:    String,
		Default: "user",
	},
	{
		Name:    "CONSOLE_RESOURCE_TYPE",
		Short:   "Entity type of the console resource",
		Type:    String,
		Default: "console",
	},
	{
		Name:    "CONSOLE_RESOURCE_ID",
		Short:   "Identifier of the console resource",
		Type:    String,
		Default: "default",
	},

	// Batch settings
	{
		Name:    "BATCH_CONCURRENCY",
		Short:   "Scenarios evaluated in parallel per batch",
		Type:    Int,
		Default: 8,
	},

	// Rules settings
	{
		Name:    "RULES_PATH",
		Short:   "Path to a YAML file with route access rules",
		Type:    String,
		Default: "",
	},
	{
		Name:    "RULES_DEFAULT_ACTION",
		Short:   "Action for requests no rule matches (allow, deny, auth)",
		Type:    String,
		Default: "allow",
	},
	{
		Name:    "RULES_DEFAULT_PERMISSION",
		Short:   "Console permission checked when the default action is auth",
		Type:    String,
		Default: "access",
	},

	// Observability
	{
		Name:    "LOG_LEVEL",
		Short:   "Logging level",
		Type:    String,
		Default: "info",
	},
	{
		Name:    "LOG_FORMAT",
		Short:   "Logging format (json, text, console)",
		Type:    String,
		Default: "json",
	},
}
