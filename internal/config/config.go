// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every setting name to form its environment variable
const EnvPrefix = "AUTHZ"

// Load loads the configuration from all sources and returns the merged result
func Load(configPath string) (*Config, error) {
	v := viper.New()

	Settings.PopulateViperDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	config, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	if path := v.GetString("RULES_PATH"); path != "" {
		rules, err := LoadRules(path)
		if err != nil {
			return nil, err
		}
		config.Rules = rules
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	config := &Config{}

	config.Server.Address = v.GetString("SERVER_ADDR")
	config.Server.MaxBodyBytes = v.GetInt64("MAX_BODY_BYTES")
	config.Metrics.Address = v.GetString("METRICS_ADDR")

	var err error
	if config.Server.ShutdownTimeout, err = parseDuration(v, "SHUTDOWN_TIMEOUT"); err != nil {
		return nil, err
	}
	if config.Authz.CallTimeout, err = parseDuration(v, "AUTHZ_CALL_TIMEOUT"); err != nil {
		return nil, err
	}

	config.TLS.Enabled = v.GetBool("TLS_ENABLED")
	config.TLS.CertPath = v.GetString("TLS_CERT_PATH")
	config.TLS.KeyPath = v.GetString("TLS_KEY_PATH")
	config.TLS.CAPath = v.GetString("TLS_CA_PATH")

	// mTLS
	config.Auth.MTLS.Enabled = v.GetBool("AUTH_MTLS_ENABLED")
	config.Auth.MTLS.CAPaths = v.GetStringSlice("AUTH_MTLS_CA_PATHS")
	config.Auth.MTLS.AllowDNSName = v.GetBool("AUTH_MTLS_ALLOW_DNS_NAME")

	// OIDC
	config.Auth.OIDC.Enabled = v.GetBool("AUTH_OIDC_ENABLED")
	config.Auth.OIDC.Issuer = v.GetString("AUTH_OIDC_ISSUER")
	config.Auth.OIDC.ClientID = v.GetString("AUTH_OIDC_CLIENT_ID")
	config.Auth.OIDC.ClientSecret = v.GetString("AUTH_OIDC_CLIENT_SECRET")
	config.Auth.OIDC.RedirectURL = v.GetString("AUTH_OIDC_REDIRECT_URL")
	config.Auth.OIDC.Scopes = v.GetStringSlice("AUTH_OIDC_SCOPES")
	config.Auth.OIDC.CookieName = v.GetString("AUTH_OIDC_COOKIE_NAME")
	config.Auth.OIDC.CookieSecret = v.GetString("AUTH_OIDC_COOKIE_SECRET")

	// Bearer
	config.Auth.Bearer.Enabled = v.GetBool("AUTH_BEARER_ENABLED")
	config.Auth.Bearer.Issuer = v.GetString("AUTH_BEARER_ISSUER")
	config.Auth.Bearer.ClientID = v.GetString("AUTH_BEARER_CLIENT_ID")

	config.Authz.Type = strings.ToLower(v.GetString("AUTHZ_TYPE"))
	config.Authz.SpiceDB.Endpoint = v.GetString("AUTHZ_SPICEDB_ENDPOINT")
	config.Authz.SpiceDB.Insecure = v.GetBool("AUTHZ_SPICEDB_INSECURE")
	config.Authz.SpiceDB.Token = v.GetString("AUTHZ_SPICEDB_TOKEN")
	config.Authz.SpiceDB.StorePrefix = v.GetBool("AUTHZ_SPICEDB_STORE_PREFIX")
	config.Authz.SpiceDB.FullyConsistent = v.GetBool("AUTHZ_SPICEDB_FULLY_CONSISTENT")
	config.Authz.OpenFGA.APIURL = v.GetString("AUTHZ_OPENFGA_API_URL")
	config.Authz.OpenFGA.APIToken = v.GetString("AUTHZ_OPENFGA_API_TOKEN")

	config.Console.PolicyStoreID = v.GetString("CONSOLE_POLICY_STORE_ID")
	config.Console.SubjectType = v.GetString("CONSOLE_SUBJECT_TYPE")
	config.Console.ResourceType = v.GetString("CONSOLE_RESOURCE_TYPE")
	config.Console.ResourceID = v.GetString("CONSOLE_RESOURCE_ID")

	config.Batch.Concurrency = v.GetInt("BATCH_CONCURRENCY")
	config.DefaultAction = strings.ToLower(v.GetString("RULES_DEFAULT_ACTION"))
	config.DefaultPermission = v.GetString("RULES_DEFAULT_PERMISSION")

	config.Observability.LogLevel = v.GetString("LOG_LEVEL")
	config.Observability.LogFormat = v.GetString("LOG_FORMAT")

	return config, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", strings.ToLower(strings.ReplaceAll(key, "_", " ")), err)
	}
	return d, nil
}

// validateConfig performs validation on the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return fmt.Errorf("TLS certificate path is required when TLS is enabled")
		}
		if cfg.TLS.KeyPath == "" {
			return fmt.Errorf("TLS key path is required when TLS is enabled")
		}
		if _, err := os.Stat(cfg.TLS.CertPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file not found: %s", cfg.TLS.CertPath)
		}
		if _, err := os.Stat(cfg.TLS.KeyPath); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file not found: %s", cfg.TLS.KeyPath)
		}
	}

	if cfg.Batch.Concurrency < 1 {
		return fmt.Errorf("batch concurrency must be at least 1, got %d", cfg.Batch.Concurrency)
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	if err := validateAuthConfig(cfg); err != nil {
		return err
	}
	if err := validateAuthzConfig(cfg); err != nil {
		return err
	}
	return validateRules(cfg)
}

// validateAuthConfig validates authentication configuration
func validateAuthConfig(cfg *Config) error {
	if cfg.Auth.MTLS.Enabled {
		if len(cfg.Auth.MTLS.CAPaths) == 0 {
			return fmt.Errorf("at least one CA path is required when mTLS is enabled")
		}
		for _, caPath := range cfg.Auth.MTLS.CAPaths {
			if _, err := os.Stat(caPath); os.IsNotExist(err) {
				return fmt.Errorf("mTLS CA file not found: %s", caPath)
			}
		}
	}

	if cfg.Auth.OIDC.Enabled {
		if cfg.Auth.OIDC.Issuer == "" {
			return fmt.Errorf("OIDC issuer is required when OIDC is enabled")
		}
		if cfg.Auth.OIDC.ClientID == "" {
			return fmt.Errorf("OIDC client ID is required when OIDC is enabled")
		}
		if cfg.Auth.OIDC.ClientSecret == "" {
			return fmt.Errorf("OIDC client secret is required when OIDC is enabled")
		}
		if cfg.Auth.OIDC.RedirectURL == "" {
			return fmt.Errorf("OIDC redirect URL is required when OIDC is enabled")
		}
		if len(cfg.Auth.OIDC.CookieSecret) < 32 {
			return fmt.Errorf("OIDC cookie secret of at least 32 bytes is required when OIDC is enabled")
		}
	}

	if cfg.Auth.Bearer.Enabled {
		if cfg.Auth.Bearer.Issuer == "" {
			return fmt.Errorf("Bearer issuer is required when Bearer is enabled")
		}
		if cfg.Auth.Bearer.ClientID == "" {
			return fmt.Errorf("Bearer client ID is required when Bearer is enabled")
		}
	}

	return nil
}

// validateAuthzConfig validates authorization backend configuration
func validateAuthzConfig(cfg *Config) error {
	switch cfg.Authz.Type {
	case "spicedb":
		if cfg.Authz.SpiceDB.Endpoint == "" {
			return fmt.Errorf("SpiceDB endpoint is required when using SpiceDB")
		}
		if cfg.Authz.SpiceDB.Token == "" {
			return fmt.Errorf("SpiceDB token is required when using SpiceDB")
		}
	case "openfga":
		if cfg.Authz.OpenFGA.APIURL == "" {
			return fmt.Errorf("OpenFGA API URL is required when using OpenFGA")
		}
	default:
		return fmt.Errorf("unknown authorization backend type: %q", cfg.Authz.Type)
	}

	if cfg.Authz.CallTimeout <= 0 {
		return fmt.Errorf("authorization call timeout must be positive")
	}
	return nil
}
