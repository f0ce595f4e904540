// internal/config/types.go
package config

import "time"

// Config represents the complete application configuration
type Config struct {
	// Server holds HTTP server configuration
	Server struct {
		// Address is the address to listen on
		Address string
		// ShutdownTimeout is the maximum time to wait for a graceful shutdown
		ShutdownTimeout time.Duration
		// MaxBodyBytes caps the size of request bodies
		MaxBodyBytes int64
	}

	// Metrics holds metrics server configuration
	Metrics struct {
		// Address is the address to listen on for the metrics server
		Address string
	}

	// TLS holds TLS configuration
	TLS struct {
		Enabled  bool
		CertPath string
		KeyPath  string
		// CAPath is the path to the CA certificate for client verification
		CAPath string
	}

	// Auth holds authentication configuration
	Auth struct {
		MTLS struct {
			Enabled bool
			// CAPaths is a list of paths to CA certificates for client verification
			CAPaths []string
			// AllowDNSName falls back to the first DNS name when the Common Name is empty
			AllowDNSName bool
		}

		OIDC struct {
			Enabled      bool
			Issuer       string
			ClientID     string
			ClientSecret string
			RedirectURL  string
			Scopes       []string
			CookieName   string
			CookieSecret string
		}

		Bearer struct {
			Enabled  bool
			Issuer   string
			ClientID string
		}
	}

	// Authz holds authorization backend configuration
	Authz struct {
		// Type selects the backend (spicedb, openfga)
		Type string

		// CallTimeout bounds a single backend call
		CallTimeout time.Duration

		SpiceDB struct {
			Endpoint string
			Insecure bool
			Token    string
			// StorePrefix applies the policy store id as object type prefix
			StorePrefix bool
			// FullyConsistent requests fully consistent checks
			FullyConsistent bool
		}

		OpenFGA struct {
			APIURL   string
			APIToken string
		}
	}

	// Console describes how access to the console itself is checked
	Console struct {
		PolicyStoreID string
		SubjectType   string
		ResourceType  string
		ResourceID    string
	}

	// Batch holds batch runner configuration
	Batch struct {
		// Concurrency is the number of scenarios evaluated in parallel per batch
		Concurrency int
	}

	// Observability holds observability configuration
	Observability struct {
		LogLevel  string
		LogFormat string
	}

	// DefaultAction is applied to requests no rule matches
	DefaultAction string

	// DefaultPermission is checked when DefaultAction is auth
	DefaultPermission string

	// Rules holds route access rules
	Rules []Rule
}

// Rule defines an access rule for console routes
type Rule struct {
	// Name is a unique identifier for the rule
	Name string `json:"name" yaml:"name"`

	// Action is "allow", "deny" or "auth"
	Action string `json:"action" yaml:"action"`

	// Paths is a list of URL paths this rule applies to
	Paths []string `json:"paths" yaml:"paths"`

	// MatchPrefix matches path prefixes instead of exact paths
	MatchPrefix bool `json:"match_prefix" yaml:"match_prefix"`

	// Methods restricts the rule to these HTTP methods (empty = all methods)
	Methods []string `json:"methods" yaml:"methods"`

	// Permission is checked on the console resource for "auth" rules
	Permission string `json:"permission" yaml:"permission"`
}
