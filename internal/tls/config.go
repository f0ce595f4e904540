// internal/tls/config.go
package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"authzbff/internal/observability/logging"
)

// Config holds the server TLS configuration
type Config struct {
	// Logger is the logger to use
	Logger *logging.Logger

	// RootCAPath is the path to the root CA certificate
	RootCAPath string

	// AuthCAFiles is a list of paths to CA certificates for client verification
	AuthCAFiles []string

	// AuthCAs is populated by GetTLSConfig with the pool used to verify clients
	AuthCAs *x509.CertPool
}

// LoadCertPool reads PEM certificates from every path into a new pool
func LoadCertPool(paths ...string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, path := range paths {
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %s: %w", path, err)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA file: %s", path)
		}
	}
	return pool, nil
}

// GetTLSConfig creates the TLS configuration for the API server.
// Client certificates are requested but not required.
func (c *Config) GetTLSConfig() (*tls.Config, error) {
	c.Logger.Debug("Initializing TLS configuration")

	tlsConfig := &tls.Config{
		ClientAuth: tls.VerifyClientCertIfGiven,
		MinVersion: tls.VersionTLS12,
	}

	if c.RootCAPath != "" {
		rootPool, err := LoadCertPool(c.RootCAPath)
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = rootPool
		c.AuthCAs = rootPool
		c.Logger.Debug("Root CA loaded for TLS", "root_ca", c.RootCAPath)
	}

	if len(c.AuthCAFiles) > 0 {
		authPool, err := LoadCertPool(c.AuthCAFiles...)
		if err != nil {
			return nil, err
		}
		c.AuthCAs = authPool
		tlsConfig.ClientCAs = authPool
		tlsConfig.VerifyPeerCertificate = c.clientValidator()
		c.Logger.Debug("mTLS configured with client certificate validation", "auth_ca_files", c.AuthCAFiles)
	} else if c.RootCAPath != "" {
		c.Logger.Warn("No client CA files configured, verifying client certificates against the root CA")
	}

	c.Logger.Info("TLS configuration successful")
	return tlsConfig, nil
}

// clientValidator verifies a presented client certificate for client-auth usage
func (c *Config) clientValidator() func([][]byte, [][]*x509.Certificate) error {
	return func(_ [][]byte, verifiedChains [][]*x509.Certificate) error {
		if len(verifiedChains) == 0 {
			return nil
		}
		if len(verifiedChains[0]) == 0 {
			return fmt.Errorf("client certificate is invalid (empty chain)")
		}
		return VerifyCertificate(verifiedChains[0][0], c.AuthCAs, c.Logger)
	}
}
