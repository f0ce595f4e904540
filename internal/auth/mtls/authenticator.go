// internal/auth/mtls/authenticator.go
package mtls

import (
	"crypto/x509"
	"fmt"
	"net/http"

	"authzbff/internal/auth"
	"authzbff/internal/httputils"
	"authzbff/internal/observability/logging"
	"authzbff/internal/observability/metrics"
	"authzbff/internal/tls"
)

// Authenticator implements mTLS authentication
type Authenticator struct {
	logger       *logging.Logger
	metrics      *metrics.Collector
	enabled      bool
	authCAs      *x509.CertPool
	allowDNSName bool
}

// Config holds mTLS authenticator configuration
type Config struct {
	// Enabled indicates whether mTLS authentication is enabled
	Enabled bool

	// CAPaths is a list of paths to CA certificates for client verification
	CAPaths []string

	// AllowDNSName uses the first DNS name when the Common Name is empty
	AllowDNSName bool

	// TLSConfig is the server TLS setup; its client CA pool is reused when present
	TLSConfig *tls.Config
}

// New creates a new mTLS authenticator
func New(config Config, logger *logging.Logger, metricsCollector *metrics.Collector) (*Authenticator, error) {
	a := &Authenticator{
		logger:       logger.WithModule("auth.mtls"),
		metrics:      metricsCollector,
		enabled:      config.Enabled,
		allowDNSName: config.AllowDNSName,
	}
	if !config.Enabled {
		return a, nil
	}

	if config.TLSConfig != nil && config.TLSConfig.AuthCAs != nil {
		a.authCAs = config.TLSConfig.AuthCAs
		return a, nil
	}

	if len(config.CAPaths) == 0 {
		return nil, fmt.Errorf("mTLS authentication enabled but no CA paths provided")
	}

	pool, err := tls.LoadCertPool(config.CAPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load mTLS CA certificates: %w", err)
	}
	a.authCAs = pool
	return a, nil
}

// Name returns the name of this authenticator
func (a *Authenticator) Name() string {
	return "mtls"
}

// GetMiddleware returns an http.Handler middleware that performs mTLS authentication
func (a *Authenticator) GetMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		logger := logging.FromContext(ctx, a.logger)

		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			logger.Debug("No TLS or no client certificates")
			next.ServeHTTP(w, r)
			return
		}

		cert := r.TLS.PeerCertificates[0]
		if err := tls.VerifyCertificate(cert, a.authCAs, logger); err != nil {
			a.metrics.RecordAuthentication(a.Name(), false)
			httputils.WriteError(w, http.StatusUnauthorized, "Client certificate verification failed")
			return
		}

		subject, err := tls.ExtractSubject(cert, a.allowDNSName)
		if err != nil {
			logger.Error("mTLS client certificate has no subject", logging.Err(err))
			a.metrics.RecordAuthentication(a.Name(), false)
			httputils.WriteError(w, http.StatusUnauthorized, "Client certificate verification failed, no subject")
			return
		}

		identity := &auth.Identity{
			Subject:  subject,
			Provider: string(auth.AuthTypeMTLS),
			Attributes: map[string]any{
				"certificate": cert,
			},
		}

		logger.Debug("mTLS authentication successful", "subject", subject)
		a.metrics.RecordAuthentication(a.Name(), true)

		next.ServeHTTP(w, r.WithContext(auth.Authenticated(ctx, identity)))
	})
}
