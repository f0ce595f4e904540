// internal/auth/manager/manager.go
package manager

import (
	"context"
	"fmt"
	"net/http"

	"authzbff/internal/auth"
	"authzbff/internal/auth/bearer"
	"authzbff/internal/auth/mtls"
	"authzbff/internal/auth/oidc"
	"authzbff/internal/config"
	"authzbff/internal/observability/logging"
	"authzbff/internal/observability/metrics"
	"authzbff/internal/tls"
)

// Manager coordinates multiple authentication methods
type Manager struct {
	logger         *logging.Logger
	authenticators []auth.Authenticator
	publicPaths    map[string]struct{}
}

// NewManager creates a new authentication manager. Requests to publicPaths bypass authentication.
func NewManager(authenticators []auth.Authenticator, publicPaths []string, logger *logging.Logger) *Manager {
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = struct{}{}
	}
	return &Manager{
		authenticators: authenticators,
		publicPaths:    public,
		logger:         logger.WithModule("auth.manager"),
	}
}

// Middleware creates a middleware chain from all enabled authenticators.
// The first authenticator sees the request first.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	handler := next
	for i := len(m.authenticators) - 1; i >= 0; i-- {
		handler = m.authenticators[i].GetMiddleware(handler)
		m.logger.Debug("Added authenticator to middleware chain", "authenticator", m.authenticators[i].Name())
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.publicPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

// GetAuthenticators returns the list of enabled authenticators
func (m *Manager) GetAuthenticators() []auth.Authenticator {
	return m.authenticators
}

// NewManagerFromConfig creates a Manager with authenticators configured from application config.
// Order is mTLS, then Bearer, then OIDC.
func NewManagerFromConfig(ctx context.Context, cfg *config.Config, tlsConfig *tls.Config, publicPaths []string, logger *logging.Logger, metricsCollector *metrics.Collector) (*Manager, error) {
	logger = logger.WithModule("auth.factory")
	var authenticators []auth.Authenticator

	if cfg.Auth.MTLS.Enabled {
		mtlsAuth, err := mtls.New(mtls.Config{
			Enabled:      true,
			CAPaths:      cfg.Auth.MTLS.CAPaths,
			AllowDNSName: cfg.Auth.MTLS.AllowDNSName,
			TLSConfig:    tlsConfig,
		}, logger, metricsCollector)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mTLS authenticator: %w", err)
		}
		authenticators = append(authenticators, mtlsAuth)
		logger.Info("mTLS authentication enabled")
	}

	if cfg.Auth.Bearer.Enabled {
		bearerAuth, err := bearer.New(ctx, bearer.Config{
			Enabled:  true,
			Issuer:   cfg.Auth.Bearer.Issuer,
			ClientID: cfg.Auth.Bearer.ClientID,
		}, logger, metricsCollector)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Bearer authenticator: %w", err)
		}
		authenticators = append(authenticators, bearerAuth)
		logger.Info("Bearer authentication enabled")
	}

	if cfg.Auth.OIDC.Enabled {
		oidcAuth, err := oidc.New(ctx, oidc.Config{
			Enabled:      true,
			Issuer:       cfg.Auth.OIDC.Issuer,
			ClientID:     cfg.Auth.OIDC.ClientID,
			ClientSecret: cfg.Auth.OIDC.ClientSecret,
			RedirectURL:  cfg.Auth.OIDC.RedirectURL,
			Scopes:       cfg.Auth.OIDC.Scopes,
			CookieName:   cfg.Auth.OIDC.CookieName,
			CookieSecret: cfg.Auth.OIDC.CookieSecret,
		}, logger, metricsCollector)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OIDC authenticator: %w", err)
		}
		authenticators = append(authenticators, oidcAuth)
		logger.Info("OIDC authentication enabled")
	}

	if len(authenticators) == 0 {
		logger.Warn("No authentication methods enabled")
	}

	return NewManager(authenticators, publicPaths, logger), nil
}
