// internal/server/factory.go
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"authzbff/internal/api"
	"authzbff/internal/api/router"
	"authzbff/internal/auth/manager"
	"authzbff/internal/authz"
	"authzbff/internal/authz/guard"
	"authzbff/internal/authz/openfga"
	"authzbff/internal/authz/spicedb"
	"authzbff/internal/batch"
	"authzbff/internal/config"
	"authzbff/internal/observability"
	"authzbff/internal/observability/logging"
	tlsconfig "authzbff/internal/tls"
)

// publicPaths are served without authentication
var publicPaths = []string{"/healthz"}

// NewFromConfig creates a new server from configuration
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	obs, err := observability.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	var tlsSetup *tlsconfig.Config
	var tlsCfg *tls.Config
	if cfg.TLS.Enabled {
		tlsSetup = &tlsconfig.Config{
			Logger:      logger,
			RootCAPath:  cfg.TLS.CAPath,
			AuthCAFiles: cfg.Auth.MTLS.CAPaths,
		}
		tlsCfg, err = tlsSetup.GetTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
		}
	}

	authManager, err := manager.NewManagerFromConfig(ctx, cfg, tlsSetup, publicPaths, logger, obs.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authentication manager: %w", err)
	}

	client, err := newAuthzClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	consoleGuard := guard.New(guard.Config{
		PolicyStoreID: cfg.Console.PolicyStoreID,
		SubjectType:   cfg.Console.SubjectType,
		ResourceType:  cfg.Console.ResourceType,
		ResourceID:    cfg.Console.ResourceID,
	}, client, logger, obs.Metrics)

	executor := batch.NewExecutor(batch.ExecutorConfig{CallTimeout: cfg.Authz.CallTimeout}, client, logger, obs.Metrics)
	runner := batch.NewRunner(batch.RunnerConfig{Concurrency: cfg.Batch.Concurrency}, executor, logger)
	apiHandler := api.New(api.Config{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		CallTimeout:  cfg.Authz.CallTimeout,
	}, client, runner, logger, obs.Metrics)

	rules := router.New(router.Config{
		Rules:             convertRules(cfg.Rules),
		DefaultAction:     cfg.DefaultAction,
		DefaultPermission: cfg.DefaultPermission,
	}, consoleGuard, logger, obs.Metrics)

	// observability -> auth -> rules -> api
	handler := obs.Middleware(authManager.Middleware(rules.Middleware(apiHandler.Router())))

	return New(Config{
		Address:         cfg.Server.Address,
		MetricsAddress:  cfg.Metrics.Address,
		TLSEnabled:      cfg.TLS.Enabled,
		TLSConfig:       tlsCfg,
		CertPath:        cfg.TLS.CertPath,
		KeyPath:         cfg.TLS.KeyPath,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler, obs.MetricsHandler(), logger), nil
}

// newAuthzClient creates the authorization backend selected by cfg.Authz.Type
func newAuthzClient(cfg *config.Config, logger *logging.Logger) (authz.Client, error) {
	switch cfg.Authz.Type {
	case "openfga":
		client, err := openfga.New(openfga.Config{
			APIURL:   cfg.Authz.OpenFGA.APIURL,
			APIToken: cfg.Authz.OpenFGA.APIToken,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenFGA client: %w", err)
		}
		logger.Info("Using OpenFGA authorization backend", "api_url", cfg.Authz.OpenFGA.APIURL)
		return client, nil
	case "spicedb", "":
		spicedbConfig := spicedb.Config{
			Endpoint:        cfg.Authz.SpiceDB.Endpoint,
			Insecure:        cfg.Authz.SpiceDB.Insecure,
			Token:           cfg.Authz.SpiceDB.Token,
			StorePrefix:     cfg.Authz.SpiceDB.StorePrefix,
			FullyConsistent: cfg.Authz.SpiceDB.FullyConsistent,
		}
		conn, err := spicedb.Dial(spicedbConfig)
		if err != nil {
			return nil, err
		}
		logger.Info("Using SpiceDB authorization backend",
			"endpoint", cfg.Authz.SpiceDB.Endpoint,
			"insecure", cfg.Authz.SpiceDB.Insecure,
		)
		return spicedb.New(spicedbConfig, conn, logger), nil
	default:
		return nil, fmt.Errorf("unsupported authorization backend: %q", cfg.Authz.Type)
	}
}

// convertRules converts config.Rule to router.Rule
func convertRules(configRules []config.Rule) []router.Rule {
	routerRules := make([]router.Rule, len(configRules))
	for i, rule := range configRules {
		routerRules[i] = router.Rule{
			Name:        rule.Name,
			Action:      rule.Action,
			Paths:       rule.Paths,
			MatchPrefix: rule.MatchPrefix,
			Methods:     rule.Methods,
			Permission:  rule.Permission,
		}
	}
	return routerRules
}

// Handler returns the API handler chain
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
