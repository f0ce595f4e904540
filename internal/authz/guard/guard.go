// internal/authz/guard/guard.go
package guard

import (
	"context"
	"net/http"

	"authzbff/internal/auth"
	"authzbff/internal/authz"
	"authzbff/internal/httputils"
	"authzbff/internal/observability/logging"
	"authzbff/internal/observability/metrics"
	"authzbff/internal/rpcerror"
)

// Config describes the console resource access is checked against
type Config struct {
	// PolicyStoreID is the policy store holding console permissions
	PolicyStoreID string

	// SubjectType is the entity type of authenticated identities
	SubjectType string

	// ResourceType is the entity type of the console resource
	ResourceType string

	// ResourceID is the console resource identifier
	ResourceID string
}

// Guard checks console access for authenticated identities
type Guard struct {
	client  authz.Client
	config  Config
	logger  *logging.Logger
	metrics *metrics.Collector
}

// New creates a new console guard
func New(config Config, client authz.Client, logger *logging.Logger, metricsCollector *metrics.Collector) *Guard {
	return &Guard{
		client:  client,
		config:  config,
		logger:  logger.WithModule("authz.guard"),
		metrics: metricsCollector,
	}
}

// Check asks the backend whether identity holds permission on the console resource
func (g *Guard) Check(ctx context.Context, identity *auth.Identity, permission string) (authz.Decision, error) {
	resp, err := g.client.IsAuthorized(ctx, &authz.Request{
		PolicyStoreID: g.config.PolicyStoreID,
		Principal:     authz.EntityRef{EntityType: g.config.SubjectType, EntityID: identity.Subject},
		Action:        authz.EntityRef{EntityType: "permission", EntityID: permission},
		Resource:      authz.EntityRef{EntityType: g.config.ResourceType, EntityID: g.config.ResourceID},
		Context:       map[string]any{},
	})
	if err != nil {
		return authz.Unspecified, err
	}
	if resp == nil {
		return authz.Unspecified, nil
	}
	return resp.Decision.Normalize(), nil
}

// Middleware creates an HTTP middleware requiring permission on the console resource
func (g *Guard) Middleware(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx, g.logger)

			identity := auth.IdentityFromContext(ctx)
			if identity == nil {
				logger.Debug("Authorization failed: no identity in context")
				httputils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			decision, err := g.Check(ctx, identity, permission)
			if err != nil {
				logger.Error("Authorization failed: error", logging.Err(err), "permission", permission)
				g.metrics.RecordConsoleAuthorization(permission, false)
				rpcerror.WriteError(w, err)
				return
			}

			if decision != authz.Allow {
				logger.Info("Authorization failed: permission denied",
					"subject", identity.Subject,
					"permission", permission,
					"decision", decision,
				)
				g.metrics.RecordConsoleAuthorization(permission, false)
				httputils.WriteError(w, http.StatusForbidden, "Forbidden")
				return
			}

			logger.Debug("Authorization successful",
				"subject", identity.Subject,
				"permission", permission,
			)
			g.metrics.RecordConsoleAuthorization(permission, true)
			next.ServeHTTP(w, r)
		})
	}
}
