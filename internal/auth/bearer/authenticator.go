// internal/auth/bearer/authenticator.go
package bearer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"authzbff/internal/auth"
	"authzbff/internal/httputils"
	"authzbff/internal/observability/logging"
	"authzbff/internal/observability/metrics"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/exp/slices"
)

// Authenticator implements Bearer token authentication
type Authenticator struct {
	logger   *logging.Logger
	metrics  *metrics.Collector
	enabled  bool
	verifier *oidc.IDTokenVerifier
	clientID string
}

// Config holds Bearer authenticator configuration
type Config struct {
	// Enabled indicates whether Bearer authentication is enabled
	Enabled bool

	// Issuer is the token issuer URL
	Issuer string

	// ClientID is the client ID expected in aud or azp
	ClientID string
}

// audiences unmarshals an audience claim that is either a string or an array
type audiences []string

func (a *audiences) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = []string{single}
		return nil
	}

	var multiple []string
	if err := json.Unmarshal(data, &multiple); err == nil {
		*a = multiple
		return nil
	}

	return fmt.Errorf("invalid audience claim format")
}

// New creates a new Bearer authenticator, discovering the issuer's keys
func New(ctx context.Context, config Config, logger *logging.Logger, metricsCollector *metrics.Collector) (*Authenticator, error) {
	if !config.Enabled {
		return NewWithVerifier(config, nil, logger, metricsCollector), nil
	}

	if config.Issuer == "" {
		return nil, fmt.Errorf("bearer authentication enabled but no issuer provided")
	}
	if config.ClientID == "" {
		return nil, fmt.Errorf("bearer authentication enabled but no client ID provided")
	}

	logger.Debug("Initializing OIDC provider for Bearer authentication", "issuer", config.Issuer)
	provider, err := oidc.NewProvider(ctx, config.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OIDC provider for Bearer: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID:          config.ClientID,
		SkipClientIDCheck: true, // aud/azp checked below
	})
	return NewWithVerifier(config, verifier, logger, metricsCollector), nil
}

// NewWithVerifier creates a Bearer authenticator around an existing token verifier
func NewWithVerifier(config Config, verifier *oidc.IDTokenVerifier, logger *logging.Logger, metricsCollector *metrics.Collector) *Authenticator {
	return &Authenticator{
		logger:   logger.WithModule("auth.bearer"),
		metrics:  metricsCollector,
		enabled:  config.Enabled && verifier != nil,
		verifier: verifier,
		clientID: config.ClientID,
	}
}

// Name returns the name of this authenticator
func (a *Authenticator) Name() string {
	return "bearer"
}

// GetMiddleware returns an http.Handler middleware that performs Bearer authentication.
// A presented token that fails validation is rejected without falling back to other methods.
func (a *Authenticator) GetMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		logger := logging.FromContext(ctx, a.logger)

		if identity := auth.IdentityFromContext(ctx); identity != nil {
			logger.Debug("Skipping Bearer: identity already set", "subject", identity.Subject)
			next.ServeHTTP(w, r)
			return
		}

		tokenStr, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || tokenStr == "" {
			next.ServeHTTP(w, r)
			return
		}

		idToken, err := a.verifier.Verify(ctx, tokenStr)
		if err != nil {
			logger.Info("Bearer token verification failed", logging.Err(err))
			a.reject(w, "Invalid Bearer token")
			return
		}

		var claims struct {
			Subject string    `json:"sub"`
			Azp     string    `json:"azp,omitempty"`
			Aud     audiences `json:"aud,omitempty"`
			Scope   string    `json:"scope,omitempty"`
		}
		if err := idToken.Claims(&claims); err != nil {
			logger.Error("Failed to parse claims from Bearer token", logging.Err(err))
			a.reject(w, "Failed to parse token claims")
			return
		}

		if claims.Azp != a.clientID && !slices.Contains(claims.Aud, a.clientID) {
			logger.Info("Bearer token audience mismatch",
				"expected_client_id", a.clientID,
				"aud", claims.Aud,
				"azp", claims.Azp,
			)
			a.reject(w, "Invalid Bearer token audience")
			return
		}

		identity := &auth.Identity{
			Subject:  claims.Subject,
			Provider: string(auth.AuthTypeBearer),
			Attributes: map[string]any{
				"scope": claims.Scope,
				"azp":   claims.Azp,
			},
		}

		logger.Debug("Bearer token valid", "subject", claims.Subject, "path", r.URL.Path)
		a.metrics.RecordAuthentication(a.Name(), true)

		next.ServeHTTP(w, r.WithContext(auth.Authenticated(ctx, identity)))
	})
}

func (a *Authenticator) reject(w http.ResponseWriter, msg string) {
	a.metrics.RecordAuthentication(a.Name(), false)
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	httputils.WriteError(w, http.StatusUnauthorized, msg)
}
