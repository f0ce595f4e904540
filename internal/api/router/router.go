// internal/api/router/router.go
package router

import (
	"net/http"

	"authzbff/internal/auth"
	"authzbff/internal/httputils"
	"authzbff/internal/observability"
	"authzbff/internal/observability/logging"
	"authzbff/internal/observability/metrics"

	"github.com/gorilla/mux"
)

// Rule actions
const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
	ActionAuth  = "auth"
)

// defaultRuleName labels requests no rule matched
const defaultRuleName = "default"

// Rule defines an access rule for console routes
type Rule struct {
	// Name is a unique identifier for the rule
	Name string

	// Action determines what happens to matched requests: "allow", "deny" or "auth"
	Action string

	// Paths is a list of URL paths this rule applies to
	Paths []string

	// MatchPrefix indicates whether to match the path prefix instead of exact match
	MatchPrefix bool

	// Methods is a list of HTTP methods this rule applies to (empty = all methods)
	Methods []string

	// Permission is the console permission required for "auth" rules
	Permission string
}

// Authorizer produces middleware requiring a console permission
type Authorizer interface {
	Middleware(permission string) func(http.Handler) http.Handler
}

// Config holds router configuration
type Config struct {
	// Rules is the ordered list of access rules; the first match decides
	Rules []Rule

	// DefaultAction applies to requests no rule matches
	DefaultAction string

	// DefaultPermission is checked when DefaultAction is "auth"
	DefaultPermission string
}

// Router gates API handlers with access rules
type Router struct {
	config     Config
	authorizer Authorizer
	logger     *logging.Logger
	metrics    *metrics.Collector
}

// New creates a new rules router. authorizer may be nil when no rule uses "auth".
func New(config Config, authorizer Authorizer, logger *logging.Logger, metricsCollector *metrics.Collector) *Router {
	if config.DefaultAction == "" {
		config.DefaultAction = ActionAllow
	}
	return &Router{
		config:     config,
		authorizer: authorizer,
		logger:     logger.WithModule("api.router"),
		metrics:    metricsCollector,
	}
}

// Middleware matches each request against the rules before handing it to next
func (r *Router) Middleware(next http.Handler) http.Handler {
	m := mux.NewRouter()
	m.Use(observability.RouteMiddleware)

	for _, rule := range r.config.Rules {
		r.logger.Debug("Setting up route",
			"name", rule.Name,
			"action", rule.Action,
			"paths", rule.Paths,
			"methods", rule.Methods,
		)

		handler := r.handlerFor(rule.Name, rule.Action, rule.Permission, next)
		for _, path := range rule.Paths {
			var route *mux.Route
			if rule.MatchPrefix {
				route = m.PathPrefix(path)
			} else {
				route = m.Path(path)
			}
			if len(rule.Methods) > 0 {
				route = route.Methods(rule.Methods...)
			}
			route.Handler(handler)
		}
	}

	fallback := r.handlerFor(defaultRuleName, r.config.DefaultAction, r.config.DefaultPermission, next)
	m.NotFoundHandler = fallback
	m.MethodNotAllowedHandler = fallback

	return m
}

// handlerFor builds the handler applying action for the named rule
func (r *Router) handlerFor(name, action, permission string, next http.Handler) http.Handler {
	var decide http.Handler
	switch action {
	case ActionAllow:
		decide = next
	case ActionAuth:
		if r.authorizer == nil {
			r.logger.Warn("Auth rule without a console authorizer, defaulting to deny", "rule", name)
			decide = r.deny(name)
		} else {
			decide = requireIdentity(r.authorizer.Middleware(permission)(next))
		}
	case ActionDeny:
		decide = r.deny(name)
	default:
		r.logger.Warn("Unknown action in rule, defaulting to deny", "rule", name, "action", action)
		action = ActionDeny
		decide = r.deny(name)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logging.FromContext(req.Context(), r.logger).Debug("Rule matched",
			"rule", name,
			"action", action,
			"path", req.URL.Path,
			"method", req.Method,
		)
		r.metrics.RecordRuleMatch(name, action)
		decide.ServeHTTP(w, req)
	})
}

func (r *Router) deny(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logging.FromContext(req.Context(), r.logger).Info("Request denied by rule", "rule", name, "path", req.URL.Path)
		httputils.WriteError(w, http.StatusForbidden, "Forbidden")
	})
}

// requireIdentity answers 401 before the console check when nobody is authenticated
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if auth.IdentityFromContext(req.Context()) == nil {
			httputils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, req)
	})
}
