package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common label names for consistent metrics
const (
	LabelRule     = "rule"
	LabelAction   = "action"
	LabelStatus   = "status"
	LabelMethod   = "method"
	LabelPath     = "path"
	LabelAuth     = "auth_type"
	LabelSuccess  = "success"
	LabelBackend  = "backend"
	LabelOutcome  = "outcome"
	LabelDecision = "decision"
)

var (
	// RequestsTotal counts all HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authzbff_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	// RequestDuration tracks the duration of HTTP requests
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authzbff_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	// AuthenticationTotal counts authentication attempts by type and outcome
	AuthenticationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authzbff_authentication_total",
			Help: "Total number of authentication attempts",
		},
		[]string{LabelAuth, LabelSuccess},
	)

	// ConsoleAuthorizationTotal counts console access checks by permission and outcome
	ConsoleAuthorizationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authzbff_console_authorization_total",
			Help: "Total number of console access checks",
		},
		[]string{"permission", LabelSuccess},
	)

	// RuleMatchTotal counts rule matches by rule name and action
	RuleMatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authzbff_rule_match_total",
			Help: "Total number of rule matches",
		},
		[]string{LabelRule, LabelAction},
	)

	// BackendCallTotal counts calls to the authorization backend by outcome
	BackendCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authzbff_backend_calls_total",
			Help: "Total number of authorization backend calls",
		},
		[]string{LabelBackend, LabelOutcome},
	)

	// BackendCallDuration tracks the latency of authorization backend calls
	BackendCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authzbff_backend_call_duration_seconds",
			Help:    "Duration of authorization backend calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelBackend},
	)

	// ScenarioResultsTotal counts evaluated batch scenarios
	ScenarioResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authzbff_scenario_results_total",
			Help: "Total number of batch scenarios by decision and success",
		},
		[]string{LabelDecision, LabelSuccess},
	)

	// BatchSize tracks the number of scenarios per accepted batch
	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authzbff_batch_size",
			Help:    "Number of scenarios per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 75, 100},
		},
	)
)

// Collector provides methods for recording metrics
type Collector struct {
	backend string
}

// NewCollector creates a new metrics collector. backend labels authorization backend calls.
func NewCollector(backend string) *Collector {
	return &Collector{backend: backend}
}

// RecordRequest records metrics for an HTTP request
func (c *Collector) RecordRequest(method, path string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, path, http.StatusText(status)).Inc()
	RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAuthentication records an authentication attempt
func (c *Collector) RecordAuthentication(authType string, success bool) {
	AuthenticationTotal.WithLabelValues(authType, boolToString(success)).Inc()
}

// RecordConsoleAuthorization records a console access check
func (c *Collector) RecordConsoleAuthorization(permission string, success bool) {
	ConsoleAuthorizationTotal.WithLabelValues(permission, boolToString(success)).Inc()
}

// RecordRuleMatch records a rule match
func (c *Collector) RecordRuleMatch(ruleName, action string) {
	RuleMatchTotal.WithLabelValues(ruleName, action).Inc()
}

// RecordBackendCall records one call to the authorization backend.
// outcome is "ok" or the status code name of the failure.
func (c *Collector) RecordBackendCall(outcome string, duration time.Duration) {
	BackendCallTotal.WithLabelValues(c.backend, outcome).Inc()
	BackendCallDuration.WithLabelValues(c.backend).Observe(duration.Seconds())
}

// RecordScenario records the outcome of one batch scenario
func (c *Collector) RecordScenario(decision string, success bool) {
	ScenarioResultsTotal.WithLabelValues(decision, boolToString(success)).Inc()
}

// RecordBatch records the size of an accepted batch
func (c *Collector) RecordBatch(size int) {
	BatchSize.Observe(float64(size))
}

// Handler returns an HTTP handler for exposing metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
