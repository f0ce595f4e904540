// internal/batch/types.go
package batch

import (
	"encoding/json"
	"fmt"
	"time"

	"authzbff/internal/authz"
)

// MaxScenarios is the largest batch accepted by the batch endpoint
const MaxScenarios = 100

// timestampLayout renders ISO-8601 UTC timestamps with millisecond precision
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Scenario is one authorization question submitted as part of a batch.
// Scenarios have no identity beyond their position in the submitted list.
type Scenario struct {
	// Name is an optional display name
	Name string `json:"name,omitempty"`

	// PolicyStoreID references the policy store to evaluate against
	PolicyStoreID string `json:"policy_store_id"`

	// Principal, Action and Resource describe the question
	Principal authz.EntityRef `json:"principal"`
	Action    authz.EntityRef `json:"action"`
	Resource  authz.EntityRef `json:"resource"`

	// Context holds optional evaluation attributes
	Context map[string]any `json:"context,omitempty"`

	// Entities is an optional opaque entity list passed to the backend
	Entities json.RawMessage `json:"entities,omitempty"`
}

// DisplayName returns the scenario name, or "Scenario N" using the 1-based position
func (s Scenario) DisplayName(index int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("Scenario %d", index+1)
}

// AuthzRequest converts the scenario into a backend request.
// The context defaults to an empty object.
func (s Scenario) AuthzRequest() *authz.Request {
	ctx := s.Context
	if ctx == nil {
		ctx = map[string]any{}
	}
	return &authz.Request{
		PolicyStoreID: s.PolicyStoreID,
		Principal:     s.Principal,
		Action:        s.Action,
		Resource:      s.Resource,
		Context:       ctx,
		Entities:      s.Entities,
	}
}

// Result is the normalized outcome of one scenario
type Result struct {
	ScenarioName        string         `json:"scenario_name"`
	Decision            authz.Decision `json:"decision"`
	LatencyMs           int64          `json:"latency_ms"`
	DeterminingPolicies []string       `json:"determining_policies,omitempty"`
	Errors              []string       `json:"errors,omitempty"`
	Success             bool           `json:"success"`
	Timestamp           string         `json:"timestamp"`
}

// Summary aggregates a list of results
type Summary struct {
	Total            int   `json:"total"`
	Successful       int   `json:"successful"`
	Failed           int   `json:"failed"`
	AvgLatencyMs     int64 `json:"avg_latency_ms"`
	MinLatencyMs     int64 `json:"min_latency_ms"`
	MaxLatencyMs     int64 `json:"max_latency_ms"`
	AllowCount       int   `json:"allow_count"`
	DenyCount        int   `json:"deny_count"`
	UnspecifiedCount int   `json:"unspecified_count"`
}

// FormatTimestamp renders t the way results and responses report time
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
