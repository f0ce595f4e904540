// internal/authz/types.go
package authz

import (
	"context"
	"encoding/json"
	"strings"
)

// Decision represents an authorization decision returned by the backend
type Decision string

const (
	// Allow indicates the backend granted the request
	Allow Decision = "ALLOW"
	// Deny indicates the backend denied the request
	Deny Decision = "DENY"
	// Unspecified indicates no applicable determination was made
	Unspecified Decision = "UNSPECIFIED"
)

// Normalize maps any value other than ALLOW or DENY to UNSPECIFIED
func (d Decision) Normalize() Decision {
	switch Decision(strings.ToUpper(string(d))) {
	case Allow:
		return Allow
	case Deny:
		return Deny
	default:
		return Unspecified
	}
}

// EntityRef identifies a principal, action or resource
type EntityRef struct {
	// EntityType is the type of the entity (e.g. "User", "document")
	EntityType string `json:"entity_type"`

	// EntityID is the identifier of the entity within its type
	EntityID string `json:"entity_id"`
}

// String renders the reference as type:id
func (e EntityRef) String() string {
	return e.EntityType + ":" + e.EntityID
}

// Request represents a single authorization question
type Request struct {
	// PolicyStoreID references the policy store to evaluate against
	PolicyStoreID string

	// Principal is the entity performing the action
	Principal EntityRef

	// Action is the action being performed
	Action EntityRef

	// Resource is the entity being acted upon
	Resource EntityRef

	// Context holds additional evaluation attributes; never nil when sent
	Context map[string]any

	// Entities is an opaque backend-specific entity list
	Entities json.RawMessage
}

// Response represents the backend's answer
type Response struct {
	// Decision is the authorization decision
	Decision Decision

	// DeterminingPolicies lists the policies that produced the decision
	DeterminingPolicies []string

	// Errors holds warnings reported by the backend alongside the decision
	Errors []string
}

// Client is the capability used to ask the authorization backend a question.
// Errors should carry a gRPC status when the backend supplied one.
type Client interface {
	IsAuthorized(ctx context.Context, req *Request) (*Response, error)
}
