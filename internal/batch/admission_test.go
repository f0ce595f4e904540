package batch

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"authzbff/internal/authz"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `{
	"policy_store_id": "ps-1",
	"principal": {"entity_type": "User", "entity_id": "alice"},
	"action": {"entity_type": "Action", "entity_id": "view"},
	"resource": {"entity_type": "Document", "entity_id": "doc-1"}
}`

func batchBody(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = validScenario
	}
	return `{"scenarios": [` + strings.Join(items, ",") + `]}`
}

func TestDecodeRequestBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		wantErr bool
	}{
		{"empty", 0, true},
		{"one", 1, false},
		{"limit", MaxScenarios, false},
		{"over limit", MaxScenarios + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenarios, err := DecodeRequest(strings.NewReader(batchBody(tt.count)))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsAdmissionError(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, scenarios, tt.count)
		})
	}
}

func TestDecodeRequestRejectsMalformedBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"not json", `scenarios`, "request body must be a JSON object"},
		{"missing scenarios", `{}`, "scenarios is required"},
		{"null scenarios", `{"scenarios": null}`, "scenarios is required"},
		{"object instead of list", `{"scenarios": {"a": 1}}`, "scenarios must be an array"},
		{"string instead of list", `{"scenarios": "all"}`, "scenarios must be an array"},
		{"scenario not an object", `{"scenarios": [42]}`, "scenario 1: must be an object"},
		{"missing store", `{"scenarios": [{"principal": {"entity_type": "User", "entity_id": "a"}}]}`, "scenario 1: policy_store_id is required"},
		{"missing action id", `{"scenarios": [` + validScenario + `, {
			"policy_store_id": "ps-1",
			"principal": {"entity_type": "User", "entity_id": "alice"},
			"action": {"entity_type": "Action"},
			"resource": {"entity_type": "Document", "entity_id": "doc-1"}
		}]}`, "scenario 2: action.entity_id is required"},
		{"context not an object", `{"scenarios": [{
			"policy_store_id": "ps-1",
			"principal": {"entity_type": "User", "entity_id": "alice"},
			"action": {"entity_type": "Action", "entity_id": "view"},
			"resource": {"entity_type": "Document", "entity_id": "doc-1"},
			"context": [1, 2]
		}]}`, "scenario 1: malformed scenario"},
		{"trailing garbage", batchBody(1) + ` garbage`, "request body must contain a single JSON object"},
		{"second object", batchBody(1) + batchBody(1), "request body must contain a single JSON object"},
		{"stray closing brace", batchBody(1) + `}`, "request body must contain a single JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest(strings.NewReader(tt.body))
			require.Error(t, err)
			assert.True(t, IsAdmissionError(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestDecodeRequestAllowsTrailingWhitespace(t *testing.T) {
	scenarios, err := DecodeRequest(strings.NewReader(batchBody(2) + "\n\t "))

	require.NoError(t, err)
	assert.Len(t, scenarios, 2)
}

func TestDecodeRequestKeepsOptionalFields(t *testing.T) {
	body := `{"scenarios": [{
		"name": "editor can edit",
		"policy_store_id": "ps-1",
		"principal": {"entity_type": "User", "entity_id": "alice"},
		"action": {"entity_type": "Action", "entity_id": "edit"},
		"resource": {"entity_type": "Document", "entity_id": "doc-1"},
		"context": {"ip": "10.0.0.1", "mfa": true},
		"entities": [{"user": "user:alice", "relation": "editor", "object": "document:doc-1"}]
	}]}`

	scenarios, err := DecodeRequest(strings.NewReader(body))

	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	s := scenarios[0]
	assert.Equal(t, "editor can edit", s.DisplayName(0))
	assert.Equal(t, authz.EntityRef{EntityType: "Action", EntityID: "edit"}, s.Action)
	assert.Equal(t, map[string]any{"ip": "10.0.0.1", "mfa": true}, s.Context)

	var entities []map[string]string
	require.NoError(t, json.Unmarshal(s.Entities, &entities))
	assert.Equal(t, "editor", entities[0]["relation"])
}

func TestDecodeScenario(t *testing.T) {
	s, err := DecodeScenario(strings.NewReader(validScenario))
	require.NoError(t, err)
	assert.Equal(t, "ps-1", s.PolicyStoreID)

	_, err = DecodeScenario(strings.NewReader(`{"policy_store_id": "ps-1"}`))
	require.Error(t, err)
	assert.True(t, IsAdmissionError(err))
	assert.Equal(t, "principal.entity_type is required", err.Error())
}

func TestDisplayName(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, fmt.Sprintf("Scenario %d", i+1), Scenario{}.DisplayName(i))
	}
	assert.Equal(t, "named", Scenario{Name: "named"}.DisplayName(7))
}
