// internal/batch/admission.go
package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"authzbff/internal/authz"
)

// AdmissionError reports a request rejected before any scenario ran
type AdmissionError struct {
	Message string
}

func (e *AdmissionError) Error() string {
	return e.Message
}

func admissionErrorf(format string, args ...any) *AdmissionError {
	return &AdmissionError{Message: fmt.Sprintf(format, args...)}
}

// IsAdmissionError reports whether err is an admission failure
func IsAdmissionError(err error) bool {
	var ae *AdmissionError
	return errors.As(err, &ae)
}

// DecodeRequest reads a {"scenarios": [...]} body and enforces the batch limits
func DecodeRequest(r io.Reader) ([]Scenario, error) {
	var body struct {
		Scenarios json.RawMessage `json:"scenarios"`
	}
	dec := json.NewDecoder(r)
	if err := dec.Decode(&body); err != nil {
		return nil, admissionErrorf("request body must be a JSON object: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, admissionErrorf("request body must contain a single JSON object")
	}

	raw := bytes.TrimSpace(body.Scenarios)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, admissionErrorf("scenarios is required")
	}
	if raw[0] != '[' {
		return nil, admissionErrorf("scenarios must be an array")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, admissionErrorf("scenarios must be an array")
	}
	if len(items) == 0 {
		return nil, admissionErrorf("scenarios must contain at least one scenario")
	}
	if len(items) > MaxScenarios {
		return nil, admissionErrorf("scenarios must contain at most %d scenarios, got %d", MaxScenarios, len(items))
	}

	scenarios := make([]Scenario, len(items))
	for i, item := range items {
		scenario, err := decodeScenario(item)
		if err != nil {
			return nil, admissionErrorf("scenario %d: %s", i+1, err.Error())
		}
		scenarios[i] = scenario
	}

	return scenarios, nil
}

// DecodeScenario reads a single scenario body
func DecodeScenario(r io.Reader) (Scenario, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Scenario{}, admissionErrorf("failed to read request body: %v", err)
	}
	scenario, err := decodeScenario(raw)
	if err != nil {
		return Scenario{}, &AdmissionError{Message: err.Error()}
	}
	return scenario, nil
}

func decodeScenario(raw json.RawMessage) (Scenario, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Scenario{}, errors.New("must be an object")
	}

	var scenario Scenario
	if err := json.Unmarshal(trimmed, &scenario); err != nil {
		return Scenario{}, fmt.Errorf("malformed scenario: %w", err)
	}
	if err := scenario.Validate(); err != nil {
		return Scenario{}, err
	}
	return scenario, nil
}

// Validate checks that all required fields are present
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.PolicyStoreID) == "" {
		return errors.New("policy_store_id is required")
	}
	refs := []struct {
		field string
		ref   authz.EntityRef
	}{
		{"principal", s.Principal},
		{"action", s.Action},
		{"resource", s.Resource},
	}
	for _, r := range refs {
		if strings.TrimSpace(r.ref.EntityType) == "" {
			return fmt.Errorf("%s.entity_type is required", r.field)
		}
		if strings.TrimSpace(r.ref.EntityID) == "" {
			return fmt.Errorf("%s.entity_id is required", r.field)
		}
	}
	return nil
}
