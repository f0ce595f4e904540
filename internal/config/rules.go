// internal/config/rules.go
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule actions
const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
	ActionAuth  = "auth"
)

// rulesFile is the on-disk layout of a rules file
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules loads route access rules from a YAML file
func LoadRules(rulesPath string) ([]Rule, error) {
	data, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", rulesPath, err)
	}

	for i := range file.Rules {
		file.Rules[i].Action = strings.ToLower(strings.TrimSpace(file.Rules[i].Action))
		for j, m := range file.Rules[i].Methods {
			file.Rules[i].Methods[j] = strings.ToUpper(m)
		}
	}

	return file.Rules, nil
}

func validAction(action string) bool {
	switch action {
	case ActionAllow, ActionDeny, ActionAuth:
		return true
	}
	return false
}

// validateRules checks rule shape and that console checks can be performed when needed
func validateRules(cfg *Config) error {
	if !validAction(cfg.DefaultAction) {
		return fmt.Errorf("invalid default rule action: %q", cfg.DefaultAction)
	}

	needsConsole := cfg.DefaultAction == ActionAuth
	if needsConsole && cfg.DefaultPermission == "" {
		return fmt.Errorf("default permission is required when the default action is auth")
	}
	seen := make(map[string]struct{}, len(cfg.Rules))
	for i, rule := range cfg.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rule %d: name is required", i+1)
		}
		if _, dup := seen[rule.Name]; dup {
			return fmt.Errorf("rule %q: duplicate name", rule.Name)
		}
		seen[rule.Name] = struct{}{}

		if !validAction(rule.Action) {
			return fmt.Errorf("rule %q: invalid action %q", rule.Name, rule.Action)
		}
		if len(rule.Paths) == 0 {
			return fmt.Errorf("rule %q: at least one path is required", rule.Name)
		}
		if rule.Action == ActionAuth {
			if rule.Permission == "" {
				return fmt.Errorf("rule %q: permission is required for auth rules", rule.Name)
			}
			needsConsole = true
		}
	}

	if needsConsole && cfg.Console.PolicyStoreID == "" {
		return fmt.Errorf("console policy store ID is required when auth rules are configured")
	}
	return nil
}
