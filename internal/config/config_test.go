package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTHZ_AUTHZ_SPICEDB_TOKEN", "preshared")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.Server.Address)
	assert.Equal(t, ":9090", cfg.Metrics.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "spicedb", cfg.Authz.Type)
	assert.Equal(t, 10*time.Second, cfg.Authz.CallTimeout)
	assert.True(t, cfg.Authz.SpiceDB.StorePrefix)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	assert.Equal(t, ActionAllow, cfg.DefaultAction)
	assert.Equal(t, []string{"openid", "email", "profile"}, cfg.Auth.OIDC.Scopes)
	assert.Empty(t, cfg.Rules)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("AUTHZ_AUTHZ_TYPE", "OpenFGA")
	t.Setenv("AUTHZ_AUTHZ_OPENFGA_API_URL", "http://fga:8080")
	t.Setenv("AUTHZ_BATCH_CONCURRENCY", "3")
	t.Setenv("AUTHZ_AUTHZ_CALL_TIMEOUT", "250ms")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "openfga", cfg.Authz.Type)
	assert.Equal(t, "http://fga:8080", cfg.Authz.OpenFGA.APIURL)
	assert.Equal(t, 3, cfg.Batch.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Authz.CallTimeout)
}

func TestLoadConfigFileWithRules(t *testing.T) {
	rulesPath := writeFile(t, "rules.yaml", `
rules:
  - name: health
    action: allow
    paths: ["/healthz"]
  - name: batch
    action: AUTH
    paths: ["/batch-authorize"]
    methods: ["post"]
    permission: run_tests
`)
	configPath := writeFile(t, "config.yaml", `
AUTHZ_SPICEDB_TOKEN: preshared
CONSOLE_POLICY_STORE_ID: console-store
RULES_PATH: `+rulesPath+`
`)

	cfg, err := Load(configPath)

	require.NoError(t, err)
	assert.Equal(t, "console-store", cfg.Console.PolicyStoreID)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, ActionAuth, cfg.Rules[1].Action)
	assert.Equal(t, []string{"POST"}, cfg.Rules[1].Methods)
	assert.Equal(t, "run_tests", cfg.Rules[1].Permission)
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing spicedb token", nil, "SpiceDB token is required"},
		{"unknown backend", map[string]string{"AUTHZ_AUTHZ_TYPE": "opa"}, "unknown authorization backend"},
		{"bad timeout", map[string]string{"AUTHZ_AUTHZ_SPICEDB_TOKEN": "t", "AUTHZ_SHUTDOWN_TIMEOUT": "soon"}, "invalid shutdown timeout"},
		{"zero concurrency", map[string]string{"AUTHZ_AUTHZ_SPICEDB_TOKEN": "t", "AUTHZ_BATCH_CONCURRENCY": "0"}, "batch concurrency"},
		{"tls without cert", map[string]string{"AUTHZ_AUTHZ_SPICEDB_TOKEN": "t", "AUTHZ_TLS_ENABLED": "true"}, "TLS certificate path is required"},
		{"short oidc secret", map[string]string{
			"AUTHZ_AUTHZ_SPICEDB_TOKEN":     "t",
			"AUTHZ_AUTH_OIDC_ENABLED":       "true",
			"AUTHZ_AUTH_OIDC_ISSUER":        "https://idp.example.com",
			"AUTHZ_AUTH_OIDC_CLIENT_ID":     "console",
			"AUTHZ_AUTH_OIDC_CLIENT_SECRET": "secret",
			"AUTHZ_AUTH_OIDC_REDIRECT_URL":  "https://console.example.com/callback",
			"AUTHZ_AUTH_OIDC_COOKIE_SECRET": "too-short",
		}, "cookie secret"},
		{"auth default without console store", map[string]string{"AUTHZ_AUTHZ_SPICEDB_TOKEN": "t", "AUTHZ_RULES_DEFAULT_ACTION": "auth"}, "console policy store ID is required"},
		{"invalid default action", map[string]string{"AUTHZ_AUTHZ_SPICEDB_TOKEN": "t", "AUTHZ_RULES_DEFAULT_ACTION": "maybe"}, "invalid default rule action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRules(t *testing.T) {
	tests := []struct {
		name    string
		rules   []Rule
		wantErr string
	}{
		{"missing name", []Rule{{Action: ActionAllow, Paths: []string{"/"}}}, "name is required"},
		{"duplicate", []Rule{{Name: "a", Action: ActionAllow, Paths: []string{"/"}}, {Name: "a", Action: ActionDeny, Paths: []string{"/x"}}}, "duplicate name"},
		{"bad action", []Rule{{Name: "a", Action: "proxy", Paths: []string{"/"}}}, "invalid action"},
		{"no paths", []Rule{{Name: "a", Action: ActionDeny}}, "at least one path"},
		{"auth without permission", []Rule{{Name: "a", Action: ActionAuth, Paths: []string{"/"}}}, "permission is required"},
		{"auth without console store", []Rule{{Name: "a", Action: ActionAuth, Paths: []string{"/"}, Permission: "view"}}, "console policy store ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{DefaultAction: ActionAllow, Rules: tt.rules}
			err := validateRules(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestWriteUsage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Settings.WriteUsage(&buf))

	assert.Contains(t, buf.String(), "AUTHZ_BATCH_CONCURRENCY")
	assert.Contains(t, buf.String(), "AUTHZ_AUTHZ_TYPE")
}
