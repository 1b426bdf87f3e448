// Package testutil provides test utilities and helpers for vaultstore tests.
//
// This package contains shared test infrastructure including configuration
// builders, logger helpers, the storage contract suite and a Vault dev
// server harness.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/systmms/vaultstore/internal/config"
	"github.com/systmms/vaultstore/internal/vault"
)

// TestConfigBuilder provides a fluent API for building test configurations.
//
// This builder allows programmatic creation of vaultstore.yaml files for
// testing without manually writing YAML strings. It starts from the
// defaults with retries disabled, so failing requests fail fast.
//
// Example usage:
//
//	path := NewTestConfig(t).
//	    WithAddress(srv.URL).
//	    WithEngine("secret", 2).
//	    WithPrefix("keys").
//	    WithToken("s.root").
//	    Write()
type TestConfigBuilder struct {
	config  *config.Config
	tempDir string
	t       *testing.T
}

// NewTestConfig creates a new TestConfigBuilder.
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	cfg := config.Default()
	cfg.Timeouts.MaxRetries = 0
	cfg.Timeouts.RetryIntervalMs = 10

	return &TestConfigBuilder{
		config:  cfg,
		tempDir: t.TempDir(),
		t:       t,
	}
}

// WithAddress sets the Vault address.
func (b *TestConfigBuilder) WithAddress(address string) *TestConfigBuilder {
	b.config.Address = address
	return b
}

// WithEngine sets the KV mount and engine version.
func (b *TestConfigBuilder) WithEngine(mount string, version int) *TestConfigBuilder {
	b.config.Mount = mount
	b.config.EngineVersion = version
	return b
}

// WithPrefix sets the key prefix below the mount.
func (b *TestConfigBuilder) WithPrefix(prefix string) *TestConfigBuilder {
	b.config.Prefix = prefix
	return b
}

// WithMode sets the storage mode ("managed" or "raw").
func (b *TestConfigBuilder) WithMode(mode string) *TestConfigBuilder {
	b.config.StorageMode = mode
	return b
}

// WithToken selects token auth. token may be a credential reference.
func (b *TestConfigBuilder) WithToken(token string) *TestConfigBuilder {
	b.config.Auth = config.Auth{Method: vault.AuthToken, Token: token}
	return b
}

// WithAppRole selects approle auth. secretID may be a credential reference.
func (b *TestConfigBuilder) WithAppRole(roleID, secretID string) *TestConfigBuilder {
	b.config.Auth = config.Auth{Method: vault.AuthAppRole, RoleID: roleID, SecretID: secretID}
	return b
}

// WithTimeouts sets the client timeouts.
func (b *TestConfigBuilder) WithTimeouts(timeouts config.Timeouts) *TestConfigBuilder {
	b.config.Timeouts = timeouts
	return b
}

// Write writes the configuration to a temporary file and returns the path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	path := filepath.Join(b.tempDir, config.DefaultPath)
	if err := b.WriteYAML(path); err != nil {
		b.t.Fatalf("Failed to write test config: %v", err)
	}

	return path
}

// WriteYAML writes the configuration to a specific path.
func (b *TestConfigBuilder) WriteYAML(path string) error {
	b.t.Helper()

	data, err := yaml.Marshal(b.config)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// WriteTestConfig writes a YAML string to a temporary file and returns its path.
//
// Example:
//
//	path := WriteTestConfig(t, `
//	address: http://127.0.0.1:8200
//	auth: {method: token, token: env:VAULT_TEST_TOKEN}
//	`)
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultPath)
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	return path
}
