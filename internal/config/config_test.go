package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/systmms/vaultstore/internal/credentials"
	dserrors "github.com/systmms/vaultstore/internal/errors"
	"github.com/systmms/vaultstore/internal/keystore"
	"github.com/systmms/vaultstore/internal/vault"
)

const fullConfig = `
address: https://vault.internal:8200
namespace: team-a
mount: kv
prefix: keys/prod
engine_version: 2
storage_mode: raw
timeouts: {open: 2, read: 10, max_retries: 3, retry_interval_ms: 500}
tls:
  verify: false
  ca_cert: /etc/vault/ca.pem
auth:
  method: approle
  mount: ci
  role_id: role-123
  secret_id: env:TEST_VAULTSTORE_SECRET_ID
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vaultstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func configErrorField(t *testing.T, err error) string {
	t.Helper()
	var cfgErr dserrors.ConfigError
	require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %T: %v", err, err)
	return cfgErr.Field
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte("address: http://127.0.0.1:8200\n"))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Mount)
	assert.Equal(t, 1, cfg.EngineVersion)
	assert.Equal(t, "managed", cfg.StorageMode)
	assert.Equal(t, 5*time.Second, cfg.OpenTimeout())
	assert.Equal(t, 20*time.Second, cfg.ReadTimeout())
	assert.Equal(t, 5, cfg.Timeouts.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryInterval())
	assert.True(t, cfg.TLS.Verify)
	assert.Equal(t, vault.AuthToken, cfg.Auth.Method)

	// 5 × (20s + 5s + 1s) is above the cap
	assert.Equal(t, 60*time.Second, cfg.Margin())
}

func TestParse_EmptyDocument(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Mount, cfg.Mount)
}

func TestParse_FullDocument(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://vault.internal:8200", cfg.Address)
	assert.Equal(t, "team-a", cfg.Namespace)
	assert.Equal(t, "kv", cfg.Mount)
	assert.Equal(t, "keys/prod", cfg.Prefix)
	assert.Equal(t, 2, cfg.EngineVersion)
	assert.Equal(t, "raw", cfg.StorageMode)
	assert.False(t, cfg.TLS.Verify)
	assert.Equal(t, "/etc/vault/ca.pem", cfg.TLS.CACert)
	assert.Equal(t, "approle", cfg.Auth.Method)
	assert.Equal(t, "ci", cfg.Auth.Mount)

	// 3 × (10s + 2s + 0s), the 500ms retry interval counts as zero seconds
	assert.Equal(t, 36*time.Second, cfg.Margin())

	store := cfg.StoreOptions(nil, nil)
	assert.Equal(t, keystore.Options{Mount: "kv", Prefix: "keys/prod", Mode: keystore.ModeRaw}, store)
}

func TestParse_ExplicitZeroRetries(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte("timeouts: {max_retries: 0}\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Timeouts.MaxRetries)
	assert.Equal(t, time.Duration(0), cfg.Margin())
}

func TestParse_SchemaViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown top-level key", "adress: http://x\n"},
		{"bad engine version", "engine_version: 3\n"},
		{"bad storage mode", "storage_mode: json\n"},
		{"unknown auth method", "auth: {method: kerberos}\n"},
		{"negative retries", "timeouts: {max_retries: -1}\n"},
		{"string timeout", "timeouts: {read: soon}\n"},
		{"unknown tls key", "tls: {insecure: true}\n"},
		{"empty mount", "mount: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			configErrorField(t, err)
			assert.Contains(t, err.Error(), "schema validation failed")
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("address: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML syntax")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, "path", configErrorField(t, err))
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestLoad_AppliesEnvironment(t *testing.T) {
	t.Setenv("VAULT_ADDR", "https://override:8200")
	t.Setenv("VAULT_NAMESPACE", "")
	t.Setenv("VAULT_SKIP_VERIFY", "true")
	t.Setenv("VAULT_TOKEN", "s.from-env")
	for _, key := range []string{"VAULT_CACERT", "VAULT_CAPATH", "VAULT_CLIENT_CERT", "VAULT_CLIENT_KEY"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(writeConfig(t, "address: https://file:8200\nnamespace: ns\n"))
	require.NoError(t, err)

	assert.Equal(t, "https://override:8200", cfg.Address)
	assert.Equal(t, "ns", cfg.Namespace, "empty variables do not override")
	assert.False(t, cfg.TLS.Verify)
	assert.Equal(t, "s.from-env", cfg.Auth.Token)
}

func TestApplyEnv_TokenOnlyForTokenAuth(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Auth.Method = vault.AuthAppRole
	cfg.ApplyEnv(func(key string) (string, bool) {
		if key == "VAULT_TOKEN" {
			return "s.ignored", true
		}
		return "", false
	})
	assert.Empty(t, cfg.Auth.Token)
}

func TestApplyEnv_InvalidSkipVerifyIgnored(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.ApplyEnv(func(key string) (string, bool) {
		if key == "VAULT_SKIP_VERIFY" {
			return "maybe", true
		}
		return "", false
	})
	assert.True(t, cfg.TLS.Verify)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid token", func(c *Config) { c.Auth.Token = "s.x" }, ""},
		{"missing address", func(c *Config) { c.Address = ""; c.Auth.Token = "s.x" }, "address"},
		{"missing token", func(c *Config) {}, "auth.token"},
		{"half client cert", func(c *Config) { c.Auth.Token = "s.x"; c.TLS.ClientCert = "c.pem" }, "tls.client_cert"},
		{"cert without material", func(c *Config) { c.Auth.Method = vault.AuthCert }, "tls.keystore"},
		{"cert with keystore", func(c *Config) { c.Auth.Method = vault.AuthCert; c.TLS.Keystore = "id.p12" }, ""},
		{"userpass without password", func(c *Config) { c.Auth.Method = vault.AuthUserpass; c.Auth.Username = "u" }, "auth.password"},
		{"approle without role", func(c *Config) { c.Auth.Method = vault.AuthAppRole; c.Auth.SecretID = "s" }, "auth.role_id"},
		{"approle without secret", func(c *Config) { c.Auth.Method = vault.AuthAppRole; c.Auth.RoleID = "r" }, "auth.secret_id"},
		{"github without token", func(c *Config) { c.Auth.Method = vault.AuthGitHub }, "auth.github_token"},
		{"aws without role", func(c *Config) { c.Auth.Method = vault.AuthAWS }, "auth.aws_role"},
		{"aws half keys", func(c *Config) {
			c.Auth.Method = vault.AuthAWS
			c.Auth.AWSRole = "r"
			c.Auth.AWSAccessKeyID = "AKIA"
		}, "auth.aws_access_key_id"},
		{"aws default chain", func(c *Config) { c.Auth.Method = vault.AuthAWS; c.Auth.AWSRole = "r" }, ""},
		{"unknown method", func(c *Config) { c.Auth.Method = "ldap" }, "auth.method"},
		{"unknown mode", func(c *Config) { c.Auth.Token = "s.x"; c.StorageMode = "json" }, "storage_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			cfg.Address = "http://127.0.0.1:8200"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.field, configErrorField(t, err))
		})
	}
}

func TestVaultOptions_ResolvesReferences(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set("vaultstore", "approle", "secret-from-keyring"))
	t.Setenv("TEST_VAULTSTORE_SECRET_ID", "secret-from-env")

	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)
	cfg.ApplyEnv(noEnv)

	opts, err := cfg.VaultOptions(credentials.NewResolver(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://vault.internal:8200", opts.Address)
	assert.Equal(t, "team-a", opts.Namespace)
	assert.Equal(t, 2, opts.EngineVersion)
	assert.Equal(t, 2*time.Second, opts.OpenTimeout)
	assert.Equal(t, 10*time.Second, opts.ReadTimeout)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, opts.RetryInterval)
	assert.False(t, opts.TLS.Verify)
	assert.Equal(t, "role-123", opts.Auth.RoleID)
	assert.Equal(t, "ci", opts.Auth.MountPath())
	assert.Nil(t, opts.Auth.Token)

	secretID, err := opts.Auth.SecretID.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", secretID)

	cfg.Auth.SecretID = "keyring:vaultstore/approle"
	opts, err = cfg.VaultOptions(credentials.NewResolver(), nil, nil)
	require.NoError(t, err)
	secretID, err = opts.Auth.SecretID.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "secret-from-keyring", secretID)
	assert.NoError(t, opts.Validate())
}

func TestVaultOptions_UnresolvableReference(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Address = "http://127.0.0.1:8200"
	cfg.Auth.Token = "file:" + filepath.Join(t.TempDir(), "missing-token")

	_, err := cfg.VaultOptions(credentials.NewResolver(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, "auth.token", configErrorField(t, err))
	assert.Contains(t, err.Error(), "credential not found")
}
