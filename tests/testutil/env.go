package testutil

import "testing"

// VaultEnvVars are the variables the Vault client and configuration read.
var VaultEnvVars = []string{
	"VAULT_ADDR",
	"VAULT_TOKEN",
	"VAULT_NAMESPACE",
	"VAULT_CACERT",
	"VAULT_CAPATH",
	"VAULT_CLIENT_CERT",
	"VAULT_CLIENT_KEY",
	"VAULT_SKIP_VERIFY",
	"VAULT_MAX_RETRIES",
	"VAULT_AGENT_ADDR",
}

// ClearVaultEnv blanks the VAULT_* variables for the duration of a test so
// the developer's shell cannot leak into the client under test.
//
// Tests calling this cannot run in parallel.
func ClearVaultEnv(t *testing.T) {
	t.Helper()

	for _, key := range VaultEnvVars {
		t.Setenv(key, "")
	}
}

// SetupTestEnv sets environment variables for the duration of a test.
//
// The original environment is restored automatically when the test completes.
//
// Example usage:
//
//	SetupTestEnv(t, map[string]string{
//	    "VAULT_ADDR":         "http://127.0.0.1:8200",
//	    "VAULT_SKIP_VERIFY":  "true",
//	})
func SetupTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()

	for key, value := range vars {
		t.Setenv(key, value)
	}
}
