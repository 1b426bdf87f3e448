// Package fakes provides test doubles for the vaultstore backend.
//
// FakeVaultClient is an in-memory vault.Client for unit tests of the storage
// and session layers. FakeVaultServer is an httptest server speaking enough
// of the Vault HTTP API (KV v1/v2, lookup-self, login) to exercise the real
// client end to end. Fakes are manually implemented (not generated) to
// provide precise control over test behavior.
//
// Usage:
//
//	fake := fakes.NewFakeVaultClient()
//	fake.SetSecret("secret/keys/db", map[string]string{"user": "app", "pass": "s3cret"})
//	store := keystore.New(fake, keystore.Options{Mount: "secret", Prefix: "keys"})
//	// Test storage methods...
package fakes
