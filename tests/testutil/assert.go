package testutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/vaultstore/pkg/storage"
)

// AssertSecretRedacted verifies that a secret value does not appear in a string.
//
// This is a specialized assertion for security testing. It checks that the
// secret value is not present in the output, and that the [REDACTED] marker
// is present instead.
//
// Example usage:
//
//	output := logs.GetOutput()
//	AssertSecretRedacted(t, output, "s.issued-1")
func AssertSecretRedacted(t *testing.T, output, secretValue string) {
	t.Helper()

	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in output", secretValue)

	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker when secret is used")
}

// AssertNoSecretLeak verifies that none of the secrets appear in output.
func AssertNoSecretLeak(t *testing.T, output string, secrets []string) {
	t.Helper()

	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		assert.NotContains(t, output, secret, "Secret %q leaked into output", secret)
	}
}

// AssertStorageError verifies that err is a *storage.Error wrapping sentinel
// and raised during event.
//
// Example usage:
//
//	_, err := store.GetResource(ctx, path)
//	AssertStorageError(t, err, storage.ErrNotFound, storage.EventRead)
func AssertStorageError(t *testing.T, err error, sentinel error, event storage.Event) {
	t.Helper()

	require.Error(t, err)

	var storageErr *storage.Error
	require.True(t, errors.As(err, &storageErr), "expected *storage.Error, got %T: %v", err, err)
	assert.True(t, errors.Is(err, sentinel), "expected %v, got %v", sentinel, err)
	assert.Equal(t, event, storageErr.Event)
}

// AssertErrorContains verifies that err is non-nil and its message contains substr.
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()

	require.Error(t, err, "Expected an error but got nil")
	assert.Contains(t, err.Error(), substr)
}

// AssertLinesContain verifies that output contains each expected line, in order.
func AssertLinesContain(t *testing.T, output string, expectedLines []string) {
	t.Helper()

	next := 0
	for _, line := range strings.Split(output, "\n") {
		if next < len(expectedLines) && strings.Contains(line, expectedLines[next]) {
			next++
		}
	}
	if next < len(expectedLines) {
		assert.Fail(t, "missing expected line", "line %q (in order) not found in:\n%s", expectedLines[next], output)
	}
}
