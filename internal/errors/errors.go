package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/systmms/vaultstore/pkg/storage"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// VaultError wraps a backend failure with a suggestion derived from its text
func VaultError(address, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("Vault error during %s", operation),
		Details:    err.Error(),
		Suggestion: VaultSuggestion(address, err),
		Err:        err,
	}
}

// VaultSuggestion provides helpful suggestions based on Vault errors
func VaultSuggestion(address string, err error) string {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "no such host"):
		return "Check that Vault server is running and accessible at " + address
	case strings.Contains(errStr, "permission denied"), strings.Contains(errStr, "403"):
		return "Check your Vault policies for this mount and prefix"
	case strings.Contains(errStr, "invalid token"):
		return "Your Vault token may be expired or invalid. Run 'vaultstore check' to log in again"
	case strings.Contains(errStr, "namespace"):
		return "Check your Vault namespace configuration"
	case strings.Contains(errStr, "tls"), strings.Contains(errStr, "certificate"):
		return "Check the tls section of your configuration or set VAULT_CACERT"
	case strings.Contains(errStr, "timeout"):
		return "The request timed out. Raise timeouts.read or check your network"
	case strings.Contains(errStr, "auth"), strings.Contains(errStr, "login"):
		return "Authentication failed. Check your credentials and auth method configuration"
	default:
		return "Check your Vault configuration and connectivity. Run 'vaultstore check' for diagnostics"
	}
}

// SimplifyError turns storage errors into user-facing errors; other errors pass through
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}

	var storageErr *storage.Error
	if !errors.As(err, &storageErr) {
		return err
	}

	path := storageErr.Path.String()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return UserError{
			Message:    fmt.Sprintf("Nothing stored at '%s'", path),
			Suggestion: "List the parent directory with 'vaultstore ls' to see what exists",
			Err:        err,
		}
	case errors.Is(err, storage.ErrIsDirectory):
		return UserError{
			Message:    fmt.Sprintf("'%s' is a directory", path),
			Suggestion: fmt.Sprintf("Use 'vaultstore ls %s' to list its entries", path),
			Err:        err,
		}
	case errors.Is(err, storage.ErrEncoding):
		return UserError{
			Message:    fmt.Sprintf("Content for '%s' could not be encoded", path),
			Details:    err.Error(),
			Suggestion: "Secrets hold UTF-8 text; base64-encode binary content before storing it",
			Err:        err,
		}
	default:
		return UserError{
			Message:    fmt.Sprintf("Failed to %s '%s'", storageErr.Event, path),
			Details:    err.Error(),
			Suggestion: VaultSuggestion("the configured address", err),
			Err:        err,
		}
	}
}
