// Package credentials resolves credential references found in configuration.
//
// A reference is either a literal value or one of:
//
//	env:NAME                  value of environment variable NAME
//	file:/path/to/secret      contents of the file, trailing newline trimmed
//	keyring:service/account   entry from the OS keyring (Keychain, Secret Service)
//
// Resolved values are handed out inside secure buffers so they stay encrypted
// in memory until the moment they are sent to the backend.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/systmms/vaultstore/internal/secure"
)

// Reference schemes.
const (
	SchemeLiteral = "literal"
	SchemeEnv     = "env"
	SchemeFile    = "file"
	SchemeKeyring = "keyring"
)

var (
	// ErrNotFound is returned when a referenced credential does not exist.
	ErrNotFound = errors.New("credential not found")

	// ErrInvalidReference is returned for malformed references.
	ErrInvalidReference = errors.New("invalid credential reference")
)

// Reference is a parsed credential reference.
type Reference struct {
	Scheme string
	Target string
}

// KeyringReader reads an entry from an OS keyring.
type KeyringReader interface {
	Get(service, account string) (string, error)
}

type systemKeyring struct{}

func (systemKeyring) Get(service, account string) (string, error) {
	secret, err := keyring.Get(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return secret, nil
}

// Resolver resolves credential references.
type Resolver struct {
	keyring  KeyringReader
	lookup   func(string) (string, bool)
	readFile func(string) ([]byte, error)
}

// NewResolver creates a resolver backed by the process environment, the
// filesystem and the system keyring.
func NewResolver() *Resolver {
	return NewResolverWithKeyring(systemKeyring{})
}

// NewResolverWithKeyring creates a resolver with a custom keyring reader.
func NewResolverWithKeyring(kr KeyringReader) *Resolver {
	return &Resolver{
		keyring:  kr,
		lookup:   os.LookupEnv,
		readFile: os.ReadFile,
	}
}

// ParseReference splits a reference into scheme and target. Values without a
// known scheme prefix are literals.
func ParseReference(ref string) (Reference, error) {
	scheme, target, found := strings.Cut(ref, ":")
	if !found {
		return Reference{Scheme: SchemeLiteral, Target: ref}, nil
	}

	switch scheme {
	case SchemeEnv, SchemeFile:
		if target == "" {
			return Reference{}, fmt.Errorf("%w: %s reference has no target", ErrInvalidReference, scheme)
		}
	case SchemeKeyring:
		service, account, ok := strings.Cut(target, "/")
		if !ok || strings.TrimSpace(service) == "" || strings.TrimSpace(account) == "" {
			return Reference{}, fmt.Errorf("%w: keyring reference must be service/account, got %q", ErrInvalidReference, target)
		}
	default:
		// "https://..." and similar are plain values
		return Reference{Scheme: SchemeLiteral, Target: ref}, nil
	}

	return Reference{Scheme: scheme, Target: target}, nil
}

// Resolve returns the plain value of a reference. Empty references resolve
// to the empty string.
func (r *Resolver) Resolve(ref string) (string, error) {
	if ref == "" {
		return "", nil
	}

	parsed, err := ParseReference(ref)
	if err != nil {
		return "", err
	}

	switch parsed.Scheme {
	case SchemeEnv:
		value, ok := r.lookup(parsed.Target)
		if !ok {
			return "", fmt.Errorf("%w: environment variable %s is not set", ErrNotFound, parsed.Target)
		}
		return value, nil
	case SchemeFile:
		data, err := r.readFile(parsed.Target)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("%w: file %s does not exist", ErrNotFound, parsed.Target)
			}
			return "", fmt.Errorf("failed to read credential file %s: %w", parsed.Target, err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	case SchemeKeyring:
		service, account, _ := strings.Cut(parsed.Target, "/")
		value, err := r.keyring.Get(strings.TrimSpace(service), strings.TrimSpace(account))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return "", fmt.Errorf("%w: keyring entry %s", ErrNotFound, parsed.Target)
			}
			return "", fmt.Errorf("failed to read keyring entry %s: %w", parsed.Target, err)
		}
		return value, nil
	default:
		return parsed.Target, nil
	}
}

// ResolveSecure resolves a reference into a secure buffer. The caller owns the
// buffer and should Destroy it when done.
func (r *Resolver) ResolveSecure(ref string) (*secure.SecureBuffer, error) {
	value, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return secure.NewSecureString(value), nil
}
