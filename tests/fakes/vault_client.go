package fakes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/systmms/vaultstore/internal/vault"
)

// FakeVaultClient is an in-memory vault.Client. Addresses are stored as
// given, with surrounding slashes trimmed.
type FakeVaultClient struct {
	mu sync.Mutex

	// Secrets maps address -> field -> value
	Secrets map[string]map[string]string

	// TTL is returned by LookupSelf
	TTL time.Duration
	// LookupErr is returned by LookupSelf if set
	LookupErr error
	// LoginToken is returned by Login
	LoginToken vault.Token
	// LoginErr is returned by Login if set
	LoginErr error
	// CurrentToken is the last token passed to SetToken
	CurrentToken string

	// Optional hooks, consulted before the in-memory behavior
	ReadFunc   func(ctx context.Context, address string) (map[string]string, error)
	WriteFunc  func(ctx context.Context, address string, fields map[string]string) error
	DeleteFunc func(ctx context.Context, address string) error
	ListFunc   func(ctx context.Context, address string) ([]string, error)
	LoginFunc  func(ctx context.Context) (vault.Token, error)
	LookupFunc func(ctx context.Context) (time.Duration, error)

	calls map[string]int
}

var _ vault.Client = (*FakeVaultClient)(nil)

// NewFakeVaultClient creates an empty fake with a long-lived token
func NewFakeVaultClient() *FakeVaultClient {
	return &FakeVaultClient{
		Secrets:    make(map[string]map[string]string),
		TTL:        time.Hour,
		LoginToken: vault.Token{Value: "s.fake", TTL: time.Hour, Renewable: true},
		calls:      make(map[string]int),
	}
}

// SetSecret stores fields at address
func (f *FakeVaultClient) SetSecret(address string, fields map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[strings.Trim(address, "/")] = copyFields(fields)
}

// Secret returns a copy of the fields stored at address
func (f *FakeVaultClient) Secret(address string) (map[string]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fields, ok := f.Secrets[strings.Trim(address, "/")]
	return copyFields(fields), ok
}

// SetTTL changes the TTL reported by LookupSelf
func (f *FakeVaultClient) SetTTL(ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TTL = ttl
}

// Calls returns how often an operation ("read", "write", "delete", "list",
// "login", "lookup-self", "set-token") was invoked
func (f *FakeVaultClient) Calls(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[operation]
}

// ResetCalls clears the call counters
func (f *FakeVaultClient) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = make(map[string]int)
}

func (f *FakeVaultClient) count(operation string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[operation]++
}

// Read returns the fields at address or vault.ErrSecretNotFound
func (f *FakeVaultClient) Read(ctx context.Context, address string) (map[string]string, error) {
	f.count("read")
	if f.ReadFunc != nil {
		return f.ReadFunc(ctx, address)
	}

	fields, ok := f.Secret(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", vault.ErrSecretNotFound, address)
	}
	return fields, nil
}

// Write replaces the fields at address
func (f *FakeVaultClient) Write(ctx context.Context, address string, fields map[string]string) error {
	f.count("write")
	if f.WriteFunc != nil {
		return f.WriteFunc(ctx, address, fields)
	}
	f.SetSecret(address, fields)
	return nil
}

// Delete removes the secret at address
func (f *FakeVaultClient) Delete(ctx context.Context, address string) error {
	f.count("delete")
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, address)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Secrets, strings.Trim(address, "/"))
	return nil
}

// List returns the direct children of address, directories suffixed with "/"
func (f *FakeVaultClient) List(ctx context.Context, address string) ([]string, error) {
	f.count("list")
	if f.ListFunc != nil {
		return f.ListFunc(ctx, address)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := strings.Trim(address, "/") + "/"
	seen := make(map[string]bool)
	for key := range f.Secrets {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || rest == "" {
			continue
		}
		if head, _, nested := strings.Cut(rest, "/"); nested {
			seen[head+"/"] = true
		} else {
			seen[rest] = true
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Login returns LoginToken or LoginErr
func (f *FakeVaultClient) Login(ctx context.Context) (vault.Token, error) {
	f.count("login")
	if f.LoginFunc != nil {
		return f.LoginFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoginErr != nil {
		return vault.Token{}, f.LoginErr
	}
	return f.LoginToken, nil
}

// LookupSelf returns TTL or LookupErr
func (f *FakeVaultClient) LookupSelf(ctx context.Context) (time.Duration, error) {
	f.count("lookup-self")
	if f.LookupFunc != nil {
		return f.LookupFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LookupErr != nil {
		return 0, f.LookupErr
	}
	return f.TTL, nil
}

// SetToken records the installed token
func (f *FakeVaultClient) SetToken(token string) {
	f.count("set-token")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CurrentToken = token
}

func copyFields(fields map[string]string) map[string]string {
	if fields == nil {
		return nil
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
