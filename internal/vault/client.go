package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"

	dserrors "github.com/systmms/vaultstore/internal/errors"
	"github.com/systmms/vaultstore/internal/logging"
	"github.com/systmms/vaultstore/internal/metrics"
)

var (
	// ErrSecretNotFound is returned by Read when nothing is stored at the address
	ErrSecretNotFound = errors.New("secret not found")

	// ErrPermissionDenied is returned when the server rejects the token (HTTP 403)
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAuthFailed is returned when a login attempt does not produce a token
	ErrAuthFailed = errors.New("authentication failed")
)

// Token is the result of a login
type Token struct {
	Value     string
	TTL       time.Duration
	Renewable bool
}

// Client is the subset of the secrets backend used by the storage layer.
// Addresses are logical ("mount/prefix/path"); engine-specific path layout is
// the client's concern.
type Client interface {
	Read(ctx context.Context, address string) (map[string]string, error)
	Write(ctx context.Context, address string, fields map[string]string) error
	Delete(ctx context.Context, address string) error
	List(ctx context.Context, address string) ([]string, error)

	Login(ctx context.Context) (Token, error)
	LookupSelf(ctx context.Context) (time.Duration, error)
	SetToken(token string)
}

// APIClient implements Client on top of the official Vault API client
type APIClient struct {
	api     *api.Client
	opts    Options
	logger  *logging.Logger
	metrics *metrics.Recorder
}

var _ Client = (*APIClient)(nil)

// NewClient builds a client from options. No request is made; call Login
// before the first read.
func NewClient(opts Options) (*APIClient, error) {
	opts.applyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	cfg := api.DefaultConfig()
	if cfg.Error != nil {
		return nil, fmt.Errorf("failed to read vault environment: %w", cfg.Error)
	}

	cfg.Address = opts.Address
	cfg.Timeout = opts.ReadTimeout
	cfg.MaxRetries = opts.MaxRetries
	cfg.MinRetryWait = opts.RetryInterval
	cfg.MaxRetryWait = opts.RetryInterval

	if transport, ok := cfg.HttpClient.Transport.(*http.Transport); ok {
		transport.DialContext = (&net.Dialer{
			Timeout:   opts.OpenTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext
	}

	if err := configureTLS(cfg, opts.TLS); err != nil {
		return nil, err
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, dserrors.ConfigError{
			Field:      "address",
			Value:      opts.Address,
			Message:    fmt.Sprintf("failed to create vault client: %v", err),
			Suggestion: "Check the address format, e.g. https://vault.example.com:8200",
		}
	}

	// api.NewClient picks up VAULT_TOKEN on its own; the session decides which token is live
	client.ClearToken()
	if opts.Namespace != "" {
		client.SetNamespace(opts.Namespace)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &APIClient{
		api:     client,
		opts:    opts,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Address returns the server address
func (c *APIClient) Address() string {
	return c.opts.Address
}

// SetToken installs the token used for subsequent requests
func (c *APIClient) SetToken(token string) {
	c.api.SetToken(token)
}

// Read fetches the fields stored at address
func (c *APIClient) Read(ctx context.Context, address string) (map[string]string, error) {
	start := time.Now()
	path := c.dataPath(address)

	secret, err := c.api.Logical().ReadWithContext(ctx, path)
	if err != nil {
		err = classify(err)
		c.record("read", err, start)
		return nil, fmt.Errorf("failed to read %s: %w", address, err)
	}

	data := secretData(secret)
	if c.opts.EngineVersion == 2 && data != nil {
		// deleted or destroyed versions come back with data: null
		inner, ok := data["data"].(map[string]interface{})
		if !ok {
			data = nil
		} else {
			data = inner
		}
	}

	if data == nil {
		c.record("read", ErrSecretNotFound, start)
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, address)
	}

	fields := make(map[string]string, len(data))
	for k, v := range data {
		s, err := stringify(v)
		if err != nil {
			c.record("read", err, start)
			return nil, fmt.Errorf("failed to convert field %s of %s: %w", k, address, err)
		}
		fields[k] = s
	}

	c.record("read", nil, start)
	return fields, nil
}

// Write replaces the whole field set stored at address
func (c *APIClient) Write(ctx context.Context, address string, fields map[string]string) error {
	start := time.Now()

	body := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		body[k] = v
	}
	if c.opts.EngineVersion == 2 {
		body = map[string]interface{}{"data": body}
	}

	_, err := c.api.Logical().WriteWithContext(ctx, c.dataPath(address), body)
	if err != nil {
		err = classify(err)
		c.record("write", err, start)
		return fmt.Errorf("failed to write %s: %w", address, err)
	}

	c.record("write", nil, start)
	return nil
}

// Delete removes the secret at address. On KV v2 every version is removed
// so the key disappears from listings.
func (c *APIClient) Delete(ctx context.Context, address string) error {
	start := time.Now()

	path := c.dataPath(address)
	if c.opts.EngineVersion == 2 {
		path = c.metadataPath(address)
	}

	if _, err := c.api.Logical().DeleteWithContext(ctx, path); err != nil {
		err = classify(err)
		c.record("delete", err, start)
		return fmt.Errorf("failed to delete %s: %w", address, err)
	}

	c.record("delete", nil, start)
	return nil
}

// List returns the child keys of address. Directory children end in "/".
// An address without children yields an empty list.
func (c *APIClient) List(ctx context.Context, address string) ([]string, error) {
	start := time.Now()

	path := c.dataPath(address)
	if c.opts.EngineVersion == 2 {
		path = c.metadataPath(address)
	}

	secret, err := c.api.Logical().ListWithContext(ctx, path)
	if err != nil {
		err = classify(err)
		c.record("list", err, start)
		return nil, fmt.Errorf("failed to list %s: %w", address, err)
	}

	data := secretData(secret)
	if data == nil {
		c.record("list", nil, start)
		return []string{}, nil
	}

	raw, _ := data["keys"].([]interface{})
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if s, ok := k.(string); ok {
			keys = append(keys, s)
		}
	}

	c.record("list", nil, start)
	return keys, nil
}

// dataPath maps a logical address to the engine path used for read and write
func (c *APIClient) dataPath(address string) string {
	if c.opts.EngineVersion != 2 {
		return strings.TrimSuffix(address, "/")
	}
	return c.enginePath(address, "data")
}

// metadataPath maps a logical address to the KV v2 metadata path
func (c *APIClient) metadataPath(address string) string {
	return c.enginePath(address, "metadata")
}

func (c *APIClient) enginePath(address, segment string) string {
	mount := strings.Trim(c.opts.Mount, "/")
	rest, ok := strings.CutPrefix(strings.Trim(address, "/"), mount)
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		// not under the configured mount, leave untouched
		return strings.TrimSuffix(address, "/")
	}
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return mount + "/" + segment
	}
	return mount + "/" + segment + "/" + rest
}

func (c *APIClient) record(operation string, err error, start time.Time) {
	outcome := metrics.OutcomeSuccess
	switch {
	case errors.Is(err, ErrSecretNotFound):
		outcome = metrics.OutcomeNotFound
	case err != nil:
		outcome = metrics.OutcomeError
	}
	c.metrics.BackendRequest(operation, outcome, time.Since(start).Seconds())
	if err != nil && outcome == metrics.OutcomeError {
		c.logger.Debug("vault %s failed: %v", operation, err)
	}
}

func secretData(secret *api.Secret) map[string]interface{} {
	if secret == nil || secret.Data == nil {
		return nil
	}
	return secret.Data
}

// classify tags 403 responses with ErrPermissionDenied
func classify(err error) error {
	var respErr *api.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return err
}

// stringify converts a field value decoded from JSON to its string form
func stringify(value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.Number:
		return v.String(), nil
	case int, int32, int64:
		return fmt.Sprintf("%d", v), nil
	case float32, float64:
		return fmt.Sprintf("%g", v), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		// nested values are kept as JSON
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
