package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/systmms/vaultstore/internal/credentials"
	dserrors "github.com/systmms/vaultstore/internal/errors"
	"github.com/systmms/vaultstore/internal/keystore"
	"github.com/systmms/vaultstore/internal/logging"
	"github.com/systmms/vaultstore/internal/metrics"
	"github.com/systmms/vaultstore/internal/secure"
	"github.com/systmms/vaultstore/internal/session"
	"github.com/systmms/vaultstore/internal/vault"
)

// DefaultPath is the configuration file used when none is given
const DefaultPath = "vaultstore.yaml"

//go:embed schema.json
var schema []byte

// Config holds the runtime configuration
type Config struct {
	Path string `yaml:"-"`

	Address       string `yaml:"address"`
	Namespace     string `yaml:"namespace"`
	Mount         string `yaml:"mount"`
	Prefix        string `yaml:"prefix"`
	EngineVersion int    `yaml:"engine_version"`
	StorageMode   string `yaml:"storage_mode"`

	Timeouts Timeouts `yaml:"timeouts"`
	TLS      TLS      `yaml:"tls"`
	Auth     Auth     `yaml:"auth"`
}

// Timeouts holds the client timing settings. Open and read are seconds.
type Timeouts struct {
	Open            int `yaml:"open"`
	Read            int `yaml:"read"`
	MaxRetries      int `yaml:"max_retries"`
	RetryIntervalMs int `yaml:"retry_interval_ms"`
}

// TLS holds transport security settings. The keystore password is a
// credential reference.
type TLS struct {
	Verify           bool   `yaml:"verify"`
	CACert           string `yaml:"ca_cert"`
	CAPath           string `yaml:"ca_path"`
	ClientCert       string `yaml:"client_cert"`
	ClientKey        string `yaml:"client_key"`
	Keystore         string `yaml:"keystore"`
	KeystorePassword string `yaml:"keystore_password"`
}

// Auth holds the login settings. Secret fields are credential references
// (literal, env:NAME, file:/path or keyring:service/account).
type Auth struct {
	Method             string `yaml:"method"`
	Mount              string `yaml:"mount"`
	Token              string `yaml:"token"`
	Username           string `yaml:"username"`
	Password           string `yaml:"password"`
	RoleID             string `yaml:"role_id"`
	SecretID           string `yaml:"secret_id"`
	GitHubToken        string `yaml:"github_token"`
	AWSRole            string `yaml:"aws_role"`
	AWSRegion          string `yaml:"aws_region"`
	AWSHeaderValue     string `yaml:"aws_header_value"`
	AWSAccessKeyID     string `yaml:"aws_access_key_id"`
	AWSSecretAccessKey string `yaml:"aws_secret_access_key"`
}

// Default returns the configuration used for unset keys
func Default() *Config {
	return &Config{
		Path:          DefaultPath,
		Mount:         vault.DefaultMount,
		EngineVersion: 1,
		StorageMode:   string(keystore.ModeManaged),
		Timeouts: Timeouts{
			Open:            int(vault.DefaultOpenTimeout / time.Second),
			Read:            int(vault.DefaultReadTimeout / time.Second),
			MaxRetries:      vault.DefaultMaxRetries,
			RetryIntervalMs: int(vault.DefaultRetryInterval / time.Millisecond),
		},
		TLS:  TLS{Verify: true},
		Auth: Auth{Method: vault.AuthToken},
	}
}

// Load reads the file at path, applies VAULT_* environment overrides and
// validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dserrors.ConfigError{
				Field:      "path",
				Value:      path,
				Message:    "configuration file not found",
				Suggestion: "Create " + DefaultPath + " or pass --config",
			}
		}
		return nil, dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults after checking it against the
// configuration schema. Environment overrides are not applied.
func Parse(data []byte) (*Config, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	if err := validateSchema(doc); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("failed to decode configuration: %v", err),
			Suggestion: "Compare the file with the documented configuration keys",
		}
	}
	return cfg, nil
}

func validateSchema(doc map[string]interface{}) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(jsonData))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var messages []string
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}
	field := result.Errors()[0].Field()
	return dserrors.ConfigError{
		Field:      field,
		Message:    "schema validation failed:\n  - " + strings.Join(messages, "\n  - "),
		Suggestion: "Fix the listed keys; unknown keys are rejected",
	}
}

// ApplyEnv overrides settings from the standard VAULT_* variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set("VAULT_ADDR", &c.Address)
	set("VAULT_NAMESPACE", &c.Namespace)
	set("VAULT_CACERT", &c.TLS.CACert)
	set("VAULT_CAPATH", &c.TLS.CAPath)
	set("VAULT_CLIENT_CERT", &c.TLS.ClientCert)
	set("VAULT_CLIENT_KEY", &c.TLS.ClientKey)

	if v, ok := lookup("VAULT_TOKEN"); ok && v != "" && c.Auth.Method == vault.AuthToken {
		c.Auth.Token = v
	}
	if v, ok := lookup("VAULT_SKIP_VERIFY"); ok {
		if skip, err := strconv.ParseBool(v); err == nil {
			c.TLS.Verify = !skip
		}
	}
}

// Validate checks the settings that the schema cannot express
func (c *Config) Validate() error {
	if c.Address == "" {
		return dserrors.ConfigError{
			Field:      "address",
			Message:    "Vault address is required",
			Suggestion: "Set 'address' in the configuration file or export VAULT_ADDR",
		}
	}

	switch keystore.Mode(c.StorageMode) {
	case keystore.ModeManaged, keystore.ModeRaw:
	default:
		return dserrors.ConfigError{
			Field:      "storage_mode",
			Value:      c.StorageMode,
			Message:    "unknown storage mode",
			Suggestion: "Use 'managed' or 'raw'",
		}
	}

	if (c.TLS.ClientCert == "") != (c.TLS.ClientKey == "") {
		return dserrors.ConfigError{
			Field:      "tls.client_cert",
			Message:    "client certificate and key must be set together",
			Suggestion: "Set both 'tls.client_cert' and 'tls.client_key'",
		}
	}

	required := func(field, value string) error {
		if value != "" {
			return nil
		}
		return dserrors.ConfigError{
			Field:      field,
			Value:      c.Auth.Method,
			Message:    fmt.Sprintf("%s is required for %s auth", field, c.Auth.Method),
			Suggestion: fmt.Sprintf("Set '%s' to a value or a reference such as env:NAME", field),
		}
	}

	switch c.Auth.Method {
	case vault.AuthToken:
		return required("auth.token", c.Auth.Token)
	case vault.AuthCert:
		if c.TLS.Keystore == "" && c.TLS.ClientCert == "" {
			return dserrors.ConfigError{
				Field:      "tls.keystore",
				Value:      c.Auth.Method,
				Message:    "cert auth needs a client certificate",
				Suggestion: "Set 'tls.keystore' or 'tls.client_cert' and 'tls.client_key'",
			}
		}
	case vault.AuthUserpass:
		if err := required("auth.username", c.Auth.Username); err != nil {
			return err
		}
		return required("auth.password", c.Auth.Password)
	case vault.AuthAppRole:
		if err := required("auth.role_id", c.Auth.RoleID); err != nil {
			return err
		}
		return required("auth.secret_id", c.Auth.SecretID)
	case vault.AuthGitHub:
		return required("auth.github_token", c.Auth.GitHubToken)
	case vault.AuthAWS:
		if err := required("auth.aws_role", c.Auth.AWSRole); err != nil {
			return err
		}
		if (c.Auth.AWSAccessKeyID == "") != (c.Auth.AWSSecretAccessKey == "") {
			return dserrors.ConfigError{
				Field:      "auth.aws_access_key_id",
				Message:    "static AWS keys must be set together",
				Suggestion: "Set both keys, or neither to use the default AWS credential chain",
			}
		}
	default:
		return dserrors.ConfigError{
			Field:      "auth.method",
			Value:      c.Auth.Method,
			Message:    "unknown auth method",
			Suggestion: "Use one of: token, cert, userpass, approle, github, aws",
		}
	}
	return nil
}

// OpenTimeout returns the connection timeout
func (c *Config) OpenTimeout() time.Duration {
	return time.Duration(c.Timeouts.Open) * time.Second
}

// ReadTimeout returns the request timeout
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// RetryInterval returns the wait between retries
func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.Timeouts.RetryIntervalMs) * time.Millisecond
}

// Margin returns the session renewal margin for the configured timeouts
func (c *Config) Margin() time.Duration {
	return session.GuaranteedValidity(c.Timeouts.MaxRetries, c.ReadTimeout(), c.OpenTimeout(), c.RetryInterval())
}

// VaultOptions resolves the credential references and builds the client
// options. The returned secure buffers belong to the caller.
func (c *Config) VaultOptions(resolver *credentials.Resolver, logger *logging.Logger, recorder *metrics.Recorder) (vault.Options, error) {
	if resolver == nil {
		resolver = credentials.NewResolver()
	}

	var resolveErr error
	resolve := func(field, ref string) *secure.SecureBuffer {
		if resolveErr != nil || ref == "" {
			return nil
		}
		buf, err := resolver.ResolveSecure(ref)
		if err != nil {
			resolveErr = dserrors.ConfigError{
				Field:      field,
				Message:    fmt.Sprintf("failed to resolve credential: %v", err),
				Suggestion: "Check that the referenced variable, file or keyring entry exists",
			}
			return nil
		}
		return buf
	}
	plain := func(field, ref string) string {
		if resolveErr != nil || ref == "" {
			return ""
		}
		value, err := resolver.Resolve(ref)
		if err != nil {
			resolveErr = dserrors.ConfigError{
				Field:      field,
				Message:    fmt.Sprintf("failed to resolve credential: %v", err),
				Suggestion: "Check that the referenced variable, file or keyring entry exists",
			}
		}
		return value
	}

	opts := vault.Options{
		Address:       c.Address,
		Namespace:     c.Namespace,
		Mount:         c.Mount,
		EngineVersion: c.EngineVersion,
		OpenTimeout:   c.OpenTimeout(),
		ReadTimeout:   c.ReadTimeout(),
		MaxRetries:    c.Timeouts.MaxRetries,
		RetryInterval: c.RetryInterval(),
		TLS: vault.TLSOptions{
			Verify:           c.TLS.Verify,
			CACert:           c.TLS.CACert,
			CAPath:           c.TLS.CAPath,
			ClientCert:       c.TLS.ClientCert,
			ClientKey:        c.TLS.ClientKey,
			Keystore:         c.TLS.Keystore,
			KeystorePassword: resolve("tls.keystore_password", c.TLS.KeystorePassword),
		},
		Auth: vault.AuthOptions{
			Method:             c.Auth.Method,
			Mount:              c.Auth.Mount,
			Token:              resolve("auth.token", c.Auth.Token),
			Username:           plain("auth.username", c.Auth.Username),
			Password:           resolve("auth.password", c.Auth.Password),
			RoleID:             plain("auth.role_id", c.Auth.RoleID),
			SecretID:           resolve("auth.secret_id", c.Auth.SecretID),
			GitHubToken:        resolve("auth.github_token", c.Auth.GitHubToken),
			AWSRole:            c.Auth.AWSRole,
			AWSRegion:          c.Auth.AWSRegion,
			AWSHeaderValue:     c.Auth.AWSHeaderValue,
			AWSAccessKeyID:     plain("auth.aws_access_key_id", c.Auth.AWSAccessKeyID),
			AWSSecretAccessKey: resolve("auth.aws_secret_access_key", c.Auth.AWSSecretAccessKey),
		},
		Logger:  logger,
		Metrics: recorder,
	}
	if resolveErr != nil {
		return vault.Options{}, resolveErr
	}
	return opts, nil
}

// StoreOptions returns the keystore settings; the caller adds the session
func (c *Config) StoreOptions(logger *logging.Logger, recorder *metrics.Recorder) keystore.Options {
	return keystore.Options{
		Mount:   c.Mount,
		Prefix:  c.Prefix,
		Mode:    keystore.Mode(c.StorageMode),
		Logger:  logger,
		Metrics: recorder,
	}
}
