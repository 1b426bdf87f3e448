package vault

import (
	"fmt"
	"time"

	dserrors "github.com/systmms/vaultstore/internal/errors"
	"github.com/systmms/vaultstore/internal/logging"
	"github.com/systmms/vaultstore/internal/metrics"
	"github.com/systmms/vaultstore/internal/secure"
)

// Auth methods
const (
	AuthToken    = "token"
	AuthCert     = "cert"
	AuthUserpass = "userpass"
	AuthAppRole  = "approle"
	AuthGitHub   = "github"
	AuthAWS      = "aws"
)

const (
	DefaultMount         = "secret"
	DefaultOpenTimeout   = 5 * time.Second
	DefaultReadTimeout   = 20 * time.Second
	DefaultMaxRetries    = 5
	DefaultRetryInterval = time.Second
)

// Options configures an APIClient
type Options struct {
	Address       string
	Namespace     string
	Mount         string
	EngineVersion int // 1 or 2

	OpenTimeout   time.Duration // connection establishment
	ReadTimeout   time.Duration // whole request
	MaxRetries    int
	RetryInterval time.Duration

	TLS  TLSOptions
	Auth AuthOptions

	Logger  *logging.Logger
	Metrics *metrics.Recorder
}

// TLSOptions holds transport security settings. File options are paths.
type TLSOptions struct {
	Verify           bool
	CACert           string
	CAPath           string
	ClientCert       string
	ClientKey        string
	Keystore         string // PKCS#12 bundle
	KeystorePassword *secure.SecureBuffer
}

// AuthOptions holds the login credentials. Secrets are kept sealed until the
// login request is built.
type AuthOptions struct {
	Method string
	Mount  string // defaults to the method name

	Token       *secure.SecureBuffer
	Username    string
	Password    *secure.SecureBuffer
	RoleID      string
	SecretID    *secure.SecureBuffer
	GitHubToken *secure.SecureBuffer

	AWSRole            string
	AWSRegion          string
	AWSHeaderValue     string // X-Vault-AWS-IAM-Server-ID
	AWSAccessKeyID     string
	AWSSecretAccessKey *secure.SecureBuffer
}

// MountPath returns the auth mount, falling back to the method name.
func (a AuthOptions) MountPath() string {
	if a.Mount != "" {
		return a.Mount
	}
	return a.Method
}

func (o *Options) applyDefaults() {
	if o.Mount == "" {
		o.Mount = DefaultMount
	}
	if o.EngineVersion == 0 {
		o.EngineVersion = 1
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = DefaultOpenTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.Auth.Method == "" {
		o.Auth.Method = AuthToken
	}
}

// Validate checks the options without contacting the server
func (o Options) Validate() error {
	if o.Address == "" {
		return dserrors.ConfigError{
			Field:      "address",
			Message:    "Vault address is required",
			Suggestion: "Set 'address' in the configuration or the VAULT_ADDR environment variable",
		}
	}

	if o.EngineVersion != 1 && o.EngineVersion != 2 {
		return dserrors.ConfigError{
			Field:      "engine_version",
			Value:      o.EngineVersion,
			Message:    "unsupported KV engine version",
			Suggestion: "Use 1 or 2",
		}
	}

	if (o.TLS.ClientCert == "") != (o.TLS.ClientKey == "") {
		return dserrors.ConfigError{
			Field:      "tls.client_cert",
			Message:    "client certificate and key must be set together",
			Suggestion: "Set both 'tls.client_cert' and 'tls.client_key'",
		}
	}

	a := o.Auth
	switch a.Method {
	case AuthToken:
		if a.Token.IsEmpty() {
			return missingCredential("auth.token", "Vault token is required for token auth", "Set 'auth.token' or the VAULT_TOKEN environment variable")
		}
	case AuthCert:
		if o.TLS.Keystore == "" && o.TLS.ClientCert == "" {
			return missingCredential("tls.keystore", "a client certificate is required for cert auth", "Set 'tls.keystore' or 'tls.client_cert' and 'tls.client_key'")
		}
	case AuthUserpass:
		if a.Username == "" {
			return missingCredential("auth.username", "Username is required for userpass auth", "Set 'auth.username'")
		}
		if a.Password.IsEmpty() {
			return missingCredential("auth.password", "Password is required for userpass auth", "Set 'auth.password', e.g. 'env:VAULT_PASSWORD'")
		}
	case AuthAppRole:
		if a.RoleID == "" {
			return missingCredential("auth.role_id", "Role ID is required for approle auth", "Set 'auth.role_id'")
		}
		if a.SecretID.IsEmpty() {
			return missingCredential("auth.secret_id", "Secret ID is required for approle auth", "Set 'auth.secret_id', e.g. 'env:VAULT_SECRET_ID'")
		}
	case AuthGitHub:
		if a.GitHubToken.IsEmpty() {
			return missingCredential("auth.github_token", "GitHub token is required for github auth", "Set 'auth.github_token', e.g. 'keyring:github/vault'")
		}
	case AuthAWS:
		if a.AWSRole == "" {
			return missingCredential("auth.aws_role", "AWS role is required for AWS auth", "Set 'auth.aws_role'")
		}
		if (a.AWSAccessKeyID == "") != a.AWSSecretAccessKey.IsEmpty() {
			return missingCredential("auth.aws_access_key_id", "static AWS credentials need both key ID and secret key", "Set both keys or neither to use the default credential chain")
		}
	default:
		return dserrors.ConfigError{
			Field:      "auth.method",
			Value:      a.Method,
			Message:    "unsupported authentication method",
			Suggestion: fmt.Sprintf("Supported methods: %s, %s, %s, %s, %s, %s", AuthToken, AuthCert, AuthUserpass, AuthAppRole, AuthGitHub, AuthAWS),
		}
	}

	return nil
}

func missingCredential(field, message, suggestion string) error {
	return dserrors.ConfigError{Field: field, Message: message, Suggestion: suggestion}
}
