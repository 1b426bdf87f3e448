package vault

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/vaultstore/internal/errors"
	"github.com/systmms/vaultstore/internal/secure"
)

func TestOptions_ApplyDefaults(t *testing.T) {
	t.Parallel()

	opts := Options{Address: "http://127.0.0.1:8200"}
	opts.applyDefaults()

	assert.Equal(t, DefaultMount, opts.Mount)
	assert.Equal(t, 1, opts.EngineVersion)
	assert.Equal(t, DefaultOpenTimeout, opts.OpenTimeout)
	assert.Equal(t, DefaultReadTimeout, opts.ReadTimeout)
	assert.Equal(t, DefaultRetryInterval, opts.RetryInterval)
	assert.Equal(t, AuthToken, opts.Auth.Method)
}

func TestOptions_Validate(t *testing.T) {
	t.Parallel()

	secret := func(s string) *secure.SecureBuffer { return secure.NewSecureString(s) }
	base := func(auth AuthOptions) Options {
		return Options{Address: "http://127.0.0.1:8200", EngineVersion: 1, Auth: auth}
	}

	tests := []struct {
		name      string
		opts      Options
		wantField string
	}{
		{"token ok", base(AuthOptions{Method: AuthToken, Token: secret("root")}), ""},
		{"token missing", base(AuthOptions{Method: AuthToken}), "auth.token"},
		{"missing address", Options{EngineVersion: 1, Auth: AuthOptions{Method: AuthToken, Token: secret("x")}}, "address"},
		{"bad engine", Options{Address: "http://x", EngineVersion: 3, Auth: AuthOptions{Method: AuthToken, Token: secret("x")}}, "engine_version"},
		{"userpass no user", base(AuthOptions{Method: AuthUserpass, Password: secret("p")}), "auth.username"},
		{"userpass no password", base(AuthOptions{Method: AuthUserpass, Username: "alice"}), "auth.password"},
		{"userpass ok", base(AuthOptions{Method: AuthUserpass, Username: "alice", Password: secret("p")}), ""},
		{"approle no role", base(AuthOptions{Method: AuthAppRole, SecretID: secret("s")}), "auth.role_id"},
		{"approle no secret", base(AuthOptions{Method: AuthAppRole, RoleID: "r"}), "auth.secret_id"},
		{"approle ok", base(AuthOptions{Method: AuthAppRole, RoleID: "r", SecretID: secret("s")}), ""},
		{"github no token", base(AuthOptions{Method: AuthGitHub}), "auth.github_token"},
		{"cert no certificate", base(AuthOptions{Method: AuthCert}), "tls.keystore"},
		{"aws no role", base(AuthOptions{Method: AuthAWS}), "auth.aws_role"},
		{"aws half static keys", base(AuthOptions{Method: AuthAWS, AWSRole: "r", AWSAccessKeyID: "AKID"}), "auth.aws_access_key_id"},
		{"aws default chain", base(AuthOptions{Method: AuthAWS, AWSRole: "r"}), ""},
		{"unknown method", base(AuthOptions{Method: "ldap"}), "auth.method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.opts.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cfgErr dserrors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestOptions_ClientCertPair(t *testing.T) {
	t.Parallel()

	opts := Options{
		Address:       "http://127.0.0.1:8200",
		EngineVersion: 1,
		TLS:           TLSOptions{ClientCert: "/etc/vault/client.pem"},
		Auth:          AuthOptions{Method: AuthCert},
	}
	err := opts.Validate()
	var cfgErr dserrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "tls.client_cert", cfgErr.Field)
}

func TestAuthOptions_MountPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "approle", AuthOptions{Method: AuthAppRole}.MountPath())
	assert.Equal(t, "ci-approle", AuthOptions{Method: AuthAppRole, Mount: "ci-approle"}.MountPath())
}

func TestNewClient_InvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Options{Address: "http://127.0.0.1:8200", Auth: AuthOptions{Method: AuthGitHub}, OpenTimeout: time.Second})
	var cfgErr dserrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "auth.github_token", cfgErr.Field)
}
