package vault

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/hashicorp/vault/api"
	"github.com/hashicorp/vault/api/auth/approle"
	"github.com/hashicorp/vault/api/auth/userpass"
)

// NoExpiry is reported by LookupSelf for tokens without a TTL (root tokens)
const NoExpiry = time.Duration(math.MaxInt64)

const (
	defaultAWSRegion = "us-east-1"
	stsRequestBody   = "Action=GetCallerIdentity&Version=2011-06-15"
)

// Login authenticates with the configured method and returns the new token.
// The client's current token is left untouched; installing the result is
// the caller's decision.
func (c *APIClient) Login(ctx context.Context) (Token, error) {
	start := time.Now()
	method := c.opts.Auth.Method

	token, err := c.login(ctx)
	c.record("login", err, start)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %s login at %s: %w", ErrAuthFailed, method, c.opts.Address, err)
	}

	c.logger.Debug("Logged in to %s with %s auth, token ttl %s", c.opts.Address, method, token.TTL)
	return token, nil
}

func (c *APIClient) login(ctx context.Context) (Token, error) {
	client, err := c.loginClient()
	if err != nil {
		return Token{}, err
	}

	a := c.opts.Auth
	switch a.Method {
	case AuthToken:
		return c.loginToken(ctx, client)
	case AuthUserpass:
		password, err := a.Password.Reveal()
		if err != nil {
			return Token{}, err
		}
		method, err := userpass.NewUserpassAuth(a.Username, &userpass.Password{FromString: password}, userpass.WithMountPath(a.MountPath()))
		if err != nil {
			return Token{}, err
		}
		return tokenFrom(client.Auth().Login(ctx, method))
	case AuthAppRole:
		secretID, err := a.SecretID.Reveal()
		if err != nil {
			return Token{}, err
		}
		method, err := approle.NewAppRoleAuth(a.RoleID, &approle.SecretID{FromString: secretID}, approle.WithMountPath(a.MountPath()))
		if err != nil {
			return Token{}, err
		}
		return tokenFrom(client.Auth().Login(ctx, method))
	case AuthGitHub:
		ghToken, err := a.GitHubToken.Reveal()
		if err != nil {
			return Token{}, err
		}
		return c.performLogin(ctx, client, map[string]interface{}{"token": ghToken})
	case AuthCert:
		// the client certificate on the transport is the credential
		return c.performLogin(ctx, client, map[string]interface{}{})
	case AuthAWS:
		data, err := c.awsLoginData(ctx)
		if err != nil {
			return Token{}, err
		}
		return c.performLogin(ctx, client, data)
	default:
		return Token{}, fmt.Errorf("unsupported auth method: %s", a.Method)
	}
}

// loginClient returns a token-less copy of the client sharing its transport
func (c *APIClient) loginClient() (*api.Client, error) {
	client, err := c.api.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to clone vault client: %w", err)
	}
	client.ClearToken()
	if c.opts.Namespace != "" {
		client.SetNamespace(c.opts.Namespace)
	}
	return client, nil
}

// loginToken validates the configured token and reads its TTL
func (c *APIClient) loginToken(ctx context.Context, client *api.Client) (Token, error) {
	value, err := c.opts.Auth.Token.Reveal()
	if err != nil {
		return Token{}, err
	}
	client.SetToken(value)

	secret, err := client.Auth().Token().LookupSelfWithContext(ctx)
	if err != nil {
		return Token{}, classify(err)
	}
	ttl, err := tokenTTL(secret)
	if err != nil {
		return Token{}, err
	}
	renewable, _ := secret.TokenIsRenewable()

	return Token{Value: value, TTL: ttl, Renewable: renewable}, nil
}

// performLogin posts credentials to auth/<mount>/login
func (c *APIClient) performLogin(ctx context.Context, client *api.Client, data map[string]interface{}) (Token, error) {
	path := fmt.Sprintf("auth/%s/login", strings.Trim(c.opts.Auth.MountPath(), "/"))
	c.logger.Debug("Posting login to %s with fields %s", path, strings.Join(keys(data), ","))
	return tokenFrom(client.Logical().WriteWithContext(ctx, path, data))
}

func tokenFrom(secret *api.Secret, err error) (Token, error) {
	if err != nil {
		return Token{}, classify(err)
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return Token{}, fmt.Errorf("no token received from vault")
	}
	return Token{
		Value:     secret.Auth.ClientToken,
		TTL:       time.Duration(secret.Auth.LeaseDuration) * time.Second,
		Renewable: secret.Auth.Renewable,
	}, nil
}

// LookupSelf returns the remaining TTL of the current token. Tokens that
// never expire report NoExpiry.
func (c *APIClient) LookupSelf(ctx context.Context) (time.Duration, error) {
	start := time.Now()

	secret, err := c.api.Auth().Token().LookupSelfWithContext(ctx)
	if err != nil {
		err = classify(err)
		c.record("lookup-self", err, start)
		return 0, fmt.Errorf("token lookup failed: %w", err)
	}

	ttl, err := tokenTTL(secret)
	c.record("lookup-self", err, start)
	return ttl, err
}

func tokenTTL(secret *api.Secret) (time.Duration, error) {
	ttl, err := secret.TokenTTL()
	if err != nil {
		return 0, fmt.Errorf("failed to parse token ttl: %w", err)
	}
	if ttl == 0 && secret != nil && secret.Data != nil {
		if expire, ok := secret.Data["expire_time"]; ok && expire == nil {
			return NoExpiry, nil
		}
	}
	return ttl, nil
}

// awsLoginData builds the iam login payload: a signed STS
// GetCallerIdentity request that the server replays to identify the caller.
func (c *APIClient) awsLoginData(ctx context.Context) (map[string]interface{}, error) {
	a := c.opts.Auth
	region := a.AWSRegion
	if region == "" {
		region = defaultAWSRegion
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if a.AWSAccessKeyID != "" {
		secretKey, err := a.AWSSecretAccessKey.Reveal()
		if err != nil {
			return nil, err
		}
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(a.AWSAccessKeyID, secretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve AWS credentials: %w", err)
	}

	data, err := signedCallerIdentity(ctx, creds, region, a.AWSHeaderValue, time.Now())
	if err != nil {
		return nil, err
	}
	data["role"] = a.AWSRole
	return data, nil
}

func signedCallerIdentity(ctx context.Context, creds aws.Credentials, region, serverID string, now time.Time) (map[string]interface{}, error) {
	endpoint := "https://sts.amazonaws.com/"
	if region != defaultAWSRegion {
		endpoint = fmt.Sprintf("https://sts.%s.amazonaws.com/", region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(stsRequestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create STS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	if serverID != "" {
		req.Header.Set("X-Vault-AWS-IAM-Server-ID", serverID)
	}

	sum := sha256.Sum256([]byte(stsRequestBody))
	if err := v4.NewSigner().SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), "sts", region, now); err != nil {
		return nil, fmt.Errorf("failed to sign STS request: %w", err)
	}

	headers, err := json.Marshal(req.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to encode STS headers: %w", err)
	}

	enc := base64.StdEncoding
	return map[string]interface{}{
		"iam_http_request_method": http.MethodPost,
		"iam_request_url":         enc.EncodeToString([]byte(endpoint)),
		"iam_request_body":        enc.EncodeToString([]byte(stsRequestBody)),
		"iam_request_headers":     enc.EncodeToString(headers),
	}, nil
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
