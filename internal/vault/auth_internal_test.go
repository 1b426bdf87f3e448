package vault

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeField(t *testing.T, data map[string]interface{}, key string) string {
	t.Helper()
	raw, ok := data[key].(string)
	require.True(t, ok, "missing %s", key)
	decoded, err := base64.StdEncoding.DecodeString(raw)
	require.NoError(t, err)
	return string(decoded)
}

func TestSignedCallerIdentity(t *testing.T) {
	t.Parallel()

	creds := aws.Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "wJalrXUtnFEMI/K7MDENG"}
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	data, err := signedCallerIdentity(context.Background(), creds, "us-east-1", "vault.example.com", now)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, data["iam_http_request_method"])
	assert.Equal(t, "https://sts.amazonaws.com/", decodeField(t, data, "iam_request_url"))
	assert.Equal(t, stsRequestBody, decodeField(t, data, "iam_request_body"))

	var headers http.Header
	require.NoError(t, json.Unmarshal([]byte(decodeField(t, data, "iam_request_headers")), &headers))
	assert.Equal(t, "vault.example.com", headers.Get("X-Vault-AWS-IAM-Server-ID"))
	assert.Equal(t, "20240102T030405Z", headers.Get("X-Amz-Date"))
	auth := headers.Get("Authorization")
	assert.Contains(t, auth, "AWS4-HMAC-SHA256")
	assert.Contains(t, auth, "Credential=AKIDEXAMPLE/20240102/us-east-1/sts/aws4_request")
	assert.Contains(t, auth, "x-vault-aws-iam-server-id")
}

func TestSignedCallerIdentity_RegionalEndpoint(t *testing.T) {
	t.Parallel()

	creds := aws.Credentials{AccessKeyID: "AKID", SecretAccessKey: "secret"}
	data, err := signedCallerIdentity(context.Background(), creds, "eu-west-1", "", time.Now())
	require.NoError(t, err)

	assert.Equal(t, "https://sts.eu-west-1.amazonaws.com/", decodeField(t, data, "iam_request_url"))

	var headers http.Header
	require.NoError(t, json.Unmarshal([]byte(decodeField(t, data, "iam_request_headers")), &headers))
	assert.Empty(t, headers.Get("X-Vault-AWS-IAM-Server-ID"))
	assert.Contains(t, headers.Get("Authorization"), "/eu-west-1/sts/aws4_request")
}
