package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/vaultstore/internal/errors"
	"github.com/systmms/vaultstore/internal/logging"
	"github.com/systmms/vaultstore/pkg/storage"
	"github.com/systmms/vaultstore/tests/fakes"
	"github.com/systmms/vaultstore/tests/testutil"
)

const rootToken = "s.root"

func setup(t *testing.T, mode string) (*App, *fakes.FakeVaultServer) {
	t.Helper()
	testutil.ClearVaultEnv(t)

	srv := fakes.NewFakeVaultServer(t, "secret", 2, rootToken)
	path := testutil.NewTestConfig(t).
		WithAddress(srv.URL).
		WithEngine("secret", 2).
		WithPrefix("keys").
		WithMode(mode).
		WithToken(rootToken).
		Write()

	return &App{ConfigPath: path, Logger: logging.NewWithWriter(io.Discard, false, true)}, srv
}

func execute(cmd *cobra.Command, stdin string, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPutAndGet_Raw(t *testing.T) {
	app, srv := setup(t, "raw")

	out, err := execute(NewPutCommand(app), "", "ci/token", "s3cr3t")
	require.NoError(t, err)
	assert.Equal(t, "Stored ci/token (6 bytes)\n", out)

	stored, ok := srv.Get("keys/ci/token")
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"value": "s3cr3t"}, stored)

	out, err = execute(NewGetCommand(app), "", "ci/token")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", out)
}

func TestPut_FromStdinUpdatesField(t *testing.T) {
	app, srv := setup(t, "raw")
	srv.Put("keys/db", map[string]interface{}{"user": "app", "pass": "old"})

	_, err := execute(NewPutCommand(app), "rotated", "db/pass")
	require.NoError(t, err)

	stored, _ := srv.Get("keys/db")
	assert.Equal(t, "rotated", stored["pass"])
	assert.Equal(t, "app", stored["user"])
}

func TestPut_FromFileManaged(t *testing.T) {
	app, srv := setup(t, "managed")
	keyFile := filepath.Join(t.TempDir(), "deploy.pub")
	require.NoError(t, os.WriteFile(keyFile, []byte("ssh-ed25519 AAAA deploy"), 0o600))

	_, err := execute(NewPutCommand(app), "", "ssh/deploy.pub", "--file", keyFile, "--content-type", storage.PublicKeyMIMEType)
	require.NoError(t, err)

	stored, ok := srv.Get("keys/ssh/deploy.pub")
	require.True(t, ok)
	assert.Equal(t, "ssh-ed25519 AAAA deploy", stored["data"])
	assert.Equal(t, storage.PublicKeyMIMEType, stored[storage.MetaContentType])

	out, err := execute(NewGetCommand(app), "", "ssh/deploy.pub", "--json")
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "ssh/deploy.pub", result["path"])
	assert.Equal(t, storage.PublicKeyMIMEType, result["content_type"])
	assert.Equal(t, "ssh-ed25519 AAAA deploy", result["value"])
	assert.NotEmpty(t, result["created"])
}

func TestPut_ValueAndFileConflict(t *testing.T) {
	app, _ := setup(t, "raw")

	_, err := execute(NewPutCommand(app), "", "x", "value", "--file", "/dev/null")
	require.Error(t, err)
	var userErr dserrors.UserError
	assert.True(t, errors.As(err, &userErr))
}

func TestList(t *testing.T) {
	app, srv := setup(t, "raw")
	srv.Put("keys/db", map[string]interface{}{"user": "app", "pass": "p"})
	srv.Put("keys/ci/token", map[string]interface{}{"value": "t"})
	srv.Put("keys/readme", map[string]interface{}{"value": "hello"})

	out, err := execute(NewListCommand(app), "")
	require.NoError(t, err)
	assert.Equal(t, "ci/\ndb/\nreadme\n", out)

	out, err = execute(NewListCommand(app), "", "db")
	require.NoError(t, err)
	assert.Equal(t, "pass\nuser\n", out)

	out, err = execute(NewListCommand(app), "", "--dirs")
	require.NoError(t, err)
	assert.Equal(t, "ci/\ndb/\n", out)

	out, err = execute(NewListCommand(app), "", "--files", "-l")
	require.NoError(t, err)
	assert.Contains(t, out, storage.PasswordMIMEType)
	assert.Contains(t, out, "readme")
	assert.NotContains(t, out, "db/")
}

func TestList_ConflictingFilters(t *testing.T) {
	app, _ := setup(t, "raw")

	_, err := execute(NewListCommand(app), "", "--dirs", "--files")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be combined")
}

func TestRemove(t *testing.T) {
	app, srv := setup(t, "raw")
	srv.Put("keys/db", map[string]interface{}{"user": "app", "pass": "p"})

	out, err := execute(NewRemoveCommand(app), "", "db/user")
	require.NoError(t, err)
	assert.Equal(t, "Deleted db/user\n", out)

	stored, _ := srv.Get("keys/db")
	assert.Equal(t, map[string]interface{}{"pass": "p"}, stored)

	_, err = execute(NewRemoveCommand(app), "", "db/user")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGet_Missing(t *testing.T) {
	app, _ := setup(t, "managed")

	_, err := execute(NewGetCommand(app), "", "nothing/here")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	simplified := dserrors.SimplifyError(err)
	assert.Contains(t, simplified.Error(), "Nothing stored at 'nothing/here'")
}

func TestStat(t *testing.T) {
	app, srv := setup(t, "raw")
	srv.Put("keys/db", map[string]interface{}{"user": "app", "pass": "p"})

	out, err := execute(NewStatCommand(app), "", "db")
	require.NoError(t, err)
	assert.Contains(t, out, "raw secret (directory of fields)")
	assert.Contains(t, out, "secret/keys/db")
	assert.Contains(t, out, "pass, user")
	assert.NotContains(t, out, "app")

	out, err = execute(NewStatCommand(app), "", "--address", "secret/keys/db/pass")
	require.NoError(t, err)
	assert.Contains(t, out, "db/pass")
	assert.Contains(t, out, "field")

	_, err = execute(NewStatCommand(app), "", "--address", "other/keys/db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the configured mount")
}

func TestCheck(t *testing.T) {
	app, srv := setup(t, "managed")
	srv.Put("keys/a", map[string]interface{}{"data": "x"})
	logs := testutil.NewTestLogger(t, false)
	app.Logger = logs.Logger

	out, err := execute(NewCheckCommand(app), "")
	require.NoError(t, err)
	testutil.AssertLinesContain(t, out, []string{
		srv.URL,
		"token",
		"secret/keys/ (kv v2, mode managed)",
		"1h0m0s",
		"Top-level entries:  1",
	})
	testutil.AssertNoSecretLeak(t, out+logs.GetOutput(), []string{rootToken})
	logs.AssertLogCount(t, "info", 1)
	logs.AssertContains(t, "Vault reachable and session valid")
}

func TestOpen_Failures(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		testutil.ClearVaultEnv(t)
		app := &App{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")}

		_, err := execute(NewCheckCommand(app), "")
		var cfgErr dserrors.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "path", cfgErr.Field)
	})

	t.Run("rejected token", func(t *testing.T) {
		app, srv := setup(t, "managed")
		srv.RevokeAll()

		_, err := execute(NewCheckCommand(app), "")
		require.Error(t, err)
		var userErr dserrors.UserError
		require.True(t, errors.As(err, &userErr))
		assert.Contains(t, userErr.Message, "token login")
	})
}
