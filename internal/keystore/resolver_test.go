package keystore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/vaultstore/internal/vault"
	"github.com/systmms/vaultstore/pkg/storage"
	"github.com/systmms/vaultstore/tests/fakes"
)

func newResolverFixture(t *testing.T) (*Resolver, *fakes.FakeVaultClient) {
	t.Helper()
	client := fakes.NewFakeVaultClient()
	client.SetSecret("secret/keys/managed", map[string]string{PayloadField: "payload", storage.MetaContentType: storage.PublicKeyMIMEType})
	client.SetSecret("secret/keys/single", map[string]string{"token": "abc"})
	client.SetSecret("secret/keys/multi", map[string]string{"a": "x", "b": "y"})
	return NewResolver(client, NewTranslator("secret", "keys"), nil), client
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		path       string
		wantKind   Kind
		wantExists bool
		wantLeaf   bool
		wantDir    bool
	}{
		{"managed", "managed", KindManaged, true, true, false},
		{"single raw", "single", KindRaw, true, true, false},
		{"multi raw", "multi", KindRaw, true, false, true},
		{"field present", "multi/a", KindField, true, true, false},
		{"field absent", "multi/c", KindField, false, false, false},
		{"field of single raw", "single/token", KindField, true, true, false},
		{"below managed", "managed/data", KindMissing, false, false, false},
		{"nothing", "nowhere/at/all", KindMissing, false, false, false},
		{"root", "", KindMissing, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, _ := newResolverFixture(t)

			obj := r.Resolve(context.Background(), storage.PathOf(tt.path))
			assert.Equal(t, tt.wantKind, obj.Kind, "kind %s", obj.Kind)
			assert.Equal(t, tt.wantExists, obj.Exists())
			assert.Equal(t, tt.wantLeaf, obj.IsLeaf())
			assert.Equal(t, tt.wantDir, obj.IsDirectory())
			assert.Equal(t, tt.path, obj.Path.String())
		})
	}
}

func TestResolver_FieldView(t *testing.T) {
	t.Parallel()
	r, _ := newResolverFixture(t)

	obj := r.Resolve(context.Background(), storage.PathOf("multi/b"))
	require.Equal(t, KindField, obj.Kind)
	assert.Equal(t, "b", obj.FieldName)
	assert.Equal(t, "multi", obj.Parent.Path.String())
	assert.Equal(t, "secret/keys/multi", obj.Address)

	value, ok := obj.Value()
	assert.True(t, ok)
	assert.Equal(t, "y", value)
}

func TestResolver_MissingKeepsDirectReadError(t *testing.T) {
	t.Parallel()
	r, _ := newResolverFixture(t)

	obj := r.Resolve(context.Background(), storage.PathOf("nowhere/x"))
	require.Equal(t, KindMissing, obj.Kind)
	assert.ErrorIs(t, obj.Err, vault.ErrSecretNotFound)
	assert.Contains(t, obj.ErrorMessage(), "secret/keys/nowhere/x")
}

func TestResolver_AtMostTwoReads(t *testing.T) {
	t.Parallel()
	r, client := newResolverFixture(t)

	for _, p := range []string{"a/b/c/d/e", "multi/a", "managed"} {
		client.ResetCalls()
		r.Resolve(context.Background(), storage.PathOf(p))
		assert.LessOrEqual(t, client.Calls("read"), 2, p)
	}
}

func TestResolver_ParentReadFailure(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeVaultClient()
	direct := errors.New("connection reset")
	client.ReadFunc = func(ctx context.Context, address string) (map[string]string, error) {
		if address == "secret/a/b" {
			return nil, direct
		}
		return nil, errors.New("parent unavailable")
	}

	r := NewResolver(client, NewTranslator("secret", ""), nil)
	obj := r.Resolve(context.Background(), storage.PathOf("a/b"))
	assert.Equal(t, KindMissing, obj.Kind)
	assert.ErrorIs(t, obj.Err, direct)
}
