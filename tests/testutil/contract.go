// Package testutil provides testing utilities and helpers for vaultstore tests.
//
// This file implements the storage contract test framework that validates
// every storage.Storage implementation behaves the same way, whatever the
// backend, engine version or storage mode underneath.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/vaultstore/pkg/storage"
)

// StorageTestCase defines a storage under test.
type StorageTestCase struct {
	// Name is a descriptive name for this test case
	Name string

	// Storage is the implementation to test
	Storage storage.Storage

	// Root is a directory reserved for this test case. Everything the
	// contract writes lives below it.
	Root storage.Path

	// KeepsTimestamps reports whether creation and modification times are
	// stored (managed mode) rather than left zero (raw mode)
	KeepsTimestamps bool

	// SkipConcurrency skips the concurrency test if true
	SkipConcurrency bool
}

// RunStorageContractTests runs all contract tests for a storage.
//
// This function executes the complete storage contract test suite:
//   - created content reads back byte for byte
//   - updates replace content and keep the creation time
//   - listings agree with the existence checks and filters
//   - missing paths are reported as not found with the right event
//   - deleted resources are gone
//   - concurrent reads are safe
//
// Example usage:
//
//	testutil.RunStorageContractTests(t, testutil.StorageTestCase{
//	    Name:            "kv2-managed",
//	    Storage:         store,
//	    Root:            storage.PathOf("contract"),
//	    KeepsTimestamps: true,
//	})
func RunStorageContractTests(t *testing.T, tc StorageTestCase) {
	t.Helper()

	require.NotNil(t, tc.Storage, "Storage cannot be nil")
	require.NotEmpty(t, tc.Name, "Test case name cannot be empty")
	require.False(t, tc.Root.IsRoot(), "Root must be a dedicated directory")

	t.Run("RoundTrip", func(t *testing.T) {
		testStorageRoundTrip(t, tc)
	})

	t.Run("Update", func(t *testing.T) {
		testStorageUpdate(t, tc)
	})

	t.Run("Listing", func(t *testing.T) {
		testStorageListing(t, tc)
	})

	t.Run("ErrorHandling", func(t *testing.T) {
		testStorageErrorHandling(t, tc)
	})

	t.Run("Delete", func(t *testing.T) {
		testStorageDelete(t, tc)
	})

	if !tc.SkipConcurrency {
		t.Run("Concurrency", func(t *testing.T) {
			testStorageConcurrency(t, tc)
		})
	}
}

func contractContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func testStorageRoundTrip(t *testing.T, tc StorageTestCase) {
	t.Helper()
	ctx := contractContext(t)

	cases := map[string]struct {
		data        string
		contentType string
	}{
		"password":   {"correct horse battery staple", storage.PasswordMIMEType},
		"public_key": {"ssh-ed25519 AAAAC3NzaC1lZDI1NTE5 contract@test", storage.PublicKeyMIMEType},
		"multiline":  {"line one\nline two\n", ""},
		"unicode":    {"pässwörd ✓", ""},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			path := tc.Root.Append("roundtrip").Append(name)
			now := time.Now().UTC().Truncate(time.Second)

			created, err := tc.Storage.CreateResource(ctx, path, storage.NewContent([]byte(c.data), c.contentType, now))
			require.NoError(t, err, "CreateResource() should succeed")
			assert.Equal(t, c.data, string(created.Content()))

			got, err := tc.Storage.GetResource(ctx, path)
			require.NoError(t, err, "GetResource() should succeed for created resource")
			assert.Equal(t, c.data, string(got.Content()), "content should round-trip exactly")
			assert.Equal(t, int64(len(c.data)), got.Meta.ContentLength)

			if tc.KeepsTimestamps {
				assert.Equal(t, now, got.Meta.CreationTime)
				assert.Equal(t, c.contentType, got.Meta.ContentType)
			}

			assert.True(t, tc.Storage.HasResource(ctx, path))
			assert.True(t, tc.Storage.HasPath(ctx, path))
			assert.False(t, tc.Storage.HasDirectory(ctx, path))
		})
	}
}

func testStorageUpdate(t *testing.T, tc StorageTestCase) {
	t.Helper()
	ctx := contractContext(t)

	path := tc.Root.Append("update").Append("value")
	first := time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	_, err := tc.Storage.CreateResource(ctx, path, storage.NewContent([]byte("v1"), storage.PasswordMIMEType, first))
	require.NoError(t, err)

	updated, err := tc.Storage.UpdateResource(ctx, path, storage.NewContent([]byte("version two"), storage.PasswordMIMEType, second))
	require.NoError(t, err, "UpdateResource() should succeed for existing resource")
	assert.Equal(t, "version two", string(updated.Content()))

	got, err := tc.Storage.GetResource(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "version two", string(got.Content()))

	if tc.KeepsTimestamps {
		assert.Equal(t, first, got.Meta.CreationTime, "creation time must survive updates")
		assert.Equal(t, second, got.Meta.ModificationTime)
	}
}

func testStorageListing(t *testing.T, tc StorageTestCase) {
	t.Helper()
	ctx := contractContext(t)

	dir := tc.Root.Append("listing")
	for _, name := range []string{"b", "a", "sub/c"} {
		_, err := tc.Storage.CreateResource(ctx, dir.Append(name), storage.NewContent([]byte("x-"+name), "", time.Now()))
		require.NoError(t, err)
	}

	all, err := tc.Storage.ListDirectory(ctx, dir)
	require.NoError(t, err, "ListDirectory() should succeed")
	assert.Equal(t, []string{"listing/a", "listing/b", "listing/sub/"}, relativeNames(all, tc.Root))

	resources, err := tc.Storage.ListDirectoryResources(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"listing/a", "listing/b"}, relativeNames(resources, tc.Root))
	for _, r := range resources {
		assert.True(t, tc.Storage.HasResource(ctx, r.Path), "listed resource %s should exist", r.Path)
	}

	subdirs, err := tc.Storage.ListDirectorySubdirs(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"listing/sub/"}, relativeNames(subdirs, tc.Root))
	for _, d := range subdirs {
		assert.True(t, tc.Storage.HasDirectory(ctx, d.Path), "listed directory %s should exist", d.Path)
	}

	assert.True(t, tc.Storage.HasDirectory(ctx, dir))
	assert.False(t, tc.Storage.HasResource(ctx, dir))

	res, err := tc.Storage.GetPath(ctx, dir)
	require.NoError(t, err)
	assert.True(t, res.Directory, "GetPath() on a directory should return a directory")
}

func testStorageErrorHandling(t *testing.T, tc StorageTestCase) {
	t.Helper()
	ctx := contractContext(t)

	missing := tc.Root.Append("missing-" + time.Now().Format("20060102150405")).Append("key")

	assert.False(t, tc.Storage.HasPath(ctx, missing))
	assert.False(t, tc.Storage.HasResource(ctx, missing))
	assert.False(t, tc.Storage.HasDirectory(ctx, missing))

	_, err := tc.Storage.GetResource(ctx, missing)
	AssertStorageError(t, err, storage.ErrNotFound, storage.EventRead)

	_, err = tc.Storage.UpdateResource(ctx, missing, storage.NewContent([]byte("x"), "", time.Now()))
	AssertStorageError(t, err, storage.ErrNotFound, storage.EventUpdate)

	err = tc.Storage.DeleteResource(ctx, missing)
	AssertStorageError(t, err, storage.ErrNotFound, storage.EventDelete)

	children, err := tc.Storage.ListDirectory(ctx, missing)
	require.NoError(t, err, "listing a missing directory is not an error")
	assert.Empty(t, children)
}

func testStorageDelete(t *testing.T, tc StorageTestCase) {
	t.Helper()
	ctx := contractContext(t)

	path := tc.Root.Append("delete").Append("doomed")
	_, err := tc.Storage.CreateResource(ctx, path, storage.NewContent([]byte("bye"), "", time.Now()))
	require.NoError(t, err)

	require.NoError(t, tc.Storage.DeleteResource(ctx, path), "DeleteResource() should succeed")
	assert.False(t, tc.Storage.HasResource(ctx, path))

	_, err = tc.Storage.GetResource(ctx, path)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "deleted resource should be not found, got %v", err)
}

func testStorageConcurrency(t *testing.T, tc StorageTestCase) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping concurrency test in short mode")
	}
	ctx := contractContext(t)

	path := tc.Root.Append("concurrency").Append("shared")
	_, err := tc.Storage.CreateResource(ctx, path, storage.NewContent([]byte("shared value"), "", time.Now()))
	require.NoError(t, err)

	const concurrency = 50
	var wg sync.WaitGroup
	errs := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			res, err := tc.Storage.GetResource(ctx, path)
			if err != nil {
				errs <- fmt.Errorf("goroutine %d: GetResource failed: %w", id, err)
				return
			}
			if got := string(res.Content()); got != "shared value" {
				errs <- fmt.Errorf("goroutine %d: got %q", id, got)
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	var failures []error
	for err := range errs {
		failures = append(failures, err)
	}
	for _, err := range failures {
		t.Error(err)
	}
	if len(failures) > 0 {
		t.Fatalf("Concurrency test failed with %d errors", len(failures))
	}
}

func relativeNames(resources []*storage.Resource, root storage.Path) []string {
	names := make([]string, 0, len(resources))
	for _, r := range resources {
		name := r.Path.RelativeTo(root)
		if r.Directory {
			name += "/"
		}
		names = append(names, name)
	}
	return names
}
