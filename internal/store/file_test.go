package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chinmina/catalog-token-bridge/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) (*File, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tokens.yaml")
	store, err := NewFile(path)
	require.NoError(t, err)

	return store, path
}

func TestNewFile_Validation(t *testing.T) {
	_, err := NewFile("")
	assert.ErrorContains(t, err, "must not be empty")

	_, err = NewFile(filepath.Join(t.TempDir(), "missing-dir", "tokens.yaml"))
	assert.ErrorContains(t, err, "directory unavailable")

	parentFile := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(parentFile, []byte("x"), 0o600))

	_, err = NewFile(filepath.Join(parentFile, "tokens.yaml"))
	assert.ErrorContains(t, err, "is not a directory")
}

func TestFileGet_MissingFile(t *testing.T) {
	store, _ := newFileStore(t)

	record, found, err := store.Get(context.Background(), token.StoreKey)

	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, record)
}

func TestFileSetAndGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, path := newFileStore(t)

	expected := token.Record{
		"accessToken": "xyz",
		"expireTime":  "2030-01-01T00:00:00Z",
	}

	require.NoError(t, store.Set(ctx, token.StoreKey, expected))

	record, found, err := store.Get(ctx, token.StoreKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, expected, record)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFile_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	store, path := newFileStore(t)

	expected := token.Record{
		"accessToken": "xyz",
		"expireTime":  "2030-01-01T00:00:00Z",
	}
	require.NoError(t, store.Set(ctx, token.StoreKey, expected))
	require.NoError(t, store.Close())

	reopened, err := NewFile(path)
	require.NoError(t, err)

	record, found, err := reopened.Get(ctx, token.StoreKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, expected, record)
}

func TestFileSet_KeepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileStore(t)

	require.NoError(t, store.Set(ctx, "first", token.Record{"accessToken": "one"}))
	require.NoError(t, store.Set(ctx, "second", token.Record{"accessToken": "two"}))
	require.NoError(t, store.Set(ctx, "first", token.Record{"accessToken": "uno"}))

	first, _, err := store.Get(ctx, "first")
	require.NoError(t, err)
	second, _, err := store.Get(ctx, "second")
	require.NoError(t, err)

	assert.Equal(t, "uno", first.AccessToken())
	assert.Equal(t, "two", second.AccessToken())
}

func TestFileInvalidate(t *testing.T) {
	ctx := context.Background()
	store, path := newFileStore(t)

	// invalidating with no file present must not create one
	require.NoError(t, store.Invalidate(ctx, token.StoreKey))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, store.Set(ctx, token.StoreKey, token.Record{"accessToken": "abc"}))
	require.NoError(t, store.Invalidate(ctx, token.StoreKey))

	_, found, err := store.Get(ctx, token.StoreKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFileGet_CorruptFile(t *testing.T) {
	store, path := newFileStore(t)
	require.NoError(t, os.WriteFile(path, []byte("records: [not, a, map"), 0o600))

	_, found, err := store.Get(context.Background(), token.StoreKey)

	assert.False(t, found)
	assert.ErrorContains(t, err, "failed to parse token store")
}

func TestFileSet_ReplacesCorruptFile(t *testing.T) {
	ctx := context.Background()
	store, path := newFileStore(t)
	require.NoError(t, os.WriteFile(path, []byte("records: [not, a, map"), 0o600))

	expected := token.Record{
		"accessToken": "xyz",
		"expireTime":  "2030-01-01T00:00:00Z",
	}
	require.NoError(t, store.Set(ctx, token.StoreKey, expected))

	record, found, err := store.Get(ctx, token.StoreKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, expected, record)
}

func TestFileInvalidate_ReplacesCorruptFile(t *testing.T) {
	ctx := context.Background()
	store, path := newFileStore(t)
	require.NoError(t, os.WriteFile(path, []byte("records: [not, a, map"), 0o600))

	require.NoError(t, store.Invalidate(ctx, token.StoreKey))

	_, found, err := store.Get(ctx, token.StoreKey)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestFileGet_EmptyFile(t *testing.T) {
	store, path := newFileStore(t)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, found, err := store.Get(context.Background(), token.StoreKey)

	assert.NoError(t, err)
	assert.False(t, found)
}
