package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chinmina/catalog-token-bridge/internal/config"
	"github.com/chinmina/catalog-token-bridge/internal/store"
	"github.com/chinmina/catalog-token-bridge/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_WritesUsableRecord(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cfg := Config{
		AccessToken: "local-token",
		ValidFor:    30 * time.Minute,
		Store: config.StoreConfig{
			Type: "file",
			Path: filepath.Join(t.TempDir(), "tokens.yaml"),
		},
	}

	expiry, err := seed(ctx, cfg, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T12:30:00Z", expiry)

	fileStore, err := store.NewFile(cfg.Store.Path)
	require.NoError(t, err)

	record, found, err := fileStore.Get(ctx, token.StoreKey)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "local-token", record.AccessToken())
	assert.False(t, token.IsExpired(record, found, now.Add(29*time.Minute)))
	assert.True(t, token.IsExpired(record, found, now.Add(31*time.Minute)))
}

func TestSeed_InvalidStore(t *testing.T) {
	cfg := Config{
		AccessToken: "local-token",
		ValidFor:    time.Minute,
		Store: config.StoreConfig{
			Type: "file",
			Path: filepath.Join(t.TempDir(), "missing", "tokens.yaml"),
		},
	}

	_, err := seed(context.Background(), cfg, time.Now())

	assert.ErrorContains(t, err, "failed to create file store")
}
