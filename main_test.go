package main

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chinmina/catalog-token-bridge/internal/config"
	"github.com/chinmina/catalog-token-bridge/internal/shutdown"
	"github.com/chinmina/catalog-token-bridge/internal/testhelpers"
	"github.com/chinmina/catalog-token-bridge/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type servers struct {
	signIn  *testhelpers.MockSignInServer
	mint    *testhelpers.MockMintServer
	catalog *testhelpers.MockCatalogServer
}

func setupServers(t *testing.T) servers {
	t.Helper()

	s := servers{
		signIn:  testhelpers.SetupMockSignInServer(t),
		mint:    testhelpers.SetupMockMintServer(t),
		catalog: testhelpers.SetupMockCatalogServer(t),
	}
	s.mint.IDToken = s.signIn.IDToken
	s.catalog.Token = "minted-token"

	t.Cleanup(func() {
		s.signIn.Close()
		s.mint.Close()
		s.catalog.Close()
	})

	return s
}

func sessionConfig(t *testing.T, s servers) config.Config {
	t.Helper()

	return config.Config{
		Catalog: config.CatalogConfig{APIURL: s.catalog.Server.URL},
		Client:  config.ClientConfig{RequestTimeoutSeconds: 5, AcquireTimeoutSeconds: 5},
		Mint:    config.MintConfig{URL: s.mint.URL()},
		SignIn:  config.SignInConfig{APIURL: s.signIn.Server.URL, APIKey: s.signIn.APIKey},
		Store: config.StoreConfig{
			Type: "file",
			Path: filepath.Join(t.TempDir(), "tokens.yaml"),
		},
	}
}

// hooks returns shutdown hooks that are run when the test completes.
func hooks(t *testing.T) *shutdown.Hooks {
	t.Helper()

	h := &shutdown.Hooks{}
	t.Cleanup(func() {
		assert.NoError(t, h.Run(context.Background()))
	})
	return h
}

func TestRunSession_AcquiresOnceAndReusesToken(t *testing.T) {
	s := setupServers(t)
	cfg := sessionConfig(t, s)

	var out bytes.Buffer
	err := runSession(context.Background(), cfg, http.DefaultClient, hooks(t), &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Test Listener")
	assert.Contains(t, lines[1], "Track One")

	assert.Equal(t, 1, s.signIn.RequestCount())
	assert.Equal(t, 1, s.mint.RequestCount())
	assert.Equal(t, []string{"Bearer minted-token", "Bearer minted-token"}, s.catalog.AuthHeaders())
}

func TestRunSession_TokenSurvivesRestart(t *testing.T) {
	s := setupServers(t)
	cfg := sessionConfig(t, s)

	for range 2 {
		var out bytes.Buffer
		require.NoError(t, runSession(context.Background(), cfg, http.DefaultClient, hooks(t), &out))
	}

	// the second run reads the file store written by the first
	assert.Equal(t, 1, s.signIn.RequestCount())
	assert.Equal(t, 1, s.mint.RequestCount())
	assert.Len(t, s.catalog.AuthHeaders(), 4)
}

func TestRunSession_EncryptedStore(t *testing.T) {
	s := setupServers(t)
	cfg := sessionConfig(t, s)
	cfg.Store.Encryption = config.StoreEncryptionConfig{
		Enabled: true,
		Key:     "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=", // 32 bytes
	}

	var out bytes.Buffer
	require.NoError(t, runSession(context.Background(), cfg, http.DefaultClient, hooks(t), &out))

	assert.Equal(t, 1, s.mint.RequestCount())
}

func TestRunSession_SignInFailure(t *testing.T) {
	s := setupServers(t)
	s.signIn.StatusCode = http.StatusForbidden
	cfg := sessionConfig(t, s)

	var out bytes.Buffer
	err := runSession(context.Background(), cfg, http.DefaultClient, hooks(t), &out)

	assert.ErrorIs(t, err, token.ErrSignInFailed)
	assert.Empty(t, out.String())
	assert.Equal(t, 0, s.mint.RequestCount())
	assert.Empty(t, s.catalog.AuthHeaders())
}

func TestRunSession_StaticToken(t *testing.T) {
	s := setupServers(t)
	s.catalog.Token = "local-token"
	cfg := sessionConfig(t, s)
	cfg.Catalog.StaticToken = "local-token"

	var out bytes.Buffer
	require.NoError(t, runSession(context.Background(), cfg, http.DefaultClient, hooks(t), &out))

	assert.Equal(t, 0, s.signIn.RequestCount())
	assert.Equal(t, 0, s.mint.RequestCount())
	assert.Equal(t, []string{"Bearer local-token", "Bearer local-token"}, s.catalog.AuthHeaders())
}

func TestConfigureHTTPTransport(t *testing.T) {
	transport := configureHTTPTransport(config.ClientConfig{
		OutgoingHTTPMaxIdleConns:    7,
		OutgoingHTTPMaxConnsPerHost: 3,
	})

	assert.Equal(t, 7, transport.MaxIdleConns)
	assert.Equal(t, 3, transport.MaxConnsPerHost)
}
