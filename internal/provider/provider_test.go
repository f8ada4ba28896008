package provider_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chinmina/catalog-token-bridge/internal/provider"
	"github.com/chinmina/catalog-token-bridge/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	tok, err := provider.Static("abc").Token(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", tok.AccessToken)
}

func TestStatic_Empty(t *testing.T) {
	_, err := provider.Static("").Token(context.Background())

	assert.ErrorIs(t, err, token.ErrNoToken)
}

func TestWithToken_FiresOnceWithError(t *testing.T) {
	expected := errors.New("no source")
	p := provider.ProviderFunc(func(ctx context.Context) (token.Token, error) {
		// a misbehaving source returning both must not leak the token
		return token.New("leaked", time.Time{}), expected
	})

	calls := 0
	provider.WithToken(context.Background(), p, func(tok token.Token, err error) {
		calls++
		assert.Equal(t, expected, err)
		assert.Equal(t, token.Token{}, tok)
	})

	assert.Equal(t, 1, calls)
}

func TestWithToken_FiresOnceWithToken(t *testing.T) {
	calls := 0
	provider.WithToken(context.Background(), provider.Static("abc"), func(tok token.Token, err error) {
		calls++
		assert.NoError(t, err)
		assert.Equal(t, "Bearer abc", tok.AccessToken)
	})

	assert.Equal(t, 1, calls)
}
