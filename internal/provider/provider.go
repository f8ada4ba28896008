// Package provider supplies valid access tokens to request clients.
package provider

import (
	"context"
	"time"

	"github.com/chinmina/catalog-token-bridge/internal/token"
)

// Provider is any source of access tokens. Token returns either a usable
// token or an error, never both.
type Provider interface {
	Token(ctx context.Context) (token.Token, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (token.Token, error)

func (f ProviderFunc) Token(ctx context.Context) (token.Token, error) {
	return f(ctx)
}

// Callback receives the outcome of a token request. Exactly one of the
// arguments is meaningful: the token when err is nil, otherwise err.
type Callback func(tok token.Token, err error)

// WithToken resolves a token from p and invokes callback exactly once with
// the outcome. The callback runs on the calling goroutine before WithToken
// returns; a panic in p propagates without the callback firing.
func WithToken(ctx context.Context, p Provider, callback Callback) {
	tok, err := p.Token(ctx)
	if err != nil {
		callback(token.Token{}, err)
		return
	}
	callback(tok, nil)
}

// Static returns a provider that always supplies the given raw token. An
// empty value yields token.ErrNoToken.
func Static(raw string) Provider {
	return ProviderFunc(func(ctx context.Context) (token.Token, error) {
		if raw == "" {
			return token.Token{}, token.ErrNoToken
		}
		return token.New(raw, time.Time{}), nil
	})
}
