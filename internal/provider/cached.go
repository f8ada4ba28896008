package provider

import (
	"context"
	"time"

	"github.com/chinmina/catalog-token-bridge/internal/events"
	"github.com/chinmina/catalog-token-bridge/internal/store"
	"github.com/chinmina/catalog-token-bridge/internal/token"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultAcquireTimeout bounds a shared acquisition when no timeout is
// configured.
const DefaultAcquireTimeout = 30 * time.Second

// Acquirer obtains a fresh token, persisting it as a side effect.
type Acquirer interface {
	Acquire(ctx context.Context) (token.Token, error)
}

// Cached serves the token held in a store while it is unexpired, and
// acquires a new one otherwise.
//
// Concurrent callers that find the token expired share a single
// acquisition. The shared acquisition runs detached from any one caller's
// cancellation; a caller whose context ends stops waiting and receives the
// context error, while the acquisition continues for the others. The
// acquisition is bounded by its own timeout, so a collaborator that never
// completes fails that flight and the next caller starts a new one.
type Cached struct {
	store    store.TokenStore
	acquirer Acquirer
	sink     events.Sink
	now      func() time.Time
	timeout  time.Duration

	group singleflight.Group
}

type CachedOption func(*Cached)

// WithEvents sets the sink that receives lifecycle notifications.
func WithEvents(sink events.Sink) CachedOption {
	return func(c *Cached) {
		c.sink = sink
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) CachedOption {
	return func(c *Cached) {
		c.now = now
	}
}

// WithAcquireTimeout bounds each shared acquisition.
func WithAcquireTimeout(timeout time.Duration) CachedOption {
	return func(c *Cached) {
		c.timeout = timeout
	}
}

func NewCached(tokenStore store.TokenStore, acquirer Acquirer, opts ...CachedOption) *Cached {
	c := &Cached{
		store:    tokenStore,
		acquirer: acquirer,
		sink:     events.Discard,
		now:      time.Now,
		timeout:  DefaultAcquireTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sink == nil {
		c.sink = events.Discard
	}
	if c.timeout <= 0 {
		c.timeout = DefaultAcquireTimeout
	}

	return c
}

// WithToken is the callback form of Token.
func (c *Cached) WithToken(ctx context.Context, callback Callback) {
	WithToken(ctx, c, callback)
}

// Token returns the stored token when it is unexpired and non-empty. A
// record that is unexpired but has no access token is inconsistent and is
// cleared before acquiring. An expired record is left alone: it is only
// replaced by a successful mint.
func (c *Cached) Token(ctx context.Context) (token.Token, error) {
	logger := zerolog.Ctx(ctx)

	record, found, err := c.store.Get(ctx, token.StoreKey)
	if err != nil {
		// treat an unreadable store as empty
		logger.Warn().Err(err).Msg("token store read failed, acquiring new token")
		found = false
	}

	if !token.IsExpired(record, found, c.now()) {
		if record.AccessToken() != "" {
			logger.Debug().Msg("hit: unexpired token found in store")
			return record.Token(), nil
		}

		logger.Info().Msg("invalid: stored token record has no access token, clearing")
		if err := c.store.Invalidate(ctx, token.StoreKey); err != nil {
			logger.Warn().Err(err).Msg("failed to clear inconsistent token record")
		}
	}

	return c.refresh(ctx)
}

func (c *Cached) refresh(ctx context.Context) (token.Token, error) {
	c.sink.Emit(ctx, events.RetrievingToken)

	ch := c.group.DoChan(token.StoreKey, func() (any, error) {
		acquireCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		return c.acquirer.Acquire(acquireCtx)
	})

	select {
	case <-ctx.Done():
		return token.Token{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			zerolog.Ctx(ctx).Info().Err(res.Err).Bool("shared", res.Shared).Msg("token acquisition failed")
			return token.Token{}, res.Err
		}

		c.sink.Emit(ctx, events.TokenReceived)
		return res.Val.(token.Token), nil
	}
}
