// Package acquire produces a fresh access token by signing in and calling the
// mint endpoint, persisting the result for later requests.
package acquire

import (
	"context"
	"fmt"
	"sort"

	"github.com/chinmina/catalog-token-bridge/internal/mint"
	"github.com/chinmina/catalog-token-bridge/internal/signin"
	"github.com/chinmina/catalog-token-bridge/internal/store"
	"github.com/chinmina/catalog-token-bridge/internal/token"
	"github.com/rs/zerolog"
)

// Acquirer orchestrates a single sign-in followed by at most one mint call.
type Acquirer struct {
	signIn signin.Service
	minter mint.Minter
	store  store.TokenStore
}

func New(signIn signin.Service, minter mint.Minter, tokenStore store.TokenStore) *Acquirer {
	return &Acquirer{
		signIn: signIn,
		minter: minter,
		store:  tokenStore,
	}
}

// Acquire signs in, mints a token and stores the minted fields under
// token.StoreKey. Each failure short-circuits: sign-in errors wrap
// token.ErrSignInFailed, mint errors wrap token.ErrMintRequestFailed, and a
// result that is not a map or carries no access token is
// token.ErrMalformedMintResponse.
//
// A map result is written to the store before its access token is checked,
// so an empty token may be persisted even though an error is returned.
// Readers treat such a record as inconsistent and clear it.
func (a *Acquirer) Acquire(ctx context.Context) (token.Token, error) {
	logger := zerolog.Ctx(ctx)

	session, err := a.signIn.SignInAnonymously(ctx)
	if err != nil {
		return token.Token{}, fmt.Errorf("%w: %w", token.ErrSignInFailed, err)
	}

	result, err := a.minter.Mint(ctx, session)
	if err != nil {
		return token.Token{}, fmt.Errorf("%w: %w", token.ErrMintRequestFailed, err)
	}

	payload, ok := result.(map[string]any)
	if !ok {
		return token.Token{}, fmt.Errorf("%w: expected an object, got %T", token.ErrMalformedMintResponse, result)
	}

	record, skipped := recordFromPayload(payload)
	if len(skipped) > 0 {
		logger.Debug().Strs("fields", skipped).Msg("non-string mint response fields not stored")
	}

	raw := record.AccessToken()
	tok := record.Token()

	if err := a.store.Set(ctx, token.StoreKey, record); err != nil {
		return token.Token{}, fmt.Errorf("failed to store minted token: %w", err)
	}

	if raw == "" {
		return token.Token{}, fmt.Errorf("%w: response has no %s", token.ErrMalformedMintResponse, token.AccessTokenField)
	}

	if tok.ExpireTime.IsZero() {
		logger.Warn().Msg("minted token has no usable expiry; it will be refreshed on next use")
	}

	logger.Info().Time("expiry", tok.ExpireTime).Msg("token minted")

	return tok, nil
}

// recordFromPayload keeps the string-valued fields of the payload. The names
// of any other fields are returned sorted.
func recordFromPayload(payload map[string]any) (token.Record, []string) {
	record := make(token.Record, len(payload))
	var skipped []string

	for k, v := range payload {
		s, ok := v.(string)
		if !ok {
			skipped = append(skipped, k)
			continue
		}
		record[k] = s
	}

	sort.Strings(skipped)

	return record, skipped
}
