package token

import "errors"

var (
	ErrSignInFailed          = errors.New("sign-in failed")
	ErrMintRequestFailed     = errors.New("token mint request failed")
	ErrMalformedMintResponse = errors.New("malformed token mint response")
	ErrTransportFailed       = errors.New("request transport failed")
	ErrTimeout               = errors.New("timed out waiting for response")

	// ErrNoToken is returned by providers that have nothing to offer.
	ErrNoToken = errors.New("no token is available")
)
