// Package store persists the cached token record between requests and,
// for the file implementation, between processes.
package store

import (
	"context"

	"github.com/chinmina/catalog-token-bridge/internal/token"
)

// TokenStore is a key-value store for token records.
type TokenStore interface {
	// Get retrieves a record from the store.
	// Returns the record, whether it was found, and any error.
	Get(ctx context.Context, key string) (token.Record, bool, error)

	// Set stores a record, replacing any existing value.
	Set(ctx context.Context, key string, record token.Record) error

	// Invalidate removes a record from the store. Removing an absent record
	// is not an error.
	Invalidate(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}
