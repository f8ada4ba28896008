package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chinmina/catalog-token-bridge/internal/token"
	"github.com/go-jose/go-jose/v4"
	"github.com/rs/zerolog/log"
)

const (
	// encryptedField holds the compact JWE in an encrypted record.
	encryptedField = "jwe"

	// storageKeyHeader binds a ciphertext to the key it was stored under, so
	// a record copied to another key fails to decrypt.
	storageKeyHeader jose.HeaderKey = "sk"
)

// Encrypted wraps a TokenStore, storing each record as a single JWE
// (direct key agreement, A256GCM content encryption).
type Encrypted struct {
	wrapped TokenStore
	key     []byte
}

// NewEncrypted wraps store so that records are encrypted with key, which must
// be 32 bytes.
func NewEncrypted(wrapped TokenStore, key []byte) (*Encrypted, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	return &Encrypted{
		wrapped: wrapped,
		key:     key,
	}, nil
}

// Get retrieves and decrypts a record. Decryption failures are returned as
// errors; the unreadable entry is invalidated on a best-effort basis.
func (e *Encrypted) Get(ctx context.Context, key string) (token.Record, bool, error) {
	stored, found, err := e.wrapped.Get(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}

	record, err := e.decrypt(stored, key)
	if err != nil {
		if invErr := e.wrapped.Invalidate(ctx, key); invErr != nil {
			log.Warn().Err(invErr).Str("key", key).Msg("failed to invalidate undecryptable record")
		}

		return nil, false, fmt.Errorf("token store decryption failure for key %q: %w", key, err)
	}

	return record, true, nil
}

func (e *Encrypted) Set(ctx context.Context, key string, record token.Record) error {
	stored, err := e.encrypt(record, key)
	if err != nil {
		return err
	}

	return e.wrapped.Set(ctx, key, stored)
}

func (e *Encrypted) Invalidate(ctx context.Context, key string) error {
	return e.wrapped.Invalidate(ctx, key)
}

func (e *Encrypted) Close() error {
	return e.wrapped.Close()
}

func (e *Encrypted) encrypt(record token.Record, key string) (token.Record, error) {
	plaintext, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	opts := (&jose.EncrypterOptions{}).WithHeader(storageKeyHeader, key)
	encrypter, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: e.key},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypter: %w", err)
	}

	obj, err := encrypter.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt record: %w", err)
	}

	compact, err := obj.CompactSerialize()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize encrypted record: %w", err)
	}

	return token.Record{encryptedField: compact}, nil
}

func (e *Encrypted) decrypt(stored token.Record, key string) (token.Record, error) {
	compact, ok := stored[encryptedField]
	if !ok {
		return nil, errors.New("record is not encrypted")
	}

	obj, err := jose.ParseEncryptedCompact(
		compact,
		[]jose.KeyAlgorithm{jose.DIRECT},
		[]jose.ContentEncryption{jose.A256GCM},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse encrypted record: %w", err)
	}

	if boundKey, _ := obj.Header.ExtraHeaders[storageKeyHeader].(string); boundKey != key {
		return nil, fmt.Errorf("record was encrypted for key %q", boundKey)
	}

	plaintext, err := obj.Decrypt(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt record: %w", err)
	}

	var record token.Record
	if err := json.Unmarshal(plaintext, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted record: %w", err)
	}

	return record, nil
}
