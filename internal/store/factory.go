package store

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/chinmina/catalog-token-bridge/internal/config"
	"github.com/rs/zerolog/log"
)

// memoryMaxSize is generous: only a single record key is ever used.
const memoryMaxSize = 16

// NewFromConfig creates a store based on the provided configuration, wrapped
// with encryption when enabled and always with instrumentation.
//
// The kms client is only consulted when the encryption key is supplied as a
// KMS ciphertext; it's created from the default AWS configuration if nil.
func NewFromConfig(ctx context.Context, cfg config.StoreConfig, kmsClient KMSDecrypter) (TokenStore, error) {
	var base TokenStore

	switch cfg.Type {
	case "file":
		log.Info().
			Str("store_type", "file").
			Str("path", cfg.Path).
			Bool("encrypted", cfg.Encryption.Enabled).
			Msg("initializing token store")

		file, err := NewFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create file store: %w", err)
		}
		base = file

	case "memory":
		log.Info().
			Str("store_type", "memory").
			Bool("encrypted", cfg.Encryption.Enabled).
			Msg("initializing token store")

		base = NewMemory(0, memoryMaxSize)

	default:
		return nil, fmt.Errorf("invalid token store type %q: must be either \"file\" or \"memory\"", cfg.Type)
	}

	if cfg.Encryption.Enabled {
		key, err := encryptionKey(ctx, cfg.Encryption, kmsClient)
		if err != nil {
			_ = base.Close()
			return nil, fmt.Errorf("initializing token store encryption: %w", err)
		}

		encrypted, err := NewEncrypted(base, key)
		if err != nil {
			_ = base.Close()
			return nil, fmt.Errorf("initializing token store encryption: %w", err)
		}
		base = encrypted
	}

	return NewInstrumented(base, cfg.Type), nil
}

func encryptionKey(ctx context.Context, cfg config.StoreEncryptionConfig, kmsClient KMSDecrypter) ([]byte, error) {
	if cfg.Key != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
		}
		return key, nil
	}

	if kmsClient == nil {
		client, err := NewKMSClient(ctx)
		if err != nil {
			return nil, err
		}
		kmsClient = client
	}

	return KMSDataKey(ctx, kmsClient, cfg.KMSCiphertext)
}
