package config

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Catalog CatalogConfig
	Client  ClientConfig
	Mint    MintConfig
	Observe ObserveConfig
	SignIn  SignInConfig
	Store   StoreConfig
}

// CatalogConfig covers the API the example caller talks to.
type CatalogConfig struct {
	APIURL string `env:"CATALOG_API_URL, default=https://api.spotify.com"`

	// StaticToken bypasses sign-in and minting entirely. Intended for local
	// testing with a token obtained elsewhere.
	StaticToken string `env:"CATALOG_STATIC_TOKEN"`
}

type ClientConfig struct {
	// RequestTimeoutSeconds bounds how long the blocking adapter waits for a
	// completion, token acquisition included.
	RequestTimeoutSeconds int `env:"CLIENT_REQUEST_TIMEOUT_SECS, default=30"`

	// AcquireTimeoutSeconds bounds a single sign-in and mint sequence. It
	// also caps each outgoing HTTP call.
	AcquireTimeoutSeconds int `env:"CLIENT_ACQUIRE_TIMEOUT_SECS, default=30"`

	OutgoingHTTPMaxIdleConns    int `env:"CLIENT_MAX_IDLE_CONNS, default=100"`
	OutgoingHTTPMaxConnsPerHost int `env:"CLIENT_MAX_CONNS_PER_HOST, default=20"`
}

func (c ClientConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c ClientConfig) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutSeconds) * time.Second
}

type MintConfig struct {
	// URL is the full URL of the callable token function, e.g.
	// https://us-central1-project.cloudfunctions.net/getOAuthToken
	URL string `env:"TOKEN_MINT_URL"`
}

type SignInConfig struct {
	APIURL string `env:"SIGNIN_API_URL, default=https://identitytoolkit.googleapis.com"`
	APIKey string `env:"SIGNIN_API_KEY"`
}

// StoreConfig specifies where the cached token record lives.
type StoreConfig struct {
	// Type selects the store implementation: "file" (default) or "memory".
	// Only "file" survives a process restart.
	Type string `env:"TOKEN_STORE_TYPE, default=file"`

	// Path is the location of the file store.
	Path string `env:"TOKEN_STORE_PATH, default=.token-store.yaml"`

	// Encryption holds settings for encrypting stored records.
	Encryption StoreEncryptionConfig
}

type StoreEncryptionConfig struct {
	Enabled bool `env:"TOKEN_STORE_ENCRYPTION_ENABLED, default=false"`

	// Key is a base64 encoded 32 byte key used directly.
	Key string `env:"TOKEN_STORE_ENCRYPTION_KEY"`

	// KMSCiphertext is a base64 encoded data key encrypted with AWS KMS. It is
	// decrypted once at startup.
	KMSCiphertext string `env:"TOKEN_STORE_ENCRYPTION_KMS_CIPHERTEXT"`
}

type ObserveConfig struct {
	SDKLogLevel                string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=catalog-token-bridge"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HTTPTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HTTPConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=true"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.Store.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid token store configuration: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks the settings that cross configuration groups.
func (c *Config) Validate() error {
	// a static token needs neither sign-in nor minting
	if c.Catalog.StaticToken != "" {
		return nil
	}

	if c.SignIn.APIKey == "" {
		return fmt.Errorf("SIGNIN_API_KEY required unless CATALOG_STATIC_TOKEN is set")
	}
	if c.Mint.URL == "" {
		return fmt.Errorf("TOKEN_MINT_URL required unless CATALOG_STATIC_TOKEN is set")
	}
	if c.Client.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("CLIENT_REQUEST_TIMEOUT_SECS must be positive")
	}
	if c.Client.AcquireTimeoutSeconds <= 0 {
		return fmt.Errorf("CLIENT_ACQUIRE_TIMEOUT_SECS must be positive")
	}

	return nil
}

// Validate checks that the store configuration is valid.
func (c *StoreConfig) Validate() error {
	if c.Type != "file" && c.Type != "memory" {
		return fmt.Errorf("TOKEN_STORE_TYPE must be either \"file\" or \"memory\", got %q", c.Type)
	}

	if c.Type == "file" && c.Path == "" {
		return fmt.Errorf("TOKEN_STORE_PATH required when TOKEN_STORE_TYPE=file")
	}

	if !c.Encryption.Enabled {
		return nil
	}

	switch {
	case c.Encryption.Key != "" && c.Encryption.KMSCiphertext != "":
		return fmt.Errorf("only one of TOKEN_STORE_ENCRYPTION_KEY and TOKEN_STORE_ENCRYPTION_KMS_CIPHERTEXT may be set")
	case c.Encryption.Key != "":
		key, err := base64.StdEncoding.DecodeString(c.Encryption.Key)
		if err != nil {
			return fmt.Errorf("TOKEN_STORE_ENCRYPTION_KEY is not valid base64: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("TOKEN_STORE_ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
		}
	case c.Encryption.KMSCiphertext != "":
		// validated when decrypted
	default:
		return fmt.Errorf("TOKEN_STORE_ENCRYPTION_KEY or TOKEN_STORE_ENCRYPTION_KMS_CIPHERTEXT required when encryption enabled")
	}

	return nil
}
