// This command is only used for local testing: it writes a token record into
// the configured token store so the example session can run against a catalog
// API without a sign-in or mint endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chinmina/catalog-token-bridge/internal/config"
	"github.com/chinmina/catalog-token-bridge/internal/store"
	"github.com/chinmina/catalog-token-bridge/internal/token"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	AccessToken string        `env:"UTIL_ACCESS_TOKEN, required"`
	ValidFor    time.Duration `env:"UTIL_VALID_FOR, default=1h"`
	Store       config.StoreConfig
}

func main() {
	ctx := context.Background()

	cfg := Config{}
	err := envconfig.Process(ctx, &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Store.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid token store configuration: %v\n", err)
		os.Exit(1)
	}

	expiry, err := seed(ctx, cfg, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error seeding token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("token stored, expires %s\n", expiry)
}

// seed writes the configured token under the standard store key and returns
// the expiry recorded with it.
func seed(ctx context.Context, cfg Config, now time.Time) (string, error) {
	tokenStore, err := store.NewFromConfig(ctx, cfg.Store, nil)
	if err != nil {
		return "", err
	}
	defer tokenStore.Close()

	expiry := now.Add(cfg.ValidFor).UTC().Format(token.ExpireTimeLayout)

	record := token.Record{
		token.AccessTokenField: cfg.AccessToken,
		token.ExpireTimeField:  expiry,
	}

	if err := tokenStore.Set(ctx, token.StoreKey, record); err != nil {
		return "", err
	}

	return expiry, nil
}
