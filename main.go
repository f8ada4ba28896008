package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/chinmina/catalog-token-bridge/internal/acquire"
	"github.com/chinmina/catalog-token-bridge/internal/catalog"
	"github.com/chinmina/catalog-token-bridge/internal/client"
	"github.com/chinmina/catalog-token-bridge/internal/config"
	"github.com/chinmina/catalog-token-bridge/internal/events"
	"github.com/chinmina/catalog-token-bridge/internal/mint"
	"github.com/chinmina/catalog-token-bridge/internal/observe"
	"github.com/chinmina/catalog-token-bridge/internal/provider"
	"github.com/chinmina/catalog-token-bridge/internal/shutdown"
	"github.com/chinmina/catalog-token-bridge/internal/signin"
	"github.com/chinmina/catalog-token-bridge/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configureLogging()

	logBuildInfo()

	// interrupting stops waiting on in-flight requests; a token acquisition
	// already underway is shared and ends at its own timeout
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := launch(ctx, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("catalog session failed")
	}
}

func launch(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	// configure telemetry, including wrapping the outgoing HTTP transport
	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}

	var hooks shutdown.Hooks
	// flush even when interrupted
	defer func() { _ = hooks.Run(context.WithoutCancel(ctx)) }()
	hooks.Add("telemetry", shutdownTelemetry)

	httpClient := &http.Client{
		Timeout:   cfg.Client.AcquireTimeout(),
		Transport: observe.HTTPTransport(
			configureHTTPTransport(cfg.Client),
			cfg.Observe,
		),
	}

	return runSession(ctx, cfg, httpClient, &hooks, out)
}

// runSession fetches the current user and their saved tracks, writing each
// response body to out. Resources needing release are registered on hooks.
func runSession(ctx context.Context, cfg config.Config, httpClient *http.Client, hooks *shutdown.Hooks, out io.Writer) error {
	tokens, err := configureProvider(ctx, cfg, httpClient, hooks)
	if err != nil {
		return fmt.Errorf("token provider configuration failed: %w", err)
	}

	authorized := client.New(tokens,
		client.WithHTTPClient(httpClient),
		client.WithTimeout(cfg.Client.RequestTimeout()),
	)
	session := catalog.New(cfg.Catalog.APIURL, authorized)

	user, err := session.GetUser(ctx)
	if err != nil {
		return fmt.Errorf("user lookup failed: %w", err)
	}
	fmt.Fprintln(out, string(user))

	tracks, err := session.GetTracks(ctx)
	if err != nil {
		return fmt.Errorf("track lookup failed: %w", err)
	}
	fmt.Fprintln(out, string(tracks))

	return nil
}

// configureProvider builds the token provider the client draws from. A
// static token bypasses sign-in, minting and the store entirely.
func configureProvider(ctx context.Context, cfg config.Config, httpClient *http.Client, hooks *shutdown.Hooks) (provider.Provider, error) {
	if cfg.Catalog.StaticToken != "" {
		log.Info().Msg("using static catalog token")
		return provider.Static(cfg.Catalog.StaticToken), nil
	}

	signIn, err := signin.New(cfg.SignIn, signin.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("sign-in configuration failed: %w", err)
	}

	minter, err := mint.New(cfg.Mint, mint.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("mint configuration failed: %w", err)
	}

	tokenStore, err := store.NewFromConfig(ctx, cfg.Store, nil)
	if err != nil {
		return nil, fmt.Errorf("token store configuration failed: %w", err)
	}

	hooks.AddClose("token store", tokenStore)

	cached := provider.NewCached(
		tokenStore,
		acquire.New(signIn, minter, tokenStore),
		provider.WithEvents(events.Multi(events.Log(), events.Metrics())),
		provider.WithAcquireTimeout(cfg.Client.AcquireTimeout()),
	)

	return cached, nil
}

func configureLogging() {
	// Set global level to the minimum: allows the Open Telemetry logging to be
	// configured separately. However, it means that any logger that sets its
	// level will log as this effectively disables the global level.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	// default level is Info; logs go to stderr so stdout carries only
	// response bodies
	log.Logger = log.Output(os.Stderr).Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Info()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}

func configureHTTPTransport(cfg config.ClientConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.OutgoingHTTPMaxIdleConns
	transport.MaxConnsPerHost = cfg.OutgoingHTTPMaxConnsPerHost

	return transport
}
