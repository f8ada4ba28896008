// Package client issues HTTP requests authorized with a token from a
// provider.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chinmina/catalog-token-bridge/internal/provider"
	"github.com/chinmina/catalog-token-bridge/internal/token"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds Do when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// maxBodyBytes limits how much of a response body is buffered.
const maxBodyBytes = 10 << 20 // 10 MB

// ErrBodyTooLarge reports a response whose body exceeds the buffering limit.
// The body is not delivered.
var ErrBodyTooLarge = errors.New("response body too large")

// Completion receives the outcome of a request. On success err is nil, body
// holds the full response body and resp carries the status and headers (its
// Body has already been consumed). Non-2xx statuses are not errors.
type Completion func(body []byte, resp *http.Response, err error)

// Client is agnostic to where its tokens come from: any provider.Provider
// will do.
type Client struct {
	provider   provider.Provider
	httpClient *http.Client
	timeout    time.Duration
}

type Option func(*Client)

// WithHTTPClient sets the HTTP client used to dispatch requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets how long Do waits for a completion.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func New(p provider.Provider, opts ...Option) *Client {
	c := &Client{
		provider:   p,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}

	return c
}

// PerformRequest obtains a token and then dispatches the request on a new
// goroutine, returning immediately. The completion is invoked exactly once.
// If no token can be obtained the request is not sent and the completion
// receives the provider's error unchanged. Transport errors wrap
// token.ErrTransportFailed. Requests are never retried.
func (c *Client) PerformRequest(ctx context.Context, method, url string, completion Completion) {
	go func() {
		completion(c.perform(ctx, method, url))
	}()
}

func (c *Client) perform(ctx context.Context, method, url string) ([]byte, *http.Response, error) {
	logger := zerolog.Ctx(ctx).With().Str("method", method).Str("url", url).Logger()

	tok, err := c.provider.Token(ctx)
	if err != nil {
		logger.Info().Err(err).Msg("no token available, request not sent")
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", tok.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", token.ErrTransportFailed, err)
	}
	defer resp.Body.Close()

	// one byte past the limit distinguishes a full body from an oversized one
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, resp, fmt.Errorf("%w: reading body: %w", token.ErrTransportFailed, err)
	}
	if len(body) > maxBodyBytes {
		return nil, resp, fmt.Errorf("%w: response body exceeds %d bytes", ErrBodyTooLarge, maxBodyBytes)
	}
	resp.Body = http.NoBody

	logger.Debug().Int("status", resp.StatusCode).Int("bytes", len(body)).Msg("request complete")

	return body, resp, nil
}

// Result is what Do captured from the completion.
type Result struct {
	Body     []byte
	Response *http.Response
}

// Do performs the request and blocks until its completion fires or the
// client timeout elapses, whichever is first. A timeout returns
// token.ErrTimeout and cancels the in-flight request.
func (c *Client) Do(ctx context.Context, method, url string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		result Result
		err    error
	}

	// single slot: the completion fires once and never blocks
	slot := make(chan outcome, 1)
	c.PerformRequest(ctx, method, url, func(body []byte, resp *http.Response, err error) {
		slot <- outcome{Result{Body: body, Response: resp}, err}
	})

	select {
	case o := <-slot:
		if o.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return o.result, c.timeoutError(ctx)
		}
		return o.result, o.err
	case <-ctx.Done():
		return Result{}, c.timeoutError(ctx)
	}
}

// timeoutError reports an elapsed deadline as token.ErrTimeout. Cancellation
// is returned unchanged.
func (c *Client) timeoutError(ctx context.Context) error {
	err := ctx.Err()
	if !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w after %s: %w", token.ErrTimeout, c.timeout, err)
}
