// Package mint calls the remote token-minting function using the callable
// function protocol: a JSON POST of {"data": ...} authenticated with the
// caller's ID token, answered by {"result": ...} or {"error": ...}.
package mint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/chinmina/catalog-token-bridge/internal/config"
	"github.com/chinmina/catalog-token-bridge/internal/signin"
)

// FunctionName is the callable function that mints access tokens.
const FunctionName = "getOAuthToken"

// Minter requests a fresh token on behalf of a signed-in session. The result
// is the decoded "result" member of the response, which may be nil or of any
// JSON type: interpreting it is left to the caller.
type Minter interface {
	Mint(ctx context.Context, session signin.Session) (any, error)
}

// MinterFunc adapts a function to the Minter interface.
type MinterFunc func(ctx context.Context, session signin.Session) (any, error)

func (f MinterFunc) Mint(ctx context.Context, session signin.Session) (any, error) {
	return f(ctx, session)
}

// CallableError is returned when the function responds with an error body or
// a non-success status.
type CallableError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *CallableError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("callable function failed: %d", e.StatusCode)
	}
	return fmt.Sprintf("callable function failed: %d %s: %s", e.StatusCode, e.Status, e.Message)
}

type Client struct {
	url        string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient sets the HTTP client used for mint calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

func New(cfg config.MintConfig, opts ...Option) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint URL: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("token mint URL must be absolute: %q", cfg.URL)
	}

	c := &Client{
		url:        u.String(),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type callableRequest struct {
	Data any `json:"data"`
}

type callableResponse struct {
	Result *json.RawMessage `json:"result"`
	Error  *struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// Mint calls the function with no arguments; the server identifies the
// caller from the session's ID token.
func (c *Client) Mint(ctx context.Context, session signin.Session) (any, error) {
	body, err := json.Marshal(callableRequest{Data: nil})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not create mint request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if session.IDToken != "" {
		req.Header.Set("Authorization", "Bearer "+session.IDToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("could not read mint response: %w", err)
	}

	var r callableResponse
	decodeErr := json.Unmarshal(data, &r)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cerr := &CallableError{StatusCode: resp.StatusCode}
		if decodeErr == nil && r.Error != nil {
			cerr.Status = r.Error.Status
			cerr.Message = r.Error.Message
		}
		return nil, cerr
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("could not parse mint response: %w", decodeErr)
	}

	if r.Error != nil {
		return nil, &CallableError{StatusCode: resp.StatusCode, Status: r.Error.Status, Message: r.Error.Message}
	}

	if r.Result == nil {
		return nil, nil
	}

	var result any
	if err := json.Unmarshal(*r.Result, &result); err != nil {
		return nil, fmt.Errorf("could not parse mint result: %w", err)
	}

	return result, nil
}
