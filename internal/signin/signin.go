// Package signin obtains an anonymous identity from a Firebase-compatible
// Identity Toolkit endpoint. The resulting session authenticates calls to the
// token mint endpoint.
package signin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chinmina/catalog-token-bridge/internal/config"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog/log"
)

// Session is the outcome of a successful sign-in.
type Session struct {
	IDToken string
	UserID  string
	Expiry  time.Time
}

// Service signs in anonymously.
type Service interface {
	SignInAnonymously(ctx context.Context) (Session, error)
}

// ServiceFunc adapts a function to the Service interface.
type ServiceFunc func(ctx context.Context) (Session, error)

func (f ServiceFunc) SignInAnonymously(ctx context.Context) (Session, error) {
	return f(ctx)
}

type Client struct {
	signUpURL  string
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*Client)

// WithHTTPClient sets the HTTP client used for sign-in calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// New creates a sign-in client for the configured Identity Toolkit API.
func New(cfg config.SignInConfig, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sign-in API key is required")
	}

	base, err := url.Parse(strings.TrimSuffix(cfg.APIURL, "/") + "/v1/accounts:signUp")
	if err != nil {
		return nil, fmt.Errorf("invalid sign-in API URL: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("sign-in API URL must be absolute: %s", cfg.APIURL)
	}

	q := base.Query()
	q.Set("key", cfg.APIKey)
	base.RawQuery = q.Encode()

	c := &Client{
		signUpURL:  base.String(),
		httpClient: http.DefaultClient,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type signUpRequest struct {
	ReturnSecureToken bool `json:"returnSecureToken"`
}

type signUpResponse struct {
	IDToken   string `json:"idToken"`
	ExpiresIn string `json:"expiresIn"`
	LocalID   string `json:"localId"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignInAnonymously creates a new anonymous user and returns its session.
func (c *Client) SignInAnonymously(ctx context.Context) (Session, error) {
	body, err := json.Marshal(signUpRequest{ReturnSecureToken: true})
	if err != nil {
		return Session{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.signUpURL, bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("could not create sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("sign-in request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Session{}, fmt.Errorf("could not read sign-in response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
			return Session{}, fmt.Errorf("sign-in rejected: %d %s", resp.StatusCode, e.Error.Message)
		}
		return Session{}, fmt.Errorf("sign-in rejected: %d", resp.StatusCode)
	}

	var r signUpResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return Session{}, fmt.Errorf("could not parse sign-in response: %w", err)
	}
	if r.IDToken == "" {
		return Session{}, fmt.Errorf("sign-in response did not include an ID token")
	}

	session := c.session(r)

	log.Info().
		Str("user_id", session.UserID).
		Time("expiry", session.Expiry).
		Msg("anonymous sign-in complete")

	return session, nil
}

// session derives the user and expiry from the ID token claims, falling back
// to the response fields when the token can't be decoded. The token is not
// verified here: it is only forwarded to the mint endpoint, which does.
func (c *Client) session(r signUpResponse) Session {
	s := Session{
		IDToken: r.IDToken,
		UserID:  r.LocalID,
	}

	if secs, err := strconv.Atoi(r.ExpiresIn); err == nil {
		s.Expiry = c.now().Add(time.Duration(secs) * time.Second)
	}

	claims := &jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(r.IDToken, claims)
	if err != nil {
		log.Debug().Err(err).Msg("ID token claims unreadable, using response fields")
		return s
	}

	if claims.Subject != "" {
		s.UserID = claims.Subject
	}
	if claims.ExpiresAt != nil {
		s.Expiry = claims.ExpiresAt.Time
	}

	return s
}
