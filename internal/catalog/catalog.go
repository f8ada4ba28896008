// Package catalog is a small example caller of the music catalog API. Every
// request goes through an authorized client, so tokens are fetched and
// refreshed as needed.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/chinmina/catalog-token-bridge/internal/client"
	"github.com/rs/zerolog"
)

const (
	userPath   = "/v1/me"
	tracksPath = "/v1/me/tracks"
)

// Requester is the blocking request form used by Session.
type Requester interface {
	Do(ctx context.Context, method, url string) (client.Result, error)
}

// StatusError reports a non-2xx catalog response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("catalog request failed: %d %s", e.StatusCode, e.Body)
}

type Session struct {
	baseURL   string
	requester Requester
}

func New(baseURL string, requester Requester) *Session {
	return &Session{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		requester: requester,
	}
}

// GetUser returns the body of the current user's profile.
func (s *Session) GetUser(ctx context.Context) ([]byte, error) {
	return s.get(ctx, userPath)
}

// GetTracks returns the body of the current user's saved tracks.
func (s *Session) GetTracks(ctx context.Context) ([]byte, error) {
	return s.get(ctx, tracksPath)
}

func (s *Session) get(ctx context.Context, path string) ([]byte, error) {
	result, err := s.requester.Do(ctx, http.MethodGet, s.baseURL+path)
	if err != nil {
		return nil, err
	}

	status := result.Response.StatusCode

	zerolog.Ctx(ctx).Debug().
		Str("path", path).
		Int("status", status).
		Int("bytes", len(result.Body)).
		Msg("catalog response")

	if status < 200 || status > 299 {
		return nil, StatusError{StatusCode: status, Body: string(result.Body)}
	}

	return result.Body, nil
}
