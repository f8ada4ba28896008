package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justinas/alice"
)

// MockSignInServer is a configurable Identity Toolkit stand-in that serves
// anonymous sign-up requests.
type MockSignInServer struct {
	Server     *httptest.Server
	APIKey     string // key the server expects in the query string
	IDToken    string // ID token to return
	StatusCode int    // HTTP status code to return (200 if not set)

	requests atomic.Int32
}

// SetupMockSignInServer creates a sign-in server that issues a signed ID token
// for the user "anonymous-user".
func SetupMockSignInServer(t *testing.T) *MockSignInServer {
	t.Helper()

	mock := &MockSignInServer{
		APIKey:     "test-api-key",
		IDToken:    IDToken(t, "anonymous-user", time.Now().Add(time.Hour)),
		StatusCode: http.StatusOK,
	}

	router := http.NewServeMux()
	router.HandleFunc("POST /v1/accounts:signUp", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != mock.APIKey {
			w.WriteHeader(http.StatusBadRequest)
			WriteJSON(w, map[string]any{
				"error": map[string]any{"code": 400, "message": "API_KEY_INVALID"},
			})
			return
		}

		if mock.StatusCode != http.StatusOK {
			w.WriteHeader(mock.StatusCode)
			WriteJSON(w, map[string]any{
				"error": map[string]any{"code": mock.StatusCode, "message": "ADMIN_ONLY_OPERATION"},
			})
			return
		}

		WriteJSON(w, map[string]any{
			"kind":         "identitytoolkit#SignupNewUserResponse",
			"idToken":      mock.IDToken,
			"refreshToken": "refresh-token",
			"expiresIn":    "3600",
			"localId":      "anonymous-user",
		})
	})

	mock.Server = httptest.NewServer(alice.New(mock.count).Then(router))
	return mock
}

func (m *MockSignInServer) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

// RequestCount returns the number of requests received.
func (m *MockSignInServer) RequestCount() int {
	return int(m.requests.Load())
}

// Close shuts down the mock server.
func (m *MockSignInServer) Close() {
	m.Server.Close()
}

// MockMintServer is a callable-function stand-in for the token mint endpoint.
// Requests must carry the expected ID token as a bearer credential.
type MockMintServer struct {
	Server     *httptest.Server
	IDToken    string // bearer credential required on requests; any if empty
	Result     any    // value returned in the "result" member
	StatusCode int    // HTTP status code to return (200 if not set)

	requests atomic.Int32
}

// SetupMockMintServer creates a mint server that returns a token valid for an
// hour.
func SetupMockMintServer(t *testing.T) *MockMintServer {
	t.Helper()

	mock := &MockMintServer{
		Result: map[string]any{
			"accessToken": "minted-token",
			"expireTime":  time.Now().Add(time.Hour).UTC().Format("2006-01-02T15:04:05Z0700"),
		},
		StatusCode: http.StatusOK,
	}

	router := http.NewServeMux()
	router.HandleFunc("POST /getOAuthToken", func(w http.ResponseWriter, r *http.Request) {
		if mock.StatusCode != http.StatusOK {
			w.WriteHeader(mock.StatusCode)
			WriteJSON(w, map[string]any{
				"error": map[string]any{"status": "INTERNAL", "message": "mint failed"},
			})
			return
		}

		WriteJSON(w, map[string]any{"result": mock.Result})
	})

	mock.Server = httptest.NewServer(
		alice.New(mock.count, RequireBearer(func() string { return mock.IDToken })).Then(router),
	)
	return mock
}

func (m *MockMintServer) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

// URL returns the callable function URL.
func (m *MockMintServer) URL() string {
	return m.Server.URL + "/getOAuthToken"
}

// RequestCount returns the number of requests received.
func (m *MockMintServer) RequestCount() int {
	return int(m.requests.Load())
}

// Close shuts down the mock server.
func (m *MockMintServer) Close() {
	m.Server.Close()
}

// MockCatalogServer stands in for the music catalog API.
type MockCatalogServer struct {
	Server *httptest.Server
	Token  string        // expected bearer token; any if empty
	Delay  time.Duration // delay before responding

	mu          sync.Mutex
	authHeaders []string
}

// SetupMockCatalogServer creates a catalog server serving /v1/me and
// /v1/me/tracks.
func SetupMockCatalogServer(t *testing.T) *MockCatalogServer {
	t.Helper()

	mock := &MockCatalogServer{}

	router := http.NewServeMux()
	router.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, map[string]any{"id": "listener", "display_name": "Test Listener"})
	})
	router.HandleFunc("GET /v1/me/tracks", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, map[string]any{
			"items": []map[string]any{
				{"track": map[string]any{"name": "Track One"}},
			},
			"total": 1,
		})
	})

	mock.Server = httptest.NewServer(
		alice.New(mock.record, mock.delay, RequireBearer(func() string { return mock.Token })).Then(router),
	)
	return mock
}

func (m *MockCatalogServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.authHeaders = append(m.authHeaders, r.Header.Get("Authorization"))
		m.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (m *MockCatalogServer) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Delay > 0 {
			select {
			case <-time.After(m.Delay):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// AuthHeaders returns the Authorization headers received, in order.
func (m *MockCatalogServer) AuthHeaders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.authHeaders...)
}

// Close shuts down the mock server.
func (m *MockCatalogServer) Close() {
	m.Server.Close()
}

// RequireBearer rejects requests whose bearer credential differs from the one
// returned by expected. An empty expected value accepts any bearer
// credential, but one must still be present.
func RequireBearer(expected func() string) alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			want := expected()
			if !ok || credential == "" || (want != "" && credential != want) {
				w.WriteHeader(http.StatusUnauthorized)
				WriteJSON(w, map[string]any{"error": map[string]any{"status": "UNAUTHENTICATED", "message": "invalid credential"}})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteJSON is a helper function that writes a JSON response.
// It sets the Content-Type header and marshals the payload to JSON.
func WriteJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		// In test context, this should never happen with valid test data
		http.Error(w, fmt.Sprintf("failed to marshal JSON: %v", err), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}
