package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"translation-relay/internal/domain"
)

// ---------------------------------------------------------------------------
// chatURL helper
// ---------------------------------------------------------------------------

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://integrate.api.nvidia.com/v1", "https://integrate.api.nvidia.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/chat/completions"},
		{"https://gw.internal/nim", "https://gw.internal/nim/chat/completions"},
		{"https://gw.internal/nim/", "https://gw.internal/nim/chat/completions"},
		{"", "https://integrate.api.nvidia.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

type fakeTokens struct {
	mu    sync.Mutex
	val   string
	err   error
	calls int
}

func (f *fakeTokens) GetToken(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.val, f.err
}

func TestNewClient_RequiresKeySource(t *testing.T) {
	_, err := NewClient()
	require.Error(t, err)
	require.Contains(t, err.Error(), "api key")

	_, err = NewClient(WithTokenParameter(&fakeTokens{}, " "))
	require.Error(t, err)
	require.Contains(t, err.Error(), "parameter name")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(WithAPIKey("k"))
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, c.baseURL)
	require.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}

func TestNewClient_WithTimeout(t *testing.T) {
	c, err := NewClient(WithAPIKey("k"), WithTimeout(5*time.Second))
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, c.httpClient.Timeout)
}

// ---------------------------------------------------------------------------
// resolveAPIKey
// ---------------------------------------------------------------------------

func TestResolveAPIKey_StaticWins(t *testing.T) {
	tokens := &fakeTokens{val: "from-ssm"}
	c, err := NewClient(WithAPIKey("static"), WithTokenParameter(tokens, "/relay/key"))
	require.NoError(t, err)

	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "static", key)
	require.Zero(t, tokens.calls)
}

func TestResolveAPIKey_FetchedOnce(t *testing.T) {
	tokens := &fakeTokens{val: "from-ssm"}
	c, err := NewClient(WithTokenParameter(tokens, "/relay/key"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := c.resolveAPIKey(context.Background())
			require.NoError(t, err)
			require.Equal(t, "from-ssm", key)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, tokens.calls, "token parameter must only be read once per process lifetime")
}

func TestResolveAPIKey_ErrorCached(t *testing.T) {
	tokens := &fakeTokens{err: errors.New("ssm unavailable")}
	c, err := NewClient(WithTokenParameter(tokens, "/relay/key"))
	require.NoError(t, err)

	_, err = c.resolveAPIKey(context.Background())
	require.Error(t, err)
	_, err = c.resolveAPIKey(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "ssm unavailable")
	require.Equal(t, 1, tokens.calls)
}

// ---------------------------------------------------------------------------
// Client.Complete
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		WithAPIKey("nvapi-test"),
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func testRequest() Request {
	return Request{
		Model:       "meta/llama-3.3-70b-instruct",
		Messages:    []domain.ChatMessage{{Role: "user", Content: "hi"}},
		Temperature: 0.1,
		MaxTokens:   512,
	}
}

func TestClient_Complete_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer nvapi-test", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		require.Equal(t, "meta/llama-3.3-70b-instruct", body["model"])
		require.InDelta(t, 0.1, body["temperature"], 1e-9)
		require.EqualValues(t, 512, body["max_tokens"])
		require.Len(t, body["messages"], 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"choices": [{
				"index": 0,
				"message": { "role": "assistant", "content": "Hola" }
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	require.Equal(t, "Hola", out)
}

func TestClient_Complete_EmptyModel(t *testing.T) {
	c, err := NewClient(WithAPIKey("k"))
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), Request{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "model")
}

func TestClient_Complete_StatusErrors(t *testing.T) {
	for _, status := range []int{400, 401, 429, 500, 503} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		c := newTestClient(t, srv)
		_, err := c.Complete(context.Background(), testRequest())
		srv.Close()

		require.Error(t, err)
		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, status, statusErr.HTTPStatusCode())
		require.Contains(t, err.Error(), "unexpected status")
		require.Contains(t, statusErr.Body, "nope")
	}
}

func TestClient_Complete_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), testRequest())
	require.ErrorIs(t, err, ErrMalformedResponse)
	require.Contains(t, err.Error(), "decode response")
}

func TestClient_Complete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), testRequest())
	require.ErrorIs(t, err, ErrMalformedResponse)
	require.Contains(t, err.Error(), "no choices")
}

func TestClient_Complete_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Complete(context.Background(), testRequest())
	require.Error(t, err)

	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout())
}

func TestClient_Complete_NetworkError(t *testing.T) {
	c, err := NewClient(WithAPIKey("k"), WithBaseURL("http://127.0.0.1:1"))
	require.NoError(t, err)
	c.httpClient = &http.Client{Timeout: 100 * time.Millisecond}

	_, err = c.Complete(context.Background(), testRequest())
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
	require.NotErrorIs(t, err, ErrMalformedResponse)
}

func TestClient_Complete_KeyResolutionFailure(t *testing.T) {
	c, err := NewClient(WithTokenParameter(&fakeTokens{err: errors.New("denied")}, "/relay/key"))
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), testRequest())
	require.Error(t, err)
	require.Contains(t, err.Error(), "denied")
}
