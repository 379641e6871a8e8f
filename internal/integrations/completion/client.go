// Package completion is a focused client for OpenAI-compatible chat
// completion endpoints (NVIDIA NIM, OpenAI, local gateways).
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"translation-relay/internal/domain"
)

const (
	DefaultBaseURL = "https://integrate.api.nvidia.com/v1"
	DefaultTimeout = 30 * time.Second
)

// ErrMalformedResponse is returned when a 2xx response cannot be decoded or
// carries no completion choice.
var ErrMalformedResponse = errors.New("completion: malformed response")

// Request is the minimal request shape for the Chat Completions endpoint.
type Request struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int                `json:"index"`
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

// TokenGetter resolves an API token stored outside the process, e.g. in SSM.
type TokenGetter interface {
	GetToken(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("completion: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is safe for concurrent use. Its configuration is fixed at
// construction; only the lazily resolved API key is written afterwards, once.
type Client struct {
	baseURL    string
	httpClient *http.Client

	staticKey string
	tokens    TokenGetter
	tokenName string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds every request, including reading the response body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithAPIKey sets a static bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.staticKey = strings.TrimSpace(key)
	}
}

// WithTokenParameter fetches the bearer token from g on first use and reuses
// it for the lifetime of the process. A static key takes precedence.
func WithTokenParameter(g TokenGetter, name string) Option {
	return func(c *Client) {
		c.tokens = g
		c.tokenName = strings.TrimSpace(name)
	}
}

// NewClient creates a Client. Either WithAPIKey or WithTokenParameter must
// be supplied.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.staticKey == "" {
		if c.tokens == nil {
			return nil, errors.New("completion: api key or token parameter must be configured")
		}
		if c.tokenName == "" {
			return nil, errors.New("completion: token parameter name must not be empty")
		}
	}
	return c, nil
}

// resolveAPIKey returns the static key, or fetches the token on the first
// call and returns the cached result afterwards.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	if c.staticKey != "" {
		return c.staticKey, nil
	}
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = c.tokens.GetToken(ctx, c.tokenName)
		if c.keyErr != nil {
			c.keyErr = fmt.Errorf("completion: resolve api key: %w", c.keyErr)
		}
	})
	return c.apiKey, c.keyErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// chatURL appends the completions path to the base URL as given. The base
// carries any version segment itself.
func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/chat/completions"
}

// Complete issues one chat completion request and returns the content of the
// first choice. It never retries.
func (c *Client) Complete(ctx context.Context, in Request) (string, error) {
	if in.Model == "" {
		return "", errors.New("completion: model must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("completion: marshal request: %w", err)
	}

	url := chatURL(c.baseURL)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("completion: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("completion: request failed: %w", err)
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrMalformedResponse, decErr)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrMalformedResponse)
	}
	return payload.Choices[0].Message.Content, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
