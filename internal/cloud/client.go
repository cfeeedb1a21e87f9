// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/sermonchat/internal/auth"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout applies to REST calls. The stream has no overall timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the sustained REST request rate per second.
	DefaultRateLimit = 10

	// DefaultRateBurst is the REST burst size.
	DefaultRateBurst = 20

	// MaxResponseSize bounds a REST response body.
	MaxResponseSize = 10 * 1024 * 1024

	// MaxErrorBodySize bounds the body kept on error responses.
	MaxErrorBodySize = 64 * 1024

	userAgent = "sermonchat/1.0"
)

// Service routes.
const (
	PathChatStream    = "/api/chat/stream"
	PathConversations = "/api/conversations"
	PathFeedback      = "/api/feedback"
	PathHealth        = "/api/health"
)

var (
	// Streaming requests are bounded by the turn context, not a timeout.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized matches 401 and 403 responses.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidBaseURL is returned by New for an unusable base URL.
	ErrInvalidBaseURL = errors.New("invalid base URL")
)

// StatusError is a non-success response to the stream request.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("stream error %d: %s", e.StatusCode, e.Body)
}

// Is maps the status code onto the package sentinels.
func (e *StatusError) Is(target error) bool {
	return matchStatus(e.StatusCode, target)
}

// APIError is a non-success response to a REST call.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Body)
}

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	return matchStatus(e.StatusCode, target)
}

func matchStatus(code int, target error) bool {
	switch target {
	case ErrNotFound:
		return code == http.StatusNotFound
	case ErrUnauthorized:
		return code == http.StatusUnauthorized || code == http.StatusForbidden
	}
	return false
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one service instance. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	streamHTTP *http.Client
	tokens     auth.TokenProvider
	logger     *zap.Logger
	language   string
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithTokenProvider sets where bearer tokens come from.
func WithTokenProvider(p auth.TokenProvider) Option {
	return func(c *Client) {
		if p == nil {
			p = auth.None
		}
		c.tokens = p
	}
}

// WithHTTPClient replaces the HTTP client used for both REST calls and the
// stream. Its Timeout, if any, then also bounds the stream.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.streamHTTP = hc
	}
}

// WithTimeout sets the REST timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l == nil {
			l = zap.NewNop()
		}
		c.logger = l
	}
}

// WithLanguage sets the answer language used when a request carries none.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithRateLimit sets the REST rate limit. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		streamHTTP: sharedStreamingClient,
		tokens:     auth.None,
		logger:     zap.NewNop(),
		limiter:    rate.NewLimiter(DefaultRateLimit, DefaultRateBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// setHeaders adds the common headers and, when available, the bearer token.
func (c *Client) setHeaders(ctx context.Context, req *http.Request) error {
	req.Header.Set("User-Agent", userAgent)
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, ok, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("get auth token: %w", err)
	}
	if ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// doJSON performs a rate-limited REST call. in is encoded as the request body
// when non-nil; out receives the decoded response when non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if err := c.setHeaders(ctx, req); err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("API response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: readErrorBody(resp.Body)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	data, err := readResponse(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readResponse reads a REST body up to MaxResponseSize.
func readResponse(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// readErrorBody returns at most MaxErrorBodySize bytes of an error response.
func readErrorBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, MaxErrorBodySize))
	return strings.TrimSpace(string(b))
}
