package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultUserAgent identifies this client
	DefaultUserAgent = "sitelens/1.0"
	// DefaultTimeout for HTTP requests
	DefaultTimeout = 10 * time.Second
	// DefaultRateLimit is 5 requests per second
	DefaultRateLimit = rate.Limit(5.0)
	// MaxRetries for transient errors
	MaxRetries = 2
	// RetryBaseDelay is the initial backoff delay
	RetryBaseDelay = 500 * time.Millisecond
	// maxErrorBody bounds the response text kept on a StatusError.
	maxErrorBody = 512
)

// Client sends JSON requests to a backend analytics API. One Client is shared
// by every probe against that backend so they draw on one rate budget.
type Client struct {
	httpClient     *http.Client
	userAgent      string
	token          string
	authorized     bool
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. The client is assumed to add its
// own credentials, as an OAuth2 client does.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
			c.authorized = true
		}
	}
}

// WithToken sends a static bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
		if token != "" {
			c.authorized = true
		}
	}
}

// WithRateLimit sets a custom rate limit (requests per second).
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithRetry sets the retry budget for network and 5xx errors.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryBaseDelay = baseDelay
	}
}

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		userAgent:      DefaultUserAgent,
		limiter:        rate.NewLimiter(DefaultRateLimit, 1),
		maxRetries:     MaxRetries,
		retryBaseDelay: RetryBaseDelay,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Authorized reports whether the client carries credentials.
func (c *Client) Authorized() bool {
	return c.authorized
}

// PostJSON marshals in, posts it to reqURL and decodes the response into out.
//
// Network errors and 5xx responses are retried with exponential backoff.
// A 429 is returned at once as a *StatusError so the caller can back off
// across variations. 401 and 403 wrap ErrNotConnected.
func (c *Client) PostJSON(ctx context.Context, reqURL string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := c.doWithRetry(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// doWithRetry executes an HTTP request with exponential backoff retry logic.
func (c *Client) doWithRetry(ctx context.Context, method, reqURL string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryBaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return respBody, nil
		case resp.StatusCode >= 500:
			lastErr = newStatusError(resp.StatusCode, respBody)
			continue
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %w", ErrNotConnected, newStatusError(resp.StatusCode, respBody))
		default:
			return nil, newStatusError(resp.StatusCode, respBody)
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func newStatusError(code int, body []byte) *StatusError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{Code: code, Body: string(bytes.TrimSpace(body))}
}
