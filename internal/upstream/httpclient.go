package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/forskardb/researcher-identity-service/internal/observability"
)

// HTTPClientConfig configures the HTTP client.
type HTTPClientConfig struct {
	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxAttempts is the total number of request invocations, including
	// the first. Defaults to 3.
	MaxAttempts int

	// RetryDelay is the delay before the first retry. Each subsequent
	// retry multiplies the delay by BackoffFactor.
	RetryDelay time.Duration

	// BackoffFactor multiplies the retry delay after each failed attempt.
	// Defaults to 2.
	BackoffFactor float64

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// APIKey is an optional API key for authentication.
	APIKey string

	// APIKeyHeader is the header name for the API key (e.g., "X-API-Key", "Authorization").
	APIKeyHeader string

	// Logger receives retry and backoff events. Optional.
	Logger zerolog.Logger

	// Metrics receives per-attempt request counters. Optional.
	Metrics *observability.Metrics

	// MetricsSource labels recorded metrics (e.g. "registry"). Required
	// when Metrics is set.
	MetricsSource string
}

// HTTPClient wraps http.Client with rate limiting and retries.
// It is safe for concurrent use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
	logger      zerolog.Logger
}

// NewHTTPClient creates a new HTTP client with rate limiting.
// The client applies rate limiting before each request and automatically
// retries on 429 (Too Many Requests) and 5xx server errors with
// exponential backoff.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	// Apply defaults
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.BackoffFactor == 0 {
		cfg.BackoffFactor = 2
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Forskardatabas-IdentityService/1.0"
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
		logger:      cfg.Logger,
	}
}

// Do executes an HTTP request with rate limiting and retries.
// It waits for the rate limiter before each request attempt,
// sets the User-Agent and optional API key headers,
// and retries on 429 (Too Many Requests) with Retry-After support
// and on 5xx server errors. The delay between retries starts at
// RetryDelay and multiplies by BackoffFactor after each failed attempt;
// a Retry-After header overrides the computed delay for that wait.
//
// The request body is not preserved across retries; callers must provide
// requests with GetBody set if the body needs to be resent on retry.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	// Set default headers
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	// Set API key if configured
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	endpoint := req.URL.Path
	nextDelay := c.config.RetryDelay

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		// Wait for rate limiter
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			// Check for context cancellation
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			c.recordFailure(endpoint, "network")
			lastErr = fmt.Errorf("request failed: %w", err)
			// Continue to retry on network errors
			if attempt < c.config.MaxAttempts {
				c.logger.Warn().
					Err(err).
					Str("url", req.URL.String()).
					Int("attempt", attempt).
					Dur("retry_delay", nextDelay).
					Msg("request failed, retrying")
				c.recordRetry()
				if err := c.waitForRetry(req.Context(), nextDelay); err != nil {
					return nil, err
				}
				nextDelay = c.backoff(nextDelay)
				// Reset body if possible for retry
				if err := c.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}
			return nil, lastErr
		}

		c.recordRequest(endpoint, time.Since(start))

		// Check if we should retry based on status code
		if c.shouldRetry(resp.StatusCode) {
			retryDelay := c.getRetryDelay(resp, nextDelay)
			if resp.StatusCode == http.StatusTooManyRequests {
				c.recordRateLimited()
			}
			c.recordFailure(endpoint, "status_"+strconv.Itoa(resp.StatusCode))

			// Close the response body to free resources before retry
			if resp.Body != nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}

			if attempt < c.config.MaxAttempts {
				lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
				c.logger.Warn().
					Str("url", req.URL.String()).
					Int("status", resp.StatusCode).
					Dur("retry_delay", retryDelay).
					Int("attempt", attempt).
					Msg("retryable status, backing off")
				c.recordRetry()
				if err := c.waitForRetry(req.Context(), retryDelay); err != nil {
					return nil, err
				}
				nextDelay = c.backoff(nextDelay)
				// Reset body if possible for retry
				if err := c.resetRequestBody(req); err != nil {
					return nil, fmt.Errorf("cannot retry request: %w", err)
				}
				continue
			}

			// Attempts exhausted
			return nil, fmt.Errorf("retries exhausted after %d attempts, last status: %d", c.config.MaxAttempts, resp.StatusCode)
		}

		// Success or non-retryable error
		return resp, nil
	}

	// Should not reach here, but handle edge case
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("unexpected error: no response received")
}

// shouldRetry returns true if the status code indicates we should retry.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	// Retry on 429 Too Many Requests
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	// Retry on 5xx server errors
	return statusCode >= 500 && statusCode < 600
}

// backoff returns the delay for the retry after next.
func (c *HTTPClient) backoff(delay time.Duration) time.Duration {
	return time.Duration(float64(delay) * c.config.BackoffFactor)
}

// getRetryDelay determines how long to wait before retrying.
// It respects the Retry-After header if present, otherwise uses the current
// backoff delay.
func (c *HTTPClient) getRetryDelay(resp *http.Response, current time.Duration) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return current
	}

	// Try to parse as seconds
	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return current
	}

	// Try to parse as HTTP date
	if t, err := http.ParseTime(retryAfter); err == nil {
		delay := time.Until(t)
		if delay > 0 {
			return delay
		}
	}

	return current
}

// waitForRetry waits for the specified duration, respecting context cancellation.
func (c *HTTPClient) waitForRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// resetRequestBody resets the request body for retry if possible.
func (c *HTTPClient) resetRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}

	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("failed to get request body for retry: %w", err)
	}
	req.Body = body
	return nil
}

func (c *HTTPClient) recordRequest(endpoint string, duration time.Duration) {
	if c.config.Metrics != nil {
		c.config.Metrics.RecordUpstreamRequest(c.config.MetricsSource, endpoint, duration.Seconds())
	}
}

func (c *HTTPClient) recordFailure(endpoint, errorType string) {
	if c.config.Metrics != nil {
		c.config.Metrics.RecordUpstreamRequestFailed(c.config.MetricsSource, endpoint, errorType)
	}
}

func (c *HTTPClient) recordRateLimited() {
	if c.config.Metrics != nil {
		c.config.Metrics.RecordUpstreamRateLimited(c.config.MetricsSource)
	}
}

func (c *HTTPClient) recordRetry() {
	if c.config.Metrics != nil {
		c.config.Metrics.RecordUpstreamRetry(c.config.MetricsSource)
	}
}
