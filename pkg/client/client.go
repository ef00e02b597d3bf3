// Package client provides the authenticated HTTP client for the EPD catalog
// API with retries, a client-side request budget and error classification.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Sternrassler/epd-ingest/pkg/epd"
	"github.com/Sternrassler/epd-ingest/pkg/logging"
)

// maxBodyBytes caps a single response body.
const maxBodyBytes = 64 << 20

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassAuth represents 401/403 responses.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents connection and transport errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents an attempt that ran out of time. A timed
	// out request is not repeated.
	ErrorClassTimeout ErrorClass = "timeout"
)

// Client is the catalog API client. A Client carries no token; use WithToken
// to obtain an authorised copy for one pipeline invocation.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	config     Config
	token      string
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// User-Agent header sent with every request (required)
	UserAgent string

	// RateLimit is the client-side request budget in requests per second
	// shared by all goroutines using the client. 0 disables it.
	RateLimit float64

	// Burst is the token bucket size when RateLimit is set.
	Burst int

	// Timeout per HTTP attempt
	Timeout time.Duration

	// Retry
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
		RateLimit: 10,
		Burst:     10,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: limiter,
		config:  cfg,
		logger:  logging.NewLogger("catalog-client"),
	}, nil
}

// WithToken returns a copy of the client that sends the given bearer token.
// The copy shares the HTTP transport and the request budget.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// GetJSON performs a GET request and returns the body of a 2xx response.
// params are merged into the query already present in rawURL. operation is a
// low-cardinality label ("search", "detail") used for metrics and logs.
func (c *Client) GetJSON(ctx context.Context, operation, rawURL string, params url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			q.Del(k)
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}()

	var body []byte
	err = retryWithBackoff(ctx, c.config.Retry, func() (ErrorClass, error) {
		var (
			class   ErrorClass
			attempt error
		)
		body, class, attempt = c.do(ctx, operation, u)
		return class, attempt
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// do executes a single attempt.
func (c *Client) do(ctx context.Context, operation string, u *url.URL) ([]byte, ErrorClass, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, ErrorClassNetwork, fmt.Errorf("request budget: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, ErrorClassClient, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug().
		Str("operation", operation).
		Str("url", u.String()).
		Msg("Executing catalog request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		class := classifyTransport(err)
		errorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues(operation, string(class)+"_error").Inc()
		c.logger.Warn().Err(err).Str("operation", operation).Str("error_class", string(class)).Msg("HTTP request failed")
		return nil, class, &APIError{
			ErrorClass: class,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

		c.logger.Warn().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Catalog request error")

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
		}
		if class == ErrorClassAuth {
			apiErr.Err = epd.ErrAuth
		}
		return nil, class, apiErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, ErrorClassNetwork, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	return body, "", nil
}

// classifyStatus categorizes an HTTP error status.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorClassAuth
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}

// classifyTransport separates timeouts from other transport failures.
func classifyTransport(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}
	return ErrorClassNetwork
}

// ClassOf returns the error class carried by err, or "" if err is not an
// API error.
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	return ""
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
