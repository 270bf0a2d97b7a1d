// Package transport provides the default HTTP transport for venue adapters:
// per-client rate limiting, bounded retries on network failures, and debug
// logging of every request.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/exbridge/exbridge/exchange"
)

const defaultTimeout = 10 * time.Second

// Client executes prepared requests over HTTP. Any HTTP status is a success
// value; only I/O failures surface as errors. Network failures are retried
// with exponential backoff up to the configured attempt budget.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	retries int
	logger  *logrus.Entry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithRateLimit spaces requests at least interval apart. Zero disables
// limiting.
func WithRateLimit(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.limiter = rate.NewLimiter(rate.Every(interval), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithRetries sets how many times a network failure is retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithLogger sets the logger used for request debug lines.
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New builds a Client with a 10s timeout, no rate limit, and no retries.
func New(opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{Timeout: defaultTimeout},
		logger: logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Do executes the request. The response is returned for every HTTP status;
// classifying venue errors is the caller's job.
func (c *Client) Do(ctx context.Context, req *exchange.Request) (*exchange.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	requestID := uuid.NewString()
	backoffCfg := backoff.NewExponentialBackOff()
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			sleep := backoffCfg.NextBackOff()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(sleep):
			}
		}
		resp, err := c.roundTrip(ctx, req, requestID, attempt)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) roundTrip(ctx context.Context, req *exchange.Request, requestID string, attempt int) (*exchange.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	started := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     req.Method,
			"url":        req.URL,
			"attempt":    attempt,
		}).WithError(err).Debug("request failed")
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	payload, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     req.Method,
		"url":        req.URL,
		"status":     httpResp.StatusCode,
		"elapsed":    time.Since(started),
	}).Debug("request complete")
	return &exchange.Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   payload,
	}, nil
}
