// Package http provides a configurable HTTP client built on HashiCorp's
// retryablehttp. Clients produced here perform exactly one attempt per request:
// every response, including 5xx, is handed back to the caller untouched, and
// transport failures are returned as errors.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// config holds internal settings for the HTTP client.
type config struct {
	timeout time.Duration // maximum duration for a single HTTP request
}

// Option defines a functional option for configuring the HTTP client.
type Option func(*config)

// noRetry is a retryablehttp.CheckRetry policy that never retries. It still
// surfaces context errors so a canceled request is not mistaken for a response.
func noRetry(ctx context.Context, _ *http.Response, _ error) (bool, error) {
	return false, ctx.Err()
}

// NewClient creates and returns a retryablehttp.Client configured with
// the provided options. If no options are given, default values are used:
//
//   - timeout: 30 seconds
//
// The returned client never retries and does not log.
func NewClient(opts ...Option) *retryablehttp.Client {
	cfg := config{
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.HTTPClient.Timeout = cfg.timeout
	client.RetryMax = 0
	client.CheckRetry = noRetry
	return client
}

// WithTimeout sets the maximum duration allowed for a single HTTP request,
// covering connection, redirects and reading the response body.
// Default: 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}
