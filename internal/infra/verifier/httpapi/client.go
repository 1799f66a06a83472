// Package httpapi implements mempoolaudit.Verifier against an HTTP verification
// endpoint that accepts {"tx_hex": "..."} and answers with JSON or plain text.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gabapcia/mempoolverify/internal/mempoolaudit"
	"github.com/gabapcia/mempoolverify/internal/pkg/types"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPError reports a non-2xx answer from the verification endpoint.
// It wraps mempoolaudit.ErrVerificationHTTP.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap returns mempoolaudit.ErrVerificationHTTP.
func (e *HTTPError) Unwrap() error {
	return mempoolaudit.ErrVerificationHTTP
}

// TransportError reports a request that did not produce a usable response.
// It wraps mempoolaudit.ErrVerificationTransport and the underlying cause.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("HTTP request failed: %v", e.Err)
}

// Unwrap returns mempoolaudit.ErrVerificationTransport and the underlying cause.
func (e *TransportError) Unwrap() []error {
	return []error{mempoolaudit.ErrVerificationTransport, e.Err}
}

// client posts verification requests to a fixed endpoint.
type client struct {
	endpoint   string                // verification endpoint URL
	httpClient *retryablehttp.Client // single-attempt HTTP client
}

// Ensure client implements the mempoolaudit.Verifier interface at compile time.
var _ mempoolaudit.Verifier = (*client)(nil)

// Verify posts req as JSON and returns the parsed-or-raw response body.
func (c *client) Verify(ctx context.Context, req mempoolaudit.VerificationRequest) (types.Output, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return types.Output{}, &TransportError{Err: err}
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return types.Output{}, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return types.Output{}, &TransportError{Err: err}
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return types.Output{}, &TransportError{Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return types.Output{}, &HTTPError{StatusCode: res.StatusCode, Body: string(resBody)}
	}

	return types.ParseOutput(string(resBody)), nil
}

// NewClient creates a verifier that posts to endpoint using httpClient.
//
// httpClient: the HTTP client to use for sending requests, typically built by
// internal/pkg/transport/http.NewClient.
// endpoint: the URL of the verification endpoint.
func NewClient(httpClient *retryablehttp.Client, endpoint string) *client {
	return &client{
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}
