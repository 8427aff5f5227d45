package apiclient

import (
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTracing wraps the HTTP transport with OpenTelemetry instrumentation.
func WithTracing() ClientOption {
	return func(c *Client) {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		// Copy to avoid mutating a shared http.Client.
		instrumented := *c.httpClient
		instrumented.Transport = otelhttp.NewTransport(base)
		c.httpClient = &instrumented
	}
}

// WithAuthFailureHandler installs the global auth-failure side effect that
// runs when a request fails authorization even after refresh-and-retry.
func WithAuthFailureHandler(h AuthFailureHandler) ClientOption {
	return func(c *Client) {
		c.failures = h
	}
}
