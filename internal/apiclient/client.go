// Package apiclient implements the authenticated request layer: every
// outbound call attaches the current access token, a 401 triggers the
// single-flight refresh protocol, and the original request is retried
// exactly once with the refreshed credential.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tradeatlas/tradechat-go/internal/auth"
	"github.com/tradeatlas/tradechat-go/internal/domain"
)

const (
	defaultBaseURL = "http://localhost:8081/api"
	defaultTimeout = 30 * time.Second

	refreshPath = "/auth/refresh"

	// refreshTokenHeader carries the ambient long-lived credential that
	// authorizes the refresh call itself.
	refreshTokenHeader = "X-Refresh-Token"
)

// envelope is the service's uniform response wrapper.
type envelope struct {
	Success   string          `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	ErrorCode string          `json:"errorCode,omitempty"`
}

const (
	envelopeSuccess = "SUCCESS"
	envelopeError   = "ERROR"
)

// AuthFailureHandler is the global side effect invoked when a request fails
// authorization even after one refresh-and-retry.
type AuthFailureHandler interface {
	Handle()
}

// Client is the authenticated HTTP client for the trade-chat service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      *auth.TokenStore
	refresher  *auth.Refresher
	failures   AuthFailureHandler
	logger     *slog.Logger
}

// NewClient creates a client around the given token store. The refresh
// protocol is wired internally: concurrent 401s collapse onto one refresh
// call against the service's refresh endpoint.
func NewClient(store *auth.TokenStore, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		store:      store,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.refresher = auth.NewRefresher(store, c.refreshAccessToken, c.logger)
	return c
}

// Refresher exposes the single-flight refresh coordinator, primarily so the
// surrounding application can force a refresh proactively.
func (c *Client) Refresher() *auth.Refresher {
	return c.refresher
}

// Get issues an authenticated GET and decodes the envelope data into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues an authenticated POST and decodes the envelope data into out.
// out may be nil when the caller only needs success or failure.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put issues an authenticated PUT and decodes the envelope data into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete issues an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, err := c.roundTrip(ctx, method, path, payload, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp.StatusCode, respBody)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if env.Success == envelopeError {
		return domain.NewHTTPError(resp.StatusCode, env.ErrorCode, env.Message)
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 {
		return domain.NewHTTPError(resp.StatusCode, "", "response data missing")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

// roundTrip issues the request, running the refresh-and-retry protocol on a
// 401. The request is never retried twice: a 401 on the retry propagates as
// a typed auth failure and triggers the global auth-failure handler.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, header http.Header) (*http.Response, error) {
	resp, err := c.send(ctx, method, path, payload, header)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if err := c.refresher.Refresh(ctx); err != nil {
		c.authFailed()
		return nil, &domain.AuthError{Message: "token refresh failed", Err: err}
	}
	if !c.store.Authenticated() {
		c.authFailed()
		return nil, &domain.AuthError{Message: "no credential after refresh"}
	}

	retry, err := c.send(ctx, method, path, payload, header)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	if retry.StatusCode == http.StatusUnauthorized {
		retry.Body.Close()
		c.authFailed()
		return nil, &domain.AuthError{Message: "credential rejected after refresh"}
	}
	return retry, nil
}

// send builds and issues one HTTP request with the current access token.
// The body is rebuilt from payload on every call so a retry is safe.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, header http.Header) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if token := c.store.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.httpClient.Do(req)
}

// refreshAccessToken is the single network call of the refresh protocol.
// It bypasses the 401 interceptor so a rejected refresh cannot recurse.
func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if rt := c.store.RefreshToken(); rt != "" {
		req.Header.Set(refreshTokenHeader, rt)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", errorFromResponse(resp.StatusCode, respBody)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return "", fmt.Errorf("failed to unmarshal refresh response: %w", err)
	}
	var data struct {
		AccessToken string `json:"accessToken"`
	}
	if env.Success != envelopeSuccess || len(env.Data) == 0 {
		return "", domain.NewHTTPError(resp.StatusCode, env.ErrorCode, "invalid refresh response")
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("failed to unmarshal refresh data: %w", err)
	}
	if data.AccessToken == "" {
		return "", domain.NewHTTPError(resp.StatusCode, env.ErrorCode, "refresh response missing access token")
	}
	return data.AccessToken, nil
}

func (c *Client) authFailed() {
	if c.failures != nil {
		c.failures.Handle()
	}
}

// errorFromResponse maps a non-2xx body to the typed error taxonomy,
// preferring the envelope's message and code when the body parses.
func errorFromResponse(statusCode int, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && (env.Message != "" || env.ErrorCode != "") {
		return domain.NewHTTPError(statusCode, env.ErrorCode, env.Message)
	}
	return domain.NewHTTPError(statusCode, "", string(bytes.TrimSpace(body)))
}
