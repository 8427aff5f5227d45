package apiclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tradeatlas/tradechat-go/internal/domain"
	"github.com/tradeatlas/tradechat-go/internal/protocol"
)

const chatStreamPath = "/chat/stream"

// StreamResult wraps one decoded protocol event or a stream-level error.
// The channel closing without an Err is the graceful-close signal.
type StreamResult struct {
	Event protocol.Event
	Err   error
}

// OpenChatStream opens one streaming chat exchange and returns the sequence
// of protocol events. The initial request runs through the same
// refresh-and-retry protocol as any other call; once the stream is open,
// auth failures can no longer occur and only transport or in-band errors
// remain.
func (c *Client) OpenChatStream(ctx context.Context, req *domain.ChatRequest) (<-chan StreamResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	header := http.Header{}
	header.Set("Accept", "text/event-stream")
	header.Set("Cache-Control", "no-cache")

	resp, err := c.streamRoundTrip(ctx, payload, header)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, errorFromResponse(resp.StatusCode, respBody)
	}

	out := make(chan StreamResult)
	go c.streamReader(resp.Body, out)
	return out, nil
}

// streamRoundTrip mirrors roundTrip but keeps the response body open for
// streaming and disables the per-request timeout, which would otherwise cut
// long exchanges short.
func (c *Client) streamRoundTrip(ctx context.Context, payload []byte, header http.Header) (*http.Response, error) {
	client := c.streamClient()

	send := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatStreamPath, bytes.NewReader(payload))
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
		return client.Do(req)
	}

	resp, err := send()
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

	retry, err := send()
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

func (c *Client) streamClient() *http.Client {
	if c.httpClient.Timeout == 0 {
		return c.httpClient
	}
	client := *c.httpClient
	client.Timeout = 0
	return &client
}

// streamReader scans the SSE body, decoding each complete event frame into
// a typed protocol event. Events are delivered one at a time in arrival
// order; decode failures and read errors terminate the stream.
func (c *Client) streamReader(body io.ReadCloser, out chan<- StreamResult) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	// Increase buffer size for potentially large answer payloads
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var currentEvent string
	var currentData strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line indicates end of event
		if line == "" {
			data := currentData.String()
			if data == "[DONE]" {
				return
			}
			// Frames may carry an event name with no data line at all;
			// marker events like main_message_start need no payload.
			if currentEvent != "" {
				if data == "" {
					data = "{}"
				}
				event, err := protocol.DecodeEvent(currentEvent, []byte(data))
				if err != nil {
					c.logger.Warn("failed to decode stream event",
						slog.String("event", currentEvent),
						slog.String("error", err.Error()),
					)
					out <- StreamResult{Err: &domain.TransportError{Err: err}}
					return
				}
				out <- StreamResult{Event: event}
			}
			currentEvent = ""
			currentData.Reset()
			continue
		}

		if strings.HasPrefix(line, "event: ") {
			currentEvent = strings.TrimPrefix(line, "event: ")
			continue
		}

		if strings.HasPrefix(line, "data: ") {
			currentData.WriteString(strings.TrimPrefix(line, "data: "))
		}
	}

	if err := scanner.Err(); err != nil {
		out <- StreamResult{Err: &domain.TransportError{Err: fmt.Errorf("stream read error: %w", err)}}
	}
}
