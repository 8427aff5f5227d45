package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is the canonical failure shape of the authenticated request
// layer. ErrorCode is the service-specific code from the response envelope
// when one was present.
type HTTPError struct {
	StatusCode  int    `json:"statusCode"`
	ErrorCode   string `json:"errorCode,omitempty"`
	Message     string `json:"message"`
	IsAuthError bool   `json:"isAuthError"`
}

// NewHTTPError builds an HTTPError, deriving IsAuthError from the status.
func NewHTTPError(statusCode int, errorCode, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &HTTPError{
		StatusCode:  statusCode,
		ErrorCode:   errorCode,
		Message:     message,
		IsAuthError: statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden,
	}
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("http %d (%s): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// AuthError means the credential was rejected even after one refresh and
// retry. It is produced only by the request layer; callers never implement
// their own auth retry.
type AuthError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Message, e.Err)
	}
	return "authentication failed: " + e.Message
}

// Unwrap returns the underlying cause.
func (e *AuthError) Unwrap() error { return e.Err }

// TransportError is a stream- or connection-level failure, distinct from an
// in-band protocol error event.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return "transport error: " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means the server asserted in-band that the exchange failed.
type ProtocolError struct {
	Message string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Message
}

// PreconditionError is a local rejection that never reaches the network,
// such as an empty submission or a bookmark request with no eligible signal.
type PreconditionError struct {
	Message string
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Message
}

// IsAuthFailure reports whether err is an auth rejection at either layer.
func IsAuthFailure(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.IsAuthError
}
