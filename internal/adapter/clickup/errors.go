package clickup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// APIError represents a non-2xx response from the ClickUp API.
type APIError struct {
	// StatusCode is the HTTP response status code.
	StatusCode int
	// Status is the status text, e.g. "Not Found".
	Status string
	// Code is the provider error code (ECODE), if any.
	Code string
	// Message is the provider error message (err), if any.
	Message string

	oauth bool
}

func (e *APIError) Error() string {
	kind := "API"
	if e.oauth {
		kind = "OAuth"
	}
	detail := e.Message
	if detail == "" {
		detail = e.Code
	}
	if detail == "" {
		detail = "Unknown error"
	}
	return fmt.Sprintf("ClickUp %s error: %d %s - %s", kind, e.StatusCode, e.Status, detail)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 response. ClickUp answers a
// revoked or malformed token with 401 and ECODE OAUTH_*.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsRateLimited reports whether err is a 429 response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is worth retrying: rate limiting, a
// server-side failure, or a transport error that never produced a response.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	var transportErr *transportError
	return errors.As(err, &transportErr)
}

// transportError marks failures below HTTP (dial, TLS, timeouts).
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "http request: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }
