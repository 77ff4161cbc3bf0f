package apiclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" && e.Code != e.Message {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// TransportError wraps failures that happened before a response was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "request failed: " + e.Err.Error() }

// Unwrap exposes the underlying network error.
func (e *TransportError) Unwrap() error { return e.Err }

// parseError decodes the error shapes the backend emits:
// {"error":{"code","message"}}, {"code","message"} and {"error":"..."}.
func parseError(statusCode int, body []byte) error {
	var nested struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.Error.Message != "" {
		return &Error{StatusCode: statusCode, Code: nested.Error.Code, Message: nested.Error.Message}
	}

	var flat struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &flat); err == nil {
		switch {
		case flat.Message != "":
			return &Error{StatusCode: statusCode, Code: flat.Code, Message: flat.Message}
		case flat.Error != "":
			return &Error{StatusCode: statusCode, Code: flat.Code, Message: flat.Error}
		}
	}

	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &Error{StatusCode: statusCode, Code: http.StatusText(statusCode), Message: message}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// IsRetryable reports whether repeating the request later may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var transport *TransportError
	if errors.As(err, &transport) {
		return true
	}
	apiErr, ok := AsError(err)
	if !ok {
		return false
	}
	return apiErr.StatusCode >= http.StatusInternalServerError || apiErr.StatusCode == http.StatusTooManyRequests
}

// Message returns the user-facing text of err, or fallback when err carries none.
func Message(err error, fallback string) string {
	if apiErr, ok := AsError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
