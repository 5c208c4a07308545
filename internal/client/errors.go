package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds for client errors.
var (
	ErrInvalidBaseURL     = errors.New("invalid base url")
	ErrEmptyImage         = errors.New("image is empty")
	ErrUnavailable        = errors.New("server unavailable")
	ErrUnexpectedResponse = errors.New("unexpected response")
	ErrNotFound           = errors.New("not found")
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets callers match 404 replies with errors.Is(err, ErrNotFound).
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}
