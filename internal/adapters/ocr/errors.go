package ocr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds for recognition failures.
var (
	ErrNotResultScreen   = errors.New("image is not a result screen")
	ErrMalformedResponse = errors.New("malformed model response")
	ErrTransport         = errors.New("vision model request failed")
	ErrUnauthorized      = errors.New("vision model rejected the credentials")
	ErrMissingAPIKey     = errors.New("vision model api key is not configured")
	ErrEmptyImage        = errors.New("image is empty")
)

// StatusError is a non-2xx answer from the model endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vision model: http %d: %s", e.StatusCode, snippet(e.Body))
}

// Unwrap maps auth failures to ErrUnauthorized and everything else to
// ErrTransport.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return ErrUnauthorized
	}
	return ErrTransport
}

func snippet(s string) string {
	clean := strings.Join(strings.Fields(s), " ")
	const limit = 160
	if r := []rune(clean); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	if clean == "" {
		return "<empty>"
	}
	return clean
}
