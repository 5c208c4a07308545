package service

import "errors"

// Sentinel kinds for service errors. Recognition failures keep the
// sentinels of the ocr package.
var (
	ErrBusy         = errors.New("another analysis is in progress")
	ErrNotStarted   = errors.New("service is not started")
	ErrNoRecognizer = errors.New("no recognizer configured")
	ErrInvalidInput = errors.New("invalid input")
)
