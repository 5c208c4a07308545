package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrClosed         = errors.New("store is closed")
	ErrLocked         = errors.New("store is locked by another process")
)
