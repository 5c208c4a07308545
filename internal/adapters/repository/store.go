// Package repository persists the player mapping, the self-player record
// and the score ledger. Backends are interchangeable: bolt, JSON files or
// memory.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/eito54/grosoq/internal/domain/identity"
	"github.com/eito54/grosoq/internal/domain/model"
	"github.com/eito54/grosoq/internal/domain/scoring"
)

// Backend names accepted by Open.
const (
	BackendBolt   = "bolt"
	BackendJSON   = "json"
	BackendMemory = "memory"
)

// Store provides read/write access to every persisted record.
type Store interface {
	identity.MappingStore
	identity.SelfPlayerStore
	scoring.LedgerStore

	// LedgerMode returns the mode of the last ledger save, or "" if none.
	LedgerMode(ctx context.Context) (model.Mode, error)
	// ClearSelfPlayer removes the self-player record.
	ClearSelfPlayer(ctx context.Context) error
	// Close releases the backend.
	Close() error
}

// Open creates the store for backend rooted at dir.
func Open(backend, dir string, opts ...Option) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendBolt:
		return NewBoltStore(dir, opts...)
	case BackendJSON:
		return NewFileStore(dir, opts...)
	case BackendMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
