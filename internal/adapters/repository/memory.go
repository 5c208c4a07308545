package repository

import (
	"context"
	"sync"

	"github.com/eito54/grosoq/internal/domain/model"
)

// MemoryStore keeps every record in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	mapping model.PlayerMapping
	self    *model.SelfPlayerRecord
	ledger  model.Ledger
	mode    model.Mode
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mapping: model.PlayerMapping{}}
}

func (s *MemoryStore) LoadMappings(ctx context.Context) (model.PlayerMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.mapping.Clone(), nil
}

func (s *MemoryStore) SaveMappings(ctx context.Context, m model.PlayerMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.mapping = m.Clone()
	if s.mapping == nil {
		s.mapping = model.PlayerMapping{}
	}
	return nil
}

func (s *MemoryStore) LoadSelfPlayer(ctx context.Context) (*model.SelfPlayerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.self == nil {
		return nil, nil
	}
	rec := *s.self
	return &rec, nil
}

func (s *MemoryStore) SaveSelfPlayer(ctx context.Context, rec model.SelfPlayerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.self = &rec
	return nil
}

func (s *MemoryStore) ClearSelfPlayer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.self = nil
	return nil
}

func (s *MemoryStore) LoadLedger(ctx context.Context) (model.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.ledger.Clone(), nil
}

func (s *MemoryStore) SaveLedger(ctx context.Context, entries model.Ledger, mode model.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.ledger = entries.Clone()
	s.mode = mode
	return nil
}

func (s *MemoryStore) LedgerMode(ctx context.Context) (model.Mode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrClosed
	}
	return s.mode, nil
}

// Close marks the store closed. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
