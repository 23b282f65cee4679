package memory

import (
	"context"
	"sync"

	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/storage"
)

// MetaStore is an in-memory implementation of storage.MetaStore.
type MetaStore struct {
	mu   sync.RWMutex
	meta *domain.LedgerMeta
}

// NewMetaStore creates a new in-memory meta store.
func NewMetaStore() *MetaStore {
	return &MetaStore{}
}

// Compile-time interface check.
var _ storage.MetaStore = (*MetaStore)(nil)

// Get retrieves the ledger meta record. Returns ErrNotFound before genesis.
func (s *MetaStore) Get(_ context.Context) (*domain.LedgerMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.meta == nil {
		return nil, storage.ErrNotFound
	}
	copy := *s.meta
	return &copy, nil
}

// Put stores the meta record at genesis. Returns ErrDuplicateKey if
// genesis already ran.
func (s *MetaStore) Put(_ context.Context, m *domain.LedgerMeta) error {
	if m == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta != nil {
		return storage.ErrDuplicateKey
	}
	copy := *m
	s.meta = &copy
	return nil
}
