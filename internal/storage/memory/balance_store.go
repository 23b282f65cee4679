// Package memory provides in-memory storage implementations, used by
// tests and by --use-memory mode.
package memory

import (
	"context"
	"sync"

	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/storage"
)

// BalanceStore is an in-memory implementation of storage.BalanceStore.
type BalanceStore struct {
	mu   sync.RWMutex
	data map[domain.AccountID]uint64
}

// NewBalanceStore creates a new in-memory balance store.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{
		data: make(map[domain.AccountID]uint64),
	}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// Get retrieves the balance for an account. Returns ErrNotFound if absent.
func (s *BalanceStore) Get(_ context.Context, account domain.AccountID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[account]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return value, nil
}

// Put sets the balance for an account, overwriting any prior value.
func (s *BalanceStore) Put(_ context.Context, account domain.AccountID, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[account] = value
	return nil
}

// All retrieves a snapshot of every stored balance entry.
func (s *BalanceStore) All(_ context.Context) (map[domain.AccountID]uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[domain.AccountID]uint64, len(s.data))
	for account, value := range s.data {
		snapshot[account] = value
	}
	return snapshot, nil
}
