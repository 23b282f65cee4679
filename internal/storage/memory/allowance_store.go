package memory

import (
	"context"
	"sync"

	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/storage"
)

// allowanceKey identifies an (owner, spender) pair.
type allowanceKey struct {
	owner   domain.AccountID
	spender domain.AccountID
}

// AllowanceStore is an in-memory implementation of storage.AllowanceStore.
type AllowanceStore struct {
	mu   sync.RWMutex
	data map[allowanceKey]uint64
}

// NewAllowanceStore creates a new in-memory allowance store.
func NewAllowanceStore() *AllowanceStore {
	return &AllowanceStore{
		data: make(map[allowanceKey]uint64),
	}
}

// Compile-time interface check.
var _ storage.AllowanceStore = (*AllowanceStore)(nil)

// Get retrieves the allowance for an (owner, spender) pair.
// Returns ErrNotFound if absent.
func (s *AllowanceStore) Get(_ context.Context, owner, spender domain.AccountID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[allowanceKey{owner, spender}]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return value, nil
}

// Put sets the allowance for an (owner, spender) pair, overwriting any
// prior value.
func (s *AllowanceStore) Put(_ context.Context, owner, spender domain.AccountID, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[allowanceKey{owner, spender}] = value
	return nil
}
