package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/storage"
)

// AllowanceStore implements storage.AllowanceStore using PostgreSQL.
type AllowanceStore struct {
	pool *Pool
}

// NewAllowanceStore creates a new AllowanceStore.
func NewAllowanceStore(pool *Pool) *AllowanceStore {
	return &AllowanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AllowanceStore = (*AllowanceStore)(nil)

// Get retrieves the allowance for an (owner, spender) pair.
// Returns ErrNotFound if absent.
func (s *AllowanceStore) Get(ctx context.Context, owner, spender domain.AccountID) (uint64, error) {
	query := `
		SELECT value::text
		FROM allowances
		WHERE owner = $1 AND spender = $2
	`

	var text string
	err := s.pool.QueryRow(ctx, query, owner.String(), spender.String()).Scan(&text)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get allowance: %w", err)
	}

	return parseValue(text)
}

// Put sets the allowance for an (owner, spender) pair, overwriting any
// prior value.
func (s *AllowanceStore) Put(ctx context.Context, owner, spender domain.AccountID, value uint64) error {
	query := `
		INSERT INTO allowances (owner, spender, value)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (owner, spender) DO UPDATE SET value = EXCLUDED.value
	`

	_, err := s.pool.Exec(ctx, query, owner.String(), spender.String(), strconv.FormatUint(value, 10))
	if err != nil {
		return fmt.Errorf("put allowance: %w", err)
	}
	return nil
}
