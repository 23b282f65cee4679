// Package postgres implements the storage interfaces on PostgreSQL.
// Balance and allowance values cover the full uint64 range, so they are
// kept in NUMERIC(20) columns and crossed the wire as decimal text.
package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/storage"
)

// BalanceStore implements storage.BalanceStore using PostgreSQL.
type BalanceStore struct {
	pool *Pool
}

// NewBalanceStore creates a new BalanceStore.
func NewBalanceStore(pool *Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// Get retrieves the balance for an account. Returns ErrNotFound if absent.
func (s *BalanceStore) Get(ctx context.Context, account domain.AccountID) (uint64, error) {
	query := `
		SELECT value::text
		FROM balances
		WHERE account = $1
	`

	var text string
	err := s.pool.QueryRow(ctx, query, account.String()).Scan(&text)
	if err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}

	return parseValue(text)
}

// Put sets the balance for an account, overwriting any prior value.
func (s *BalanceStore) Put(ctx context.Context, account domain.AccountID, value uint64) error {
	query := `
		INSERT INTO balances (account, value)
		VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET value = EXCLUDED.value
	`

	_, err := s.pool.Exec(ctx, query, account.String(), strconv.FormatUint(value, 10))
	if err != nil {
		return fmt.Errorf("put balance: %w", err)
	}
	return nil
}

// All retrieves a snapshot of every stored balance entry.
func (s *BalanceStore) All(ctx context.Context) (map[domain.AccountID]uint64, error) {
	query := `
		SELECT account, value::text
		FROM balances
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	snapshot := make(map[domain.AccountID]uint64)
	for rows.Next() {
		var accountStr, text string
		if err := rows.Scan(&accountStr, &text); err != nil {
			return nil, fmt.Errorf("scan balance row: %w", err)
		}

		account, err := domain.ParseAccountID(accountStr)
		if err != nil {
			return nil, fmt.Errorf("parse stored account %q: %w", accountStr, err)
		}
		value, err := parseValue(text)
		if err != nil {
			return nil, err
		}
		snapshot[account] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance rows: %w", err)
	}

	return snapshot, nil
}

// parseValue converts a NUMERIC(20) text representation to uint64.
func parseValue(text string) (uint64, error) {
	value, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse stored value %q: %w", text, err)
	}
	return value, nil
}
