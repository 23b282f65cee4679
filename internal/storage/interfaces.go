package storage

import (
	"context"

	"github.com/dlebee/erc20/internal/domain"
)

// BalanceStore provides access to per-account balance storage.
// Absence of a key is distinguished from a zero value only here; the
// ledger treats both as 0.
type BalanceStore interface {
	// Get retrieves the balance for an account. Returns ErrNotFound if absent.
	Get(ctx context.Context, account domain.AccountID) (uint64, error)

	// Put sets the balance for an account, overwriting any prior value.
	Put(ctx context.Context, account domain.AccountID, value uint64) error

	// All retrieves a snapshot of every stored balance entry.
	// Used by conservation audits and genesis detection.
	All(ctx context.Context) (map[domain.AccountID]uint64, error)
}

// AllowanceStore provides access to (owner, spender) allowance storage.
type AllowanceStore interface {
	// Get retrieves the allowance for an (owner, spender) pair.
	// Returns ErrNotFound if absent.
	Get(ctx context.Context, owner, spender domain.AccountID) (uint64, error)

	// Put sets the allowance for an (owner, spender) pair, overwriting
	// any prior value.
	Put(ctx context.Context, owner, spender domain.AccountID, value uint64) error
}

// EventJournal provides append-only access to emitted ledger events.
type EventJournal interface {
	// Append records an event and assigns its Sequence.
	Append(ctx context.Context, e *domain.Event) error

	// GetByAccount retrieves all events referencing an account in any
	// role, ordered by sequence ASC.
	GetByAccount(ctx context.Context, account domain.AccountID) ([]*domain.Event, error)

	// GetByTimeRange retrieves events emitted within [start, end]
	// (inclusive, Unix ms), ordered by sequence ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Event, error)

	// GetAll retrieves every event, ordered by sequence ASC.
	GetAll(ctx context.Context) ([]*domain.Event, error)
}

// MetaStore persists construction-time ledger facts.
type MetaStore interface {
	// Get retrieves the ledger meta record. Returns ErrNotFound before genesis.
	Get(ctx context.Context) (*domain.LedgerMeta, error)

	// Put stores the meta record at genesis. Returns ErrDuplicateKey if
	// genesis already ran.
	Put(ctx context.Context, m *domain.LedgerMeta) error
}
