package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/storage"
)

// MetaStore implements storage.MetaStore using PostgreSQL. The table
// holds at most one row, keyed by a fixed id.
type MetaStore struct {
	pool *Pool
}

// NewMetaStore creates a new MetaStore.
func NewMetaStore(pool *Pool) *MetaStore {
	return &MetaStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MetaStore = (*MetaStore)(nil)

// Get retrieves the ledger meta record. Returns ErrNotFound before genesis.
func (s *MetaStore) Get(ctx context.Context) (*domain.LedgerMeta, error) {
	query := `
		SELECT deployer, total_supply::text, created_at
		FROM ledger_meta
		WHERE id = 1
	`

	var (
		deployerStr string
		supplyText  string
		m           domain.LedgerMeta
	)
	err := s.pool.QueryRow(ctx, query).Scan(&deployerStr, &supplyText, &m.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get ledger meta: %w", err)
	}

	if m.Deployer, err = domain.ParseAccountID(deployerStr); err != nil {
		return nil, fmt.Errorf("parse stored deployer %q: %w", deployerStr, err)
	}
	if m.TotalSupply, err = parseValue(supplyText); err != nil {
		return nil, err
	}
	return &m, nil
}

// Put stores the meta record at genesis. Returns ErrDuplicateKey if
// genesis already ran.
func (s *MetaStore) Put(ctx context.Context, m *domain.LedgerMeta) error {
	if m == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO ledger_meta (id, deployer, total_supply, created_at)
		VALUES (1, $1, $2::numeric, $3)
	`

	_, err := s.pool.Exec(ctx, query,
		m.Deployer.String(),
		strconv.FormatUint(m.TotalSupply, 10),
		m.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("put ledger meta: %w", err)
	}
	return nil
}
