// Package replay rebuilds ledger balances by folding the event journal
// from genesis and audits them against the live balance store. A clean
// audit confirms the conservation law: the sum of all balances equals
// the total supply at every observable point.
package replay

import (
	"context"
	"fmt"

	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/storage"
)

// Divergence is a per-account mismatch between the stored balance and
// the balance reconstructed from the journal.
type Divergence struct {
	Account  domain.AccountID
	Stored   uint64
	Replayed uint64
}

// Report is the result of a conservation audit.
type Report struct {
	TotalSupply uint64
	StoredSum   uint64 // sum over the live balance store
	ReplayedSum uint64 // sum over the rebuilt balances
	Conserved   bool   // StoredSum == ReplayedSum == TotalSupply
	Divergences []Divergence
}

// Rebuild folds the journal into a balance map, starting from genesis
// state (the deployer holding the entire supply). Approval events do
// not affect balances and are skipped.
func Rebuild(ctx context.Context, journal storage.EventJournal, deployer domain.AccountID, totalSupply uint64) (map[domain.AccountID]uint64, error) {
	events, err := journal.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}

	balances := map[domain.AccountID]uint64{deployer: totalSupply}
	for _, e := range events {
		if e.Kind != domain.EventTransfer {
			continue
		}
		if e.From == nil || e.To == nil {
			return nil, fmt.Errorf("transfer event %d missing endpoint", e.Sequence)
		}
		if balances[*e.From] < e.Value {
			return nil, fmt.Errorf("transfer event %d overdraws %s", e.Sequence, e.From)
		}
		balances[*e.From] -= e.Value
		balances[*e.To] += e.Value
	}

	return balances, nil
}

// Verify rebuilds balances from the journal and compares them with the
// live balance store. Accounts absent on either side count as 0.
func Verify(ctx context.Context, journal storage.EventJournal, balances storage.BalanceStore, deployer domain.AccountID, totalSupply uint64) (*Report, error) {
	replayed, err := Rebuild(ctx, journal, deployer, totalSupply)
	if err != nil {
		return nil, err
	}

	stored, err := balances.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot balances: %w", err)
	}

	report := &Report{TotalSupply: totalSupply}

	accounts := make(map[domain.AccountID]struct{}, len(stored)+len(replayed))
	for account := range stored {
		accounts[account] = struct{}{}
		report.StoredSum += stored[account]
	}
	for account := range replayed {
		accounts[account] = struct{}{}
		report.ReplayedSum += replayed[account]
	}

	for account := range accounts {
		if stored[account] != replayed[account] {
			report.Divergences = append(report.Divergences, Divergence{
				Account:  account,
				Stored:   stored[account],
				Replayed: replayed[account],
			})
		}
	}

	report.Conserved = len(report.Divergences) == 0 &&
		report.StoredSum == totalSupply &&
		report.ReplayedSum == totalSupply

	return report, nil
}
