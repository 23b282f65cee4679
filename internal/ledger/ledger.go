// Package ledger implements a fungible-token ledger: per-account
// balances, delegated transfers via allowances, and event emission on
// every state change. Persistence and caller identity come from the
// host through injected capabilities; the ledger itself is a thin layer
// of checks and map arithmetic.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/storage"
)

// Ledger holds the fixed total supply and applies transfer, approve and
// delegated-transfer operations against injected stores. All reads and
// checks happen before any write, so a rejected operation never
// mutates state. Calls are not safe for concurrent use on the same
// instance; the hosting layer serializes them.
type Ledger struct {
	totalSupply uint64
	balances    storage.BalanceStore
	allowances  storage.AllowanceStore
	sink        EventSink

	now func() int64 // event timestamps, Unix ms
}

// New constructs a ledger and credits the deployer with the entire
// initial supply. Zero supply is legal. All other balances and
// allowances start empty.
func New(ctx context.Context, deployer domain.AccountID, initialSupply uint64, balances storage.BalanceStore, allowances storage.AllowanceStore, sink EventSink) (*Ledger, error) {
	l := Open(initialSupply, balances, allowances, sink)
	if err := balances.Put(ctx, deployer, initialSupply); err != nil {
		return nil, fmt.Errorf("credit deployer: %w", err)
	}
	return l, nil
}

// Open attaches a ledger to already-initialized stores, e.g. after a
// process restart against durable storage. No state is written.
func Open(totalSupply uint64, balances storage.BalanceStore, allowances storage.AllowanceStore, sink EventSink) *Ledger {
	if sink == nil {
		sink = DiscardSink{}
	}
	return &Ledger{
		totalSupply: totalSupply,
		balances:    balances,
		allowances:  allowances,
		sink:        sink,
		now:         func() int64 { return time.Now().UnixMilli() },
	}
}

// TotalSupply returns the fixed total supply.
func (l *Ledger) TotalSupply() uint64 {
	return l.totalSupply
}

// BalanceOf returns the balance of an account, 0 if absent.
func (l *Ledger) BalanceOf(ctx context.Context, account domain.AccountID) (uint64, error) {
	return l.balance(ctx, account)
}

// Allowance returns the amount owner has authorized spender to transfer
// on its behalf, 0 if absent.
func (l *Ledger) Allowance(ctx context.Context, owner, spender domain.AccountID) (uint64, error) {
	value, err := l.allowances.Get(ctx, owner, spender)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read allowance: %w", err)
	}
	return value, nil
}

// Transfer moves value from the caller to another account. Fails with
// ErrInsufficientBalance when the caller's balance is less than value.
func (l *Ledger) Transfer(ctx context.Context, caller, to domain.AccountID, value uint64) error {
	return l.transferFromTo(ctx, caller, to, value)
}

// Approve sets the caller's allowance for spender to exactly value,
// overwriting any prior allowance. No check is made against the
// caller's balance or the previous allowance; this is the standard
// token-interface contract and carries the well-known approve/
// transferFrom race: a spender can consume the old allowance before
// the overwrite lands. Callers that need a safe adjustment must first
// approve 0 and confirm it was not spent.
func (l *Ledger) Approve(ctx context.Context, caller, spender domain.AccountID, value uint64) error {
	if err := l.allowances.Put(ctx, caller, spender, value); err != nil {
		return fmt.Errorf("write allowance: %w", err)
	}
	return l.emit(ctx, domain.NewApprovalEvent(caller, spender, value, l.now()))
}

// TransferFrom moves value from one account to another on behalf of
// its owner, consuming the caller's allowance. The allowance is checked
// before the balance, so ErrInsufficientAllowance is reported even when
// the balance would also be insufficient; it is only decremented after
// the balance transfer succeeds.
func (l *Ledger) TransferFrom(ctx context.Context, caller, from, to domain.AccountID, value uint64) error {
	allowed, err := l.Allowance(ctx, from, caller)
	if err != nil {
		return err
	}
	if allowed < value {
		return ErrInsufficientAllowance
	}

	if err := l.transferFromTo(ctx, from, to, value); err != nil {
		return err
	}

	if err := l.allowances.Put(ctx, from, caller, allowed-value); err != nil {
		return fmt.Errorf("consume allowance: %w", err)
	}
	return nil
}

// transferFromTo is the shared transfer primitive: check, debit, credit,
// emit. Subtraction cannot underflow (guarded by the sufficiency check)
// and credit overflow is rejected before any mutation.
func (l *Ledger) transferFromTo(ctx context.Context, from, to domain.AccountID, value uint64) error {
	fromBalance, err := l.balance(ctx, from)
	if err != nil {
		return err
	}
	if fromBalance < value {
		return ErrInsufficientBalance
	}

	if from == to {
		// Debit and credit cancel out; only the event is observable.
		return l.emit(ctx, domain.NewTransferEvent(from, to, value, l.now()))
	}

	toBalance, err := l.balance(ctx, to)
	if err != nil {
		return err
	}
	if toBalance > math.MaxUint64-value {
		return ErrBalanceOverflow
	}

	if err := l.balances.Put(ctx, from, fromBalance-value); err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if err := l.balances.Put(ctx, to, toBalance+value); err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}

	return l.emit(ctx, domain.NewTransferEvent(from, to, value, l.now()))
}

func (l *Ledger) balance(ctx context.Context, account domain.AccountID) (uint64, error) {
	value, err := l.balances.Get(ctx, account)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return value, nil
}

func (l *Ledger) emit(ctx context.Context, e *domain.Event) error {
	if err := l.sink.Append(ctx, e); err != nil {
		return fmt.Errorf("emit %s event: %w", e.Kind, err)
	}
	return nil
}
