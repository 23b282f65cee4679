package ledger

import "errors"

// Operation errors. Both are user-facing value-level failures: the call
// is rejected before any mutation and the instance stays usable.
var (
	// ErrInsufficientBalance is returned when a transfer's source
	// balance is less than the requested value.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientAllowance is returned when a delegated transfer's
	// caller has not been granted enough allowance by the source account.
	ErrInsufficientAllowance = errors.New("insufficient allowance")

	// ErrBalanceOverflow is returned when crediting the destination
	// would overflow uint64. Silent wraparound is never allowed.
	ErrBalanceOverflow = errors.New("balance overflow")
)
