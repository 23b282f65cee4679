package domain

// LedgerMeta records the construction-time facts of a ledger instance.
// Total supply is fixed at construction and never changes afterward; it
// is persisted so a restarted process attaches to existing state instead
// of re-running genesis.
type LedgerMeta struct {
	Deployer    AccountID // account credited with the full supply at genesis
	TotalSupply uint64
	CreatedAt   int64 // Unix timestamp in milliseconds
}
