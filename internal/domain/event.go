package domain

// EventKind discriminates ledger event records.
type EventKind string

const (
	EventTransfer EventKind = "TRANSFER"
	EventApproval EventKind = "APPROVAL"
)

// Event is a fire-and-forget notification record emitted on every state
// change. Events are not part of persistent ledger state; journals keep
// them for observers and for replay audits.
type Event struct {
	Sequence  uint64     `json:"sequence"` // assigned by the journal on append
	Kind      EventKind  `json:"kind"`
	From      *AccountID `json:"from,omitempty"` // transfer source; nil is reserved for mint-shaped entries
	To        *AccountID `json:"to,omitempty"`   // transfer destination; nil is reserved for burn-shaped entries
	Owner     *AccountID `json:"owner,omitempty"`
	Spender   *AccountID `json:"spender,omitempty"`
	Value     uint64     `json:"value"`
	EmittedAt int64      `json:"emitted_at"` // Unix timestamp in milliseconds
}

// NewTransferEvent builds a Transfer event with both endpoints set.
func NewTransferEvent(from, to AccountID, value uint64, emittedAt int64) *Event {
	return &Event{
		Kind:      EventTransfer,
		From:      &from,
		To:        &to,
		Value:     value,
		EmittedAt: emittedAt,
	}
}

// NewApprovalEvent builds an Approval event.
func NewApprovalEvent(owner, spender AccountID, value uint64, emittedAt int64) *Event {
	return &Event{
		Kind:      EventApproval,
		Owner:     &owner,
		Spender:   &spender,
		Value:     value,
		EmittedAt: emittedAt,
	}
}

// Touches reports whether the event references the given account in any
// role. Used by journals to answer per-account history queries.
func (e *Event) Touches(account AccountID) bool {
	for _, ref := range []*AccountID{e.From, e.To, e.Owner, e.Spender} {
		if ref != nil && *ref == account {
			return true
		}
	}
	return false
}
