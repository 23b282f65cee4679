package memory

import (
	"context"
	"sync"

	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/storage"
)

// EventJournal is an in-memory implementation of storage.EventJournal.
// Sequences start at 1 and are assigned in append order.
type EventJournal struct {
	mu     sync.RWMutex
	events []*domain.Event
}

// NewEventJournal creates a new in-memory event journal.
func NewEventJournal() *EventJournal {
	return &EventJournal{}
}

// Compile-time interface check.
var _ storage.EventJournal = (*EventJournal)(nil)

// Append records an event and assigns its Sequence.
func (j *EventJournal) Append(_ context.Context, e *domain.Event) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	copy := *e
	copy.Sequence = uint64(len(j.events)) + 1
	j.events = append(j.events, &copy)
	e.Sequence = copy.Sequence
	return nil
}

// GetByAccount retrieves all events referencing an account in any role,
// ordered by sequence ASC.
func (j *EventJournal) GetByAccount(_ context.Context, account domain.AccountID) ([]*domain.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []*domain.Event
	for _, e := range j.events {
		if e.Touches(account) {
			copy := *e
			result = append(result, &copy)
		}
	}
	return result, nil
}

// GetByTimeRange retrieves events emitted within [start, end] (inclusive),
// ordered by sequence ASC.
func (j *EventJournal) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []*domain.Event
	for _, e := range j.events {
		if e.EmittedAt >= start && e.EmittedAt <= end {
			copy := *e
			result = append(result, &copy)
		}
	}
	return result, nil
}

// GetAll retrieves every event, ordered by sequence ASC.
func (j *EventJournal) GetAll(_ context.Context) ([]*domain.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	result := make([]*domain.Event, 0, len(j.events))
	for _, e := range j.events {
		copy := *e
		result = append(result, &copy)
	}
	return result, nil
}
