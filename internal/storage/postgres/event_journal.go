package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/storage"
)

// EventJournal implements storage.EventJournal using PostgreSQL.
// Sequence numbers come from a BIGSERIAL column, so append order is the
// journal order.
type EventJournal struct {
	pool *Pool
}

// NewEventJournal creates a new EventJournal.
func NewEventJournal(pool *Pool) *EventJournal {
	return &EventJournal{pool: pool}
}

// Compile-time interface check.
var _ storage.EventJournal = (*EventJournal)(nil)

// Append records an event and assigns its Sequence.
func (j *EventJournal) Append(ctx context.Context, e *domain.Event) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO ledger_events (
			kind, from_account, to_account, owner_account, spender_account, value, emitted_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		RETURNING sequence
	`

	err := j.pool.QueryRow(ctx, query,
		string(e.Kind),
		accountText(e.From),
		accountText(e.To),
		accountText(e.Owner),
		accountText(e.Spender),
		strconv.FormatUint(e.Value, 10),
		e.EmittedAt,
	).Scan(&e.Sequence)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// GetByAccount retrieves all events referencing an account in any role,
// ordered by sequence ASC.
func (j *EventJournal) GetByAccount(ctx context.Context, account domain.AccountID) ([]*domain.Event, error) {
	query := `
		SELECT sequence, kind, from_account, to_account, owner_account, spender_account, value::text, emitted_at
		FROM ledger_events
		WHERE $1 IN (from_account, to_account, owner_account, spender_account)
		ORDER BY sequence ASC
	`

	rows, err := j.pool.Query(ctx, query, account.String())
	if err != nil {
		return nil, fmt.Errorf("get events by account: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetByTimeRange retrieves events emitted within [start, end] (inclusive),
// ordered by sequence ASC.
func (j *EventJournal) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Event, error) {
	query := `
		SELECT sequence, kind, from_account, to_account, owner_account, spender_account, value::text, emitted_at
		FROM ledger_events
		WHERE emitted_at >= $1 AND emitted_at <= $2
		ORDER BY sequence ASC
	`

	rows, err := j.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get events by time range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetAll retrieves every event, ordered by sequence ASC.
func (j *EventJournal) GetAll(ctx context.Context) ([]*domain.Event, error) {
	query := `
		SELECT sequence, kind, from_account, to_account, owner_account, spender_account, value::text, emitted_at
		FROM ledger_events
		ORDER BY sequence ASC
	`

	rows, err := j.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// accountText converts an optional account to its nullable text form.
func accountText(id *domain.AccountID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// parseAccountText converts a nullable text column back to an optional account.
func parseAccountText(s *string) (*domain.AccountID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := domain.ParseAccountID(*s)
	if err != nil {
		return nil, fmt.Errorf("parse stored account %q: %w", *s, err)
	}
	return &id, nil
}

// scanEvents scans multiple rows into a slice of Event.
func scanEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var events []*domain.Event

	for rows.Next() {
		var (
			e          domain.Event
			kindStr    string
			valueText  string
			fromStr    *string
			toStr      *string
			ownerStr   *string
			spenderStr *string
		)

		err := rows.Scan(
			&e.Sequence,
			&kindStr,
			&fromStr,
			&toStr,
			&ownerStr,
			&spenderStr,
			&valueText,
			&e.EmittedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		e.Kind = domain.EventKind(kindStr)
		if e.From, err = parseAccountText(fromStr); err != nil {
			return nil, err
		}
		if e.To, err = parseAccountText(toStr); err != nil {
			return nil, err
		}
		if e.Owner, err = parseAccountText(ownerStr); err != nil {
			return nil, err
		}
		if e.Spender, err = parseAccountText(spenderStr); err != nil {
			return nil, err
		}
		if e.Value, err = parseValue(valueText); err != nil {
			return nil, err
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}
