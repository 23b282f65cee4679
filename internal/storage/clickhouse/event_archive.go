// Package clickhouse implements an analytics archive of ledger events.
// The authoritative journal lives in PostgreSQL; this archive keeps a
// copy shaped for history and volume queries.
package clickhouse

import (
	"context"
	"fmt"

	"github.com/dlebee/erc20/internal/domain"
	"github.com/dlebee/erc20/internal/storage"
)

// EventArchive implements storage.EventJournal using ClickHouse.
// Sequences are taken from the incoming events as assigned by the
// authoritative journal; Append never reassigns them.
type EventArchive struct {
	conn *Conn
}

// NewEventArchive creates a new EventArchive.
func NewEventArchive(conn *Conn) *EventArchive {
	return &EventArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.EventJournal = (*EventArchive)(nil)

// Append records an event in the archive.
func (a *EventArchive) Append(ctx context.Context, e *domain.Event) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO ledger_events (
			sequence, kind, from_account, to_account, owner_account, spender_account, value, emitted_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		e.Sequence,
		string(e.Kind),
		archiveAccount(e.From),
		archiveAccount(e.To),
		archiveAccount(e.Owner),
		archiveAccount(e.Spender),
		e.Value,
		uint64(e.EmittedAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByAccount retrieves all events referencing an account in any role,
// ordered by emission order.
func (a *EventArchive) GetByAccount(ctx context.Context, account domain.AccountID) ([]*domain.Event, error) {
	query := `
		SELECT sequence, kind, from_account, to_account, owner_account, spender_account, value, emitted_at
		FROM ledger_events
		WHERE ? IN (from_account, to_account, owner_account, spender_account)
		ORDER BY emitted_at ASC, sequence ASC
	`

	rows, err := a.conn.Query(ctx, query, account.String())
	if err != nil {
		return nil, fmt.Errorf("query events by account: %w", err)
	}
	defer rows.Close()

	return scanArchiveEvents(rows)
}

// GetByTimeRange retrieves events emitted within [start, end] (inclusive).
func (a *EventArchive) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Event, error) {
	query := `
		SELECT sequence, kind, from_account, to_account, owner_account, spender_account, value, emitted_at
		FROM ledger_events
		WHERE emitted_at >= ? AND emitted_at <= ?
		ORDER BY emitted_at ASC, sequence ASC
	`

	rows, err := a.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query events by time range: %w", err)
	}
	defer rows.Close()

	return scanArchiveEvents(rows)
}

// GetAll retrieves every archived event in emission order.
func (a *EventArchive) GetAll(ctx context.Context) ([]*domain.Event, error) {
	query := `
		SELECT sequence, kind, from_account, to_account, owner_account, spender_account, value, emitted_at
		FROM ledger_events
		ORDER BY emitted_at ASC, sequence ASC
	`

	rows, err := a.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all events: %w", err)
	}
	defer rows.Close()

	return scanArchiveEvents(rows)
}

// TransferVolume returns the total value moved by transfers within
// [start, end] (inclusive, Unix ms).
func (a *EventArchive) TransferVolume(ctx context.Context, start, end int64) (uint64, error) {
	query := `
		SELECT toUInt64(sum(value))
		FROM ledger_events
		WHERE kind = 'TRANSFER' AND emitted_at >= ? AND emitted_at <= ?
	`

	var volume uint64
	row := a.conn.QueryRow(ctx, query, uint64(start), uint64(end))
	if err := row.Scan(&volume); err != nil {
		return 0, fmt.Errorf("query transfer volume: %w", err)
	}
	return volume, nil
}

// archiveAccount maps an optional account role to its column value.
// Absent roles are stored as empty strings.
func archiveAccount(id *domain.AccountID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// rowScanner is satisfied by driver.Rows.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanArchiveEvents scans rows into a slice of Event.
func scanArchiveEvents(rows rowScanner) ([]*domain.Event, error) {
	var events []*domain.Event

	for rows.Next() {
		var (
			e          domain.Event
			kindStr    string
			fromStr    string
			toStr      string
			ownerStr   string
			spenderStr string
			emittedAt  uint64
		)

		err := rows.Scan(
			&e.Sequence,
			&kindStr,
			&fromStr,
			&toStr,
			&ownerStr,
			&spenderStr,
			&e.Value,
			&emittedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		e.Kind = domain.EventKind(kindStr)
		e.EmittedAt = int64(emittedAt)
		if e.From, err = parseArchiveAccount(fromStr); err != nil {
			return nil, err
		}
		if e.To, err = parseArchiveAccount(toStr); err != nil {
			return nil, err
		}
		if e.Owner, err = parseArchiveAccount(ownerStr); err != nil {
			return nil, err
		}
		if e.Spender, err = parseArchiveAccount(spenderStr); err != nil {
			return nil, err
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}

func parseArchiveAccount(s string) (*domain.AccountID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := domain.ParseAccountID(s)
	if err != nil {
		return nil, fmt.Errorf("parse archived account %q: %w", s, err)
	}
	return &id, nil
}
