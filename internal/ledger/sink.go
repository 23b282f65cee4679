package ledger

import (
	"context"

	"github.com/dlebee/erc20/internal/domain"
)

// EventSink receives events emitted by the ledger. Every storage
// journal satisfies it, as does the websocket broadcast hub.
type EventSink interface {
	Append(ctx context.Context, e *domain.Event) error
}

// MultiSink fans an event out to several sinks in order. The first
// journal error aborts the fan-out; broadcast-style sinks are expected
// to swallow their own delivery failures.
type MultiSink []EventSink

// Append implements EventSink.
func (m MultiSink) Append(ctx context.Context, e *domain.Event) error {
	for _, sink := range m {
		if err := sink.Append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// DiscardSink drops every event. Useful for tests that do not observe
// emissions.
type DiscardSink struct{}

// Append implements EventSink.
func (DiscardSink) Append(context.Context, *domain.Event) error { return nil }
