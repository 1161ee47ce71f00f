package fiatbridge

import (
	"context"

	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/id"
)

// record stamps e with the next sequence number and appends it to the
// journal. It is called while the lock guarding the transition is still
// held so the journal order matches the order transitions took effect.
// A journal write failure is logged and does not undo the transition.
func (b *Bridge) record(ctx context.Context, e *event.Event) {
	b.journalMu.Lock()
	defer b.journalMu.Unlock()

	b.seq++
	e.ID = id.NewEventID()
	e.Seq = b.seq
	if e.OccurredAt.IsZero() {
		e.OccurredAt = b.now()
	}

	if err := b.store.AppendEvent(ctx, e); err != nil {
		b.logger.Error("fiatbridge: journal append failed",
			"type", string(e.Type),
			"seq", e.Seq,
			"error", err,
		)
		b.seq--
		e.Seq = 0
	}
}

// publish hands a recorded event to plugins. Callers invoke it after
// releasing their locks.
func (b *Bridge) publish(ctx context.Context, e *event.Event) {
	if e == nil || e.Seq == 0 {
		return
	}
	b.plugins.EmitEvent(ctx, e)
}

// Events reads the journal.
func (b *Bridge) Events(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	return b.store.ListEvents(ctx, opts)
}
