package event

import "context"

// Store is the journal. It has no update or delete operations.
type Store interface {
	AppendEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
	// LastEventSeq returns 0 for an empty journal.
	LastEventSeq(ctx context.Context) (uint64, error)
}

// ListOpts filters ListEvents. Events are returned in Seq order.
type ListOpts struct {
	AfterSeq uint64
	Type     Type
	Limit    int
}
