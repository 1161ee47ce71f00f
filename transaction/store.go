package transaction

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/id"
)

// Store persists transactions keyed by id.
type Store interface {
	CreateTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, txID id.TxID) (*Transaction, error)
	ListTransactions(ctx context.Context, opts ListOpts) ([]*Transaction, error)
	// SettleTransaction persists a terminal transition. It must fail with
	// an already-processed error if the stored record is already terminal.
	SettleTransaction(ctx context.Context, t *Transaction) error
	// RevertSettlement restores a record to the locked state after a
	// settlement whose refund transfer failed.
	RevertSettlement(ctx context.Context, t *Transaction) error
	DeleteTransaction(ctx context.Context, txID id.TxID) error
}

// ListOpts filters ListTransactions. Zero-valued fields do not filter.
type ListOpts struct {
	User   common.Address
	Token  common.Address
	Status Status
	Limit  int
	Offset int
}
