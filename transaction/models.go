// Package transaction models locked escrow transactions and their
// settlement state.
package transaction

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/id"
	"github.com/xraph/fiatbridge/types"
)

// Status is a derived view of the terminal flags.
type Status string

const (
	StatusLocked    Status = "locked"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
)

// Transaction is a locked amount awaiting settlement. Amount and FeeAmount
// are fixed at creation. IsCompleted and IsRefunded are mutually exclusive;
// once either is set the record never changes again.
type Transaction struct {
	types.Entity
	ID          id.TxID        `json:"id"`
	User        common.Address `json:"user"`
	Token       common.Address `json:"token"`
	Amount      types.Amount   `json:"amount"`
	FeeAmount   types.Amount   `json:"fee_amount"`
	LockExpiry  time.Time      `json:"lock_expiry"`
	IsCompleted bool           `json:"is_completed"`
	IsRefunded  bool           `json:"is_refunded"`
	AmountSpent types.Amount   `json:"amount_spent"`
}

// Status returns the lifecycle state.
func (t *Transaction) Status() Status {
	switch {
	case t.IsCompleted:
		return StatusCompleted
	case t.IsRefunded:
		return StatusRefunded
	default:
		return StatusLocked
	}
}

// IsTerminal reports whether the transaction has been settled either way.
func (t *Transaction) IsTerminal() bool {
	return t.IsCompleted || t.IsRefunded
}

// IsExpired reports whether the lock has lapsed at now.
func (t *Transaction) IsExpired(now time.Time) bool {
	return !now.Before(t.LockExpiry)
}

// Unspent returns Amount - AmountSpent.
func (t *Transaction) Unspent() types.Amount {
	return t.Amount.Sub(t.AmountSpent)
}

// Clone returns a copy that shares no mutable state with t.
func (t *Transaction) Clone() *Transaction {
	c := *t
	return &c
}
