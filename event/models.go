// Package event defines the append-only journal of bridge transitions.
package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/id"
	"github.com/xraph/fiatbridge/types"
)

// Type names a transition.
type Type string

const (
	PermissionGranted    Type = "PermissionGranted"
	TransactionInitiated Type = "TransactionInitiated"
	TransactionCompleted Type = "TransactionCompleted"
	TransactionRefunded  Type = "TransactionRefunded"
	FeesWithdrawn        Type = "FeesWithdrawn"
	TokenAdded           Type = "TokenAdded"
	TokenRemoved         Type = "TokenRemoved"
	SpreadFeeUpdated     Type = "SpreadFeeUpdated"
	Paused               Type = "Paused"
	Unpaused             Type = "Unpaused"
)

// Event records one transition. Seq is assigned by the bridge and increases
// by one per event. Fields that do not apply to a Type are left zero.
type Event struct {
	ID          id.EventID     `json:"id"`
	Seq         uint64         `json:"seq"`
	Type        Type           `json:"type"`
	Actor       common.Address `json:"actor"`
	User        common.Address `json:"user,omitempty"`
	Token       common.Address `json:"token,omitempty"`
	TxID        id.TxID        `json:"tx_id,omitempty"`
	Amount      types.Amount   `json:"amount"`
	Fee         types.Amount   `json:"fee"`
	AmountSpent types.Amount   `json:"amount_spent"`
	Refund      types.Amount   `json:"refund"`
	OldFeeBps   uint16         `json:"old_fee_bps,omitempty"`
	NewFeeBps   uint16         `json:"new_fee_bps,omitempty"`
	ExpiresAt   time.Time      `json:"expires_at,omitzero"`
	OccurredAt  time.Time      `json:"occurred_at"`
}
