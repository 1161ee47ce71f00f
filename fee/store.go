package fee

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/types"
)

// Store persists collected fee balances keyed by token.
type Store interface {
	// GetCollectedFees returns zero for a token that has never collected fees.
	GetCollectedFees(ctx context.Context, token common.Address) (types.Amount, error)
	SetCollectedFees(ctx context.Context, token common.Address, amount types.Amount) error
	ListCollectedFees(ctx context.Context) ([]*Balance, error)
}
