// Package fee holds spread-fee parameters and per-token fee accounting.
package fee

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/types"
)

// MaxSpreadBps is the highest spread fee the owner may configure (5%).
const MaxSpreadBps uint16 = 500

// DefaultSpreadBps is the spread fee used when none is configured (1%).
const DefaultSpreadBps uint16 = 100

// Compute returns the spread fee charged on amount at rate bps, rounded down.
func Compute(amount types.Amount, bps uint16) types.Amount {
	return amount.Bps(bps)
}

// ValidRate reports whether bps is within [0, MaxSpreadBps].
func ValidRate(bps uint16) bool {
	return bps <= MaxSpreadBps
}

// Balance is the fee accumulator for one token.
type Balance struct {
	Token     common.Address `json:"token"`
	Collected types.Amount   `json:"collected"`
	UpdatedAt time.Time      `json:"updated_at"`
}
