// Package registry holds the administrative state of a bridge: its owner,
// pause flag, fee rate and the set of supported tokens.
package registry

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Settings are the scalar administrative values. Owner never changes after
// the first Start.
type Settings struct {
	Owner        common.Address `json:"owner"`
	Paused       bool           `json:"paused"`
	SpreadFeeBps uint16         `json:"spread_fee_bps"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SupportedToken is a member of the supported token set.
type SupportedToken struct {
	Token   common.Address `json:"token"`
	AddedAt time.Time      `json:"added_at"`
}
