// Package permission models per-user, per-token spending authorizations.
package permission

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/types"
)

// MaxDuration is the longest authorization a grant may request.
const MaxDuration = 365 * 24 * time.Hour

// Permission authorizes User to lock up to MaxAmount of Token per
// transaction until ExpiryTime. A new grant for the same (User, Token)
// replaces every field.
type Permission struct {
	types.Entity
	User       common.Address `json:"user"`
	Token      common.Address `json:"token"`
	MaxAmount  types.Amount   `json:"max_amount"`
	ExpiryTime time.Time      `json:"expiry_time"`
	IsActive   bool           `json:"is_active"`
}

// IsExpired reports whether the permission has lapsed at now.
func (p *Permission) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiryTime)
}

// IsUsable reports whether the permission can back a new transaction at now.
func (p *Permission) IsUsable(now time.Time) bool {
	return p.IsActive && !p.IsExpired(now)
}

// Allows reports whether amount fits under the per-transaction ceiling.
func (p *Permission) Allows(amount types.Amount) bool {
	return !amount.GreaterThan(p.MaxAmount)
}
