// Package token defines the fungible-token interface the bridge consumes.
// The bridge never implements transfers itself; it calls a Token bound to
// its custody account.
package token

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/types"
)

// Errors a Token implementation may return. Implementations may also return
// their own errors; callers treat any error other than ErrTransferPending as
// a failed, effect-free transfer.
var (
	ErrInsufficientBalance   = errors.New("token: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrUnknownToken          = errors.New("token: unknown token")

	// ErrTransferPending means the transfer was submitted but its outcome is
	// unknown. Funds may already have moved, so callers must not compensate.
	ErrTransferPending = errors.New("token: transfer submitted but not confirmed")
)

// Token is an ERC-20 style token as seen from the custody account.
type Token interface {
	// BalanceOf returns the balance held by account.
	BalanceOf(ctx context.Context, account common.Address) (types.Amount, error)
	// TransferFrom moves amount from owner to recipient using the allowance
	// owner granted to the custody account.
	TransferFrom(ctx context.Context, owner, recipient common.Address, amount types.Amount) error
	// Transfer moves amount from the custody account to recipient.
	Transfer(ctx context.Context, recipient common.Address, amount types.Amount) error
}

// Resolver looks up the Token for a token address.
type Resolver interface {
	Token(address common.Address) (Token, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(address common.Address) (Token, error)

// Token implements Resolver.
func (f ResolverFunc) Token(address common.Address) (Token, error) { return f(address) }
