package fiatbridge

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/fee"
	"github.com/xraph/fiatbridge/types"
)

// creditFees adds amount to the accumulator for tokenAddr.
func (b *Bridge) creditFees(ctx context.Context, tokenAddr common.Address, amount types.Amount) error {
	if amount.IsZero() {
		return nil
	}

	unlock := b.locks.Lock(feeLockKey(tokenAddr))
	defer unlock()

	cur, err := b.store.GetCollectedFees(ctx, tokenAddr)
	if err != nil {
		return fmt.Errorf("fiatbridge: load collected fees: %w", err)
	}
	if err := b.store.SetCollectedFees(ctx, tokenAddr, cur.Add(amount)); err != nil {
		return fmt.Errorf("fiatbridge: credit fees: %w", err)
	}
	return nil
}

// WithdrawFees transfers amount of the collected fees for tokenAddr to the
// owner. Any remainder stays collected.
func (b *Bridge) WithdrawFees(ctx context.Context, caller, tokenAddr common.Address, amount types.Amount) error {
	const op = "withdraw_fees"

	if err := b.requireOwner(caller); err != nil {
		return b.fail(ctx, op, err)
	}
	if !amount.IsPositive() {
		return b.fail(ctx, op, ErrAmountMustBePositive)
	}

	unlock := b.locks.Lock(feeLockKey(tokenAddr))
	ev, err := b.withdraw(ctx, caller, tokenAddr, amount)
	unlock()
	if err != nil {
		b.publish(ctx, ev)
		return b.fail(ctx, op, err)
	}

	b.logger.Info("fiatbridge fees withdrawn",
		"token", tokenAddr.Hex(),
		"amount", amount.String(),
	)
	b.plugins.EmitFeesWithdrawn(ctx, tokenAddr, b.owner, amount)
	b.publish(ctx, ev)

	return nil
}

func (b *Bridge) withdraw(ctx context.Context, caller, tokenAddr common.Address, amount types.Amount) (*event.Event, error) {
	cur, err := b.store.GetCollectedFees(ctx, tokenAddr)
	if err != nil {
		return nil, fmt.Errorf("fiatbridge: load collected fees: %w", err)
	}
	if amount.GreaterThan(cur) {
		return nil, ErrInsufficientCollectedFees
	}

	tk, err := b.resolveToken(tokenAddr)
	if err != nil {
		return nil, err
	}

	if err := b.store.SetCollectedFees(ctx, tokenAddr, cur.Sub(amount)); err != nil {
		return nil, fmt.Errorf("fiatbridge: debit fees: %w", err)
	}

	var terr *TransferError
	if err := tk.Transfer(ctx, b.owner, amount); err != nil {
		terr = &TransferError{Op: "transfer", Token: tokenAddr, Err: err}
		if !terr.Pending() {
			b.restoreFees(ctx, tokenAddr, cur)
			return nil, terr
		}
		// The owner may already hold the tokens; keep the debit.
		b.logger.Error("fiatbridge: fee withdrawal not confirmed, debit kept",
			"token", tokenAddr.Hex(),
			"amount", amount.String(),
			"error", err,
		)
	}

	ev := &event.Event{
		Type:   event.FeesWithdrawn,
		Actor:  caller,
		User:   b.owner,
		Token:  tokenAddr,
		Amount: amount,
	}
	b.record(ctx, ev)

	if terr != nil {
		return ev, terr
	}
	return ev, nil
}

func (b *Bridge) restoreFees(ctx context.Context, tokenAddr common.Address, cur types.Amount) {
	if err := b.store.SetCollectedFees(ctx, tokenAddr, cur); err != nil {
		b.logger.Error("fiatbridge: compensation failed",
			"step", "restore collected fees",
			"token", tokenAddr.Hex(),
			"error", err,
		)
	}
}

// CollectedFees returns the withdrawable fee balance for tokenAddr.
func (b *Bridge) CollectedFees(ctx context.Context, tokenAddr common.Address) (types.Amount, error) {
	return b.store.GetCollectedFees(ctx, tokenAddr)
}

// FeeBalances lists every token's fee accumulator.
func (b *Bridge) FeeBalances(ctx context.Context) ([]*fee.Balance, error) {
	return b.store.ListCollectedFees(ctx)
}
