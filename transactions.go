package fiatbridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/fee"
	"github.com/xraph/fiatbridge/id"
	"github.com/xraph/fiatbridge/permission"
	"github.com/xraph/fiatbridge/token"
	"github.com/xraph/fiatbridge/transaction"
	"github.com/xraph/fiatbridge/types"
)

// InitiateTransaction locks amount of tokenAddr from caller into custody
// until now + lockDuration, charging the current spread fee on top. The
// caller must have approved custody for amount plus fee.
func (b *Bridge) InitiateTransaction(ctx context.Context, caller, tokenAddr common.Address, amount types.Amount, lockDuration time.Duration) (*transaction.Transaction, error) {
	const op = "initiate_transaction"

	tx, ev, err := b.initiate(ctx, caller, tokenAddr, amount, lockDuration)
	if err != nil {
		return nil, b.fail(ctx, op, err)
	}

	b.logger.Info("fiatbridge transaction initiated",
		"tx_id", tx.ID.Hex(),
		"user", caller.Hex(),
		"token", tokenAddr.Hex(),
		"amount", tx.Amount.String(),
		"fee", tx.FeeAmount.String(),
		"lock_expiry", tx.LockExpiry,
	)
	b.plugins.EmitTransactionInitiated(ctx, tx.Clone())
	b.publish(ctx, ev)

	return tx, nil
}

// initiate admits the call under adminMu, pulls funds with adminMu
// released, then re-checks the administrative state under adminMu before
// persisting. A pause or token removal that lands while the pull is in
// flight rejects the initiation and returns the funds.
func (b *Bridge) initiate(ctx context.Context, caller, tokenAddr common.Address, amount types.Amount, lockDuration time.Duration) (*transaction.Transaction, *event.Event, error) {
	b.adminMu.RLock()
	bps := b.spreadFeeBps
	err := b.admit(ctx, tokenAddr)
	b.adminMu.RUnlock()
	if err != nil {
		return nil, nil, err
	}

	unlock := b.locks.Lock(permissionLockKey(caller, tokenAddr))
	defer unlock()

	now := b.now()
	if err := b.checkPermission(ctx, caller, tokenAddr, amount, now); err != nil {
		return nil, nil, err
	}
	if lockDuration < 0 {
		return nil, nil, ErrNegativeDuration
	}

	tk, err := b.resolveToken(tokenAddr)
	if err != nil {
		return nil, nil, err
	}

	feeAmount := fee.Compute(amount, bps)
	total := amount.Add(feeAmount)

	if err := tk.TransferFrom(ctx, caller, b.custody, total); err != nil {
		terr := &TransferError{Op: "transfer_from", Token: tokenAddr, Err: err}
		if terr.Pending() {
			b.logger.Error("fiatbridge: pull not confirmed, reconcile custody",
				"user", caller.Hex(),
				"token", tokenAddr.Hex(),
				"amount", total.String(),
				"error", err,
			)
		}
		return nil, nil, terr
	}

	b.adminMu.RLock()
	defer b.adminMu.RUnlock()

	if err := b.admit(ctx, tokenAddr); err != nil {
		b.returnFunds(ctx, tk, caller, total, "admission changed")
		return nil, nil, err
	}

	tx := &transaction.Transaction{
		Entity:     types.NewEntity(now),
		ID:         b.ids.Next(caller, tokenAddr, amount.Big()),
		User:       caller,
		Token:      tokenAddr,
		Amount:     amount,
		FeeAmount:  feeAmount,
		LockExpiry: now.Add(lockDuration),
	}

	if err := b.store.CreateTransaction(ctx, tx); err != nil {
		b.returnFunds(ctx, tk, caller, total, "create transaction")
		return nil, nil, fmt.Errorf("fiatbridge: store transaction: %w", err)
	}

	if err := b.creditFees(ctx, tokenAddr, feeAmount); err != nil {
		if derr := b.store.DeleteTransaction(ctx, tx.ID); derr != nil {
			b.logger.Error("fiatbridge: compensation failed",
				"step", "delete transaction",
				"tx_id", tx.ID.Hex(),
				"error", derr,
			)
		}
		b.returnFunds(ctx, tk, caller, total, "credit fees")
		return nil, nil, err
	}

	ev := &event.Event{
		Type:       event.TransactionInitiated,
		Actor:      caller,
		User:       caller,
		Token:      tokenAddr,
		TxID:       tx.ID,
		Amount:     amount,
		Fee:        feeAmount,
		ExpiresAt:  tx.LockExpiry,
		OccurredAt: now,
	}
	b.record(ctx, ev)

	return tx, ev, nil
}

func (b *Bridge) checkPermission(ctx context.Context, user, tokenAddr common.Address, amount types.Amount, now time.Time) error {
	p, err := b.store.GetPermission(ctx, user, tokenAddr)
	switch {
	case errors.Is(err, ErrPermissionNotFound):
		return ErrNoActivePermission
	case err != nil:
		return fmt.Errorf("fiatbridge: load permission: %w", err)
	}
	return validateAgainst(p, amount, now)
}

func validateAgainst(p *permission.Permission, amount types.Amount, now time.Time) error {
	if !p.IsActive {
		return ErrNoActivePermission
	}
	if p.IsExpired(now) {
		return ErrPermissionExpired
	}
	if !amount.IsPositive() {
		return ErrAmountMustBePositive
	}
	if !p.Allows(amount) {
		return ErrAmountExceedsLimit
	}
	return nil
}

// returnFunds sends total back to user after a failed initiation.
func (b *Bridge) returnFunds(ctx context.Context, tk token.Token, user common.Address, total types.Amount, step string) {
	if err := tk.Transfer(ctx, user, total); err != nil {
		msg := "fiatbridge: compensation failed"
		if errors.Is(err, token.ErrTransferPending) {
			msg = "fiatbridge: compensation not confirmed, reconcile custody"
		}
		b.logger.Error(msg,
			"step", step,
			"user", user.Hex(),
			"amount", total.String(),
			"error", err,
		)
	}
}

// CompleteTransaction settles id with amountSpent actually used off-chain
// and refunds the unspent remainder to the user. The fee is not refunded.
func (b *Bridge) CompleteTransaction(ctx context.Context, caller common.Address, txID id.TxID, amountSpent types.Amount) (*transaction.Transaction, error) {
	const op = "complete_transaction"

	if err := b.requireOwner(caller); err != nil {
		return nil, b.fail(ctx, op, err)
	}

	unlock := b.locks.Lock(transactionLockKey(txID))
	tx, refund, ev, err := b.complete(ctx, caller, txID, amountSpent)
	unlock()
	if err != nil {
		b.publish(ctx, ev)
		return nil, b.fail(ctx, op, err)
	}

	b.logger.Info("fiatbridge transaction completed",
		"tx_id", txID.Hex(),
		"amount_spent", amountSpent.String(),
		"refund", refund.String(),
	)
	b.plugins.EmitTransactionCompleted(ctx, tx.Clone(), refund)
	b.publish(ctx, ev)

	return tx, nil
}

func (b *Bridge) complete(ctx context.Context, caller common.Address, txID id.TxID, amountSpent types.Amount) (*transaction.Transaction, types.Amount, *event.Event, error) {
	before, err := b.loadTransaction(ctx, txID)
	if err != nil {
		return nil, types.Amount{}, nil, err
	}
	if before.IsTerminal() {
		return nil, types.Amount{}, nil, ErrAlreadyProcessed
	}

	now := b.now()
	if before.IsExpired(now) {
		return nil, types.Amount{}, nil, ErrLockExpired
	}
	if amountSpent.IsNegative() {
		return nil, types.Amount{}, nil, ErrNegativeAmount
	}
	if amountSpent.GreaterThan(before.Amount) {
		return nil, types.Amount{}, nil, ErrAmountSpentExceedsLocked
	}

	tx := before.Clone()
	tx.IsCompleted = true
	tx.AmountSpent = amountSpent
	tx.Touch(now)
	refund := tx.Unspent()

	settleErr := b.settle(ctx, before, tx, refund)
	if settleErr != nil && !IsTransferPending(settleErr) {
		return nil, types.Amount{}, nil, settleErr
	}

	ev := &event.Event{
		Type:        event.TransactionCompleted,
		Actor:       caller,
		User:        tx.User,
		Token:       tx.Token,
		TxID:        tx.ID,
		Amount:      tx.Amount,
		Fee:         tx.FeeAmount,
		AmountSpent: amountSpent,
		Refund:      refund,
		OccurredAt:  now,
	}
	b.record(ctx, ev)

	return tx, refund, ev, settleErr
}

// ClaimExpiredLock returns the full locked amount of an unsettled,
// expired transaction to its user. The fee is not refunded.
func (b *Bridge) ClaimExpiredLock(ctx context.Context, caller common.Address, txID id.TxID) (*transaction.Transaction, error) {
	const op = "claim_expired_lock"

	unlock := b.locks.Lock(transactionLockKey(txID))
	tx, ev, err := b.claim(ctx, caller, txID)
	unlock()
	if err != nil {
		b.publish(ctx, ev)
		return nil, b.fail(ctx, op, err)
	}

	b.logger.Info("fiatbridge expired lock claimed",
		"tx_id", txID.Hex(),
		"user", caller.Hex(),
		"amount", tx.Amount.String(),
	)
	b.plugins.EmitTransactionRefunded(ctx, tx.Clone())
	b.publish(ctx, ev)

	return tx, nil
}

func (b *Bridge) claim(ctx context.Context, caller common.Address, txID id.TxID) (*transaction.Transaction, *event.Event, error) {
	before, err := b.loadTransaction(ctx, txID)
	if err != nil {
		return nil, nil, err
	}
	if before.IsTerminal() {
		return nil, nil, ErrAlreadyProcessed
	}
	if before.User != caller {
		return nil, nil, ErrNotTransactionOwner
	}

	now := b.now()
	if !before.IsExpired(now) {
		return nil, nil, ErrLockNotExpired
	}

	tx := before.Clone()
	tx.IsRefunded = true
	tx.Touch(now)

	settleErr := b.settle(ctx, before, tx, tx.Amount)
	if settleErr != nil && !IsTransferPending(settleErr) {
		return nil, nil, settleErr
	}

	ev := &event.Event{
		Type:       event.TransactionRefunded,
		Actor:      caller,
		User:       tx.User,
		Token:      tx.Token,
		TxID:       tx.ID,
		Amount:     tx.Amount,
		Fee:        tx.FeeAmount,
		Refund:     tx.Amount,
		OccurredAt: now,
	}
	b.record(ctx, ev)

	return tx, ev, settleErr
}

func (b *Bridge) loadTransaction(ctx context.Context, txID id.TxID) (*transaction.Transaction, error) {
	tx, err := b.store.GetTransaction(ctx, txID)
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		return nil, ErrTransactionNotFound
	case err != nil:
		return nil, fmt.Errorf("fiatbridge: load transaction: %w", err)
	}
	return tx, nil
}

// settle persists the terminal record, then pays refund to the user. If
// the payment fails the record is restored to before. A payment that was
// submitted but not confirmed keeps the terminal record so the lock can
// never be paid out twice; the returned TransferError reports Pending.
func (b *Bridge) settle(ctx context.Context, before, after *transaction.Transaction, refund types.Amount) error {
	var tk token.Token
	if refund.IsPositive() {
		var err error
		if tk, err = b.resolveToken(after.Token); err != nil {
			return err
		}
	}

	if err := b.store.SettleTransaction(ctx, after); err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("fiatbridge: settle transaction: %w", err)
	}

	if tk == nil {
		return nil
	}

	if err := tk.Transfer(ctx, after.User, refund); err != nil {
		terr := &TransferError{Op: "transfer", Token: after.Token, Err: err}
		if terr.Pending() {
			b.logger.Error("fiatbridge: refund not confirmed, settlement kept",
				"tx_id", after.ID.Hex(),
				"user", after.User.Hex(),
				"refund", refund.String(),
				"error", err,
			)
			return terr
		}
		if rerr := b.store.RevertSettlement(ctx, before); rerr != nil {
			b.logger.Error("fiatbridge: compensation failed",
				"step", "revert settlement",
				"tx_id", after.ID.Hex(),
				"error", rerr,
			)
		}
		return terr
	}

	return nil
}

// Transaction returns the stored transaction.
func (b *Bridge) Transaction(ctx context.Context, txID id.TxID) (*transaction.Transaction, error) {
	return b.store.GetTransaction(ctx, txID)
}

// Transactions lists transactions matching opts.
func (b *Bridge) Transactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	return b.store.ListTransactions(ctx, opts)
}
