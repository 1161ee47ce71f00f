package fiatbridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/permission"
	"github.com/xraph/fiatbridge/types"
)

// GrantPermission authorizes the operator to lock up to maxAmount of
// tokenAddr per transaction on caller's behalf until now + duration.
// A later grant for the same pair replaces the earlier one.
func (b *Bridge) GrantPermission(ctx context.Context, caller, tokenAddr common.Address, maxAmount types.Amount, duration time.Duration) (*permission.Permission, error) {
	const op = "grant_permission"

	unlock := b.locks.Lock(permissionLockKey(caller, tokenAddr))
	p, ev, err := b.grant(ctx, caller, tokenAddr, maxAmount, duration)
	unlock()
	if err != nil {
		return nil, b.fail(ctx, op, err)
	}

	b.logger.Debug("fiatbridge permission granted",
		"user", caller.Hex(),
		"token", tokenAddr.Hex(),
		"max_amount", maxAmount.String(),
		"expires_at", p.ExpiryTime,
	)
	b.plugins.EmitPermissionGranted(ctx, p)
	b.publish(ctx, ev)

	return p, nil
}

// grant runs with the permission key held. adminMu is taken after the key,
// the same order initiate uses.
func (b *Bridge) grant(ctx context.Context, caller, tokenAddr common.Address, maxAmount types.Amount, duration time.Duration) (*permission.Permission, *event.Event, error) {
	b.adminMu.RLock()
	defer b.adminMu.RUnlock()

	if err := b.admit(ctx, tokenAddr); err != nil {
		return nil, nil, err
	}
	if duration > permission.MaxDuration {
		return nil, nil, ErrDurationTooLong
	}
	if duration < 0 {
		return nil, nil, ErrNegativeDuration
	}
	if !maxAmount.IsPositive() {
		return nil, nil, ErrAmountMustBePositive
	}

	now := b.now()
	p := &permission.Permission{
		Entity:     types.NewEntity(now),
		User:       caller,
		Token:      tokenAddr,
		MaxAmount:  maxAmount,
		ExpiryTime: now.Add(duration),
		IsActive:   true,
	}

	existing, err := b.store.GetPermission(ctx, caller, tokenAddr)
	switch {
	case err == nil:
		p.CreatedAt = existing.CreatedAt
	case !errors.Is(err, ErrPermissionNotFound):
		return nil, nil, fmt.Errorf("fiatbridge: load permission: %w", err)
	}

	if err := b.store.PutPermission(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("fiatbridge: store permission: %w", err)
	}

	ev := &event.Event{
		Type:       event.PermissionGranted,
		Actor:      caller,
		User:       caller,
		Token:      tokenAddr,
		Amount:     maxAmount,
		ExpiresAt:  p.ExpiryTime,
		OccurredAt: now,
	}
	b.record(ctx, ev)

	return p, ev, nil
}

// Permission returns the stored permission for (user, tokenAddr).
func (b *Bridge) Permission(ctx context.Context, user, tokenAddr common.Address) (*permission.Permission, error) {
	return b.store.GetPermission(ctx, user, tokenAddr)
}

// Permissions lists every permission user has granted.
func (b *Bridge) Permissions(ctx context.Context, user common.Address) ([]*permission.Permission, error) {
	return b.store.ListPermissions(ctx, user)
}
