package fiatbridge

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/fee"
	"github.com/xraph/fiatbridge/registry"
)

// AddSupportedToken marks tokenAddr as eligible for grants and initiations.
// Adding an already supported token is a no-op.
func (b *Bridge) AddSupportedToken(ctx context.Context, caller, tokenAddr common.Address) error {
	return b.setTokenSupport(ctx, caller, tokenAddr, true)
}

// RemoveSupportedToken stops new grants and initiations for tokenAddr.
// Existing transactions can still be settled.
func (b *Bridge) RemoveSupportedToken(ctx context.Context, caller, tokenAddr common.Address) error {
	return b.setTokenSupport(ctx, caller, tokenAddr, false)
}

func (b *Bridge) setTokenSupport(ctx context.Context, caller, tokenAddr common.Address, supported bool) error {
	op := "remove_supported_token"
	if supported {
		op = "add_supported_token"
	}
	if err := b.requireOwner(caller); err != nil {
		return b.fail(ctx, op, err)
	}

	b.adminMu.Lock()
	ev, err := b.applyTokenSupport(ctx, caller, tokenAddr, supported)
	b.adminMu.Unlock()
	if err != nil {
		return b.fail(ctx, op, err)
	}
	if ev == nil {
		return nil
	}

	b.logger.Info("fiatbridge token support changed",
		"token", tokenAddr.Hex(),
		"supported", supported,
	)
	b.plugins.EmitTokenSupportChanged(ctx, tokenAddr, supported)
	b.publish(ctx, ev)

	return nil
}

func (b *Bridge) applyTokenSupport(ctx context.Context, caller, tokenAddr common.Address, supported bool) (*event.Event, error) {
	current, err := b.store.IsSupportedToken(ctx, tokenAddr)
	if err != nil {
		return nil, fmt.Errorf("fiatbridge: check token support: %w", err)
	}
	if current == supported {
		return nil, nil
	}

	typ := event.TokenRemoved
	if supported {
		typ = event.TokenAdded
		err = b.store.AddSupportedToken(ctx, &registry.SupportedToken{Token: tokenAddr, AddedAt: b.now()})
	} else {
		err = b.store.RemoveSupportedToken(ctx, tokenAddr)
	}
	if err != nil {
		return nil, fmt.Errorf("fiatbridge: update token support: %w", err)
	}

	ev := &event.Event{Type: typ, Actor: caller, Token: tokenAddr}
	b.record(ctx, ev)
	return ev, nil
}

// IsSupportedToken reports whether tokenAddr may be used.
func (b *Bridge) IsSupportedToken(ctx context.Context, tokenAddr common.Address) (bool, error) {
	return b.store.IsSupportedToken(ctx, tokenAddr)
}

// SupportedTokens lists the supported tokens ordered by address.
func (b *Bridge) SupportedTokens(ctx context.Context) ([]*registry.SupportedToken, error) {
	return b.store.ListSupportedTokens(ctx)
}

// UpdateSpreadFee sets the fee rate applied to future initiations.
// Transactions already initiated keep the fee they were charged.
func (b *Bridge) UpdateSpreadFee(ctx context.Context, caller common.Address, bps uint16) error {
	const op = "update_spread_fee"
	if err := b.requireOwner(caller); err != nil {
		return b.fail(ctx, op, err)
	}
	if !fee.ValidRate(bps) {
		return b.fail(ctx, op, ErrFeeTooHigh)
	}

	b.adminMu.Lock()
	old := b.spreadFeeBps
	err := b.saveSettings(ctx, b.paused, bps)
	var ev *event.Event
	if err == nil {
		b.spreadFeeBps = bps
		ev = &event.Event{Type: event.SpreadFeeUpdated, Actor: caller, OldFeeBps: old, NewFeeBps: bps}
		b.record(ctx, ev)
	}
	b.adminMu.Unlock()
	if err != nil {
		return b.fail(ctx, op, err)
	}

	b.logger.Info("fiatbridge spread fee updated", "old_bps", old, "new_bps", bps)
	b.plugins.EmitSpreadFeeUpdated(ctx, old, bps)
	b.publish(ctx, ev)

	return nil
}

// Pause blocks grants and initiations. Settlement, claims and fee
// withdrawal remain available. Pausing a paused bridge is a no-op.
func (b *Bridge) Pause(ctx context.Context, caller common.Address) error {
	return b.setPaused(ctx, caller, true)
}

// Unpause lifts a pause. Unpausing a running bridge is a no-op.
func (b *Bridge) Unpause(ctx context.Context, caller common.Address) error {
	return b.setPaused(ctx, caller, false)
}

func (b *Bridge) setPaused(ctx context.Context, caller common.Address, paused bool) error {
	op := "unpause"
	typ := event.Unpaused
	if paused {
		op = "pause"
		typ = event.Paused
	}
	if err := b.requireOwner(caller); err != nil {
		return b.fail(ctx, op, err)
	}

	b.adminMu.Lock()
	if b.paused == paused {
		b.adminMu.Unlock()
		return nil
	}
	err := b.saveSettings(ctx, paused, b.spreadFeeBps)
	var ev *event.Event
	if err == nil {
		b.paused = paused
		ev = &event.Event{Type: typ, Actor: caller}
		b.record(ctx, ev)
	}
	b.adminMu.Unlock()
	if err != nil {
		return b.fail(ctx, op, err)
	}

	b.logger.Info("fiatbridge pause state changed", "paused", paused)
	b.plugins.EmitPauseChanged(ctx, paused)
	b.publish(ctx, ev)

	return nil
}
