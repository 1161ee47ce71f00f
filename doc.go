// Package fiatbridge provides a permission-gated token escrow and settlement
// engine for Go applications.
//
// FiatBridge is designed as a library, not a service. A user pre-authorizes
// the operator to lock a bounded amount of a token per transaction. Each
// lock moves the amount plus a spread fee into custody. The operator later
// reports how much was spent off-chain and the unspent remainder goes back
// to the user. If the operator does not settle before the lock expires the
// user reclaims the full locked amount.
//
//   - Per-(user, token) permissions with a per-transaction ceiling and expiry
//   - Locked transactions with completion and expired-lock claim paths
//   - Spread fees in basis points, collected per token
//   - Owner-managed token registry, fee rate and pause switch
//   - Append-only event journal, dispatched to plugins
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/fiatbridge"
//	    "github.com/xraph/fiatbridge/store/memory"
//	    "github.com/xraph/fiatbridge/token/erc20"
//	)
//
//	tokens, err := erc20.Dial(ctx, rpcURL, custodyKeyHex, chainID)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	b := fiatbridge.New(memory.New(), owner, tokens,
//	    fiatbridge.WithCustody(tokens.Custody()),
//	)
//	if err := b.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Stop()
//
// # Lifecycle
//
// The owner enables a token, then a user grants a permission and locks funds:
//
//	_ = b.AddSupportedToken(ctx, owner, usdc)
//	_, _ = b.GrantPermission(ctx, user, usdc, amount, 30*24*time.Hour)
//	tx, err := b.InitiateTransaction(ctx, user, usdc, types.NewAmount(1000), time.Hour)
//
// The operator settles with the amount actually spent:
//
//	_, err = b.CompleteTransaction(ctx, owner, tx.ID, types.NewAmount(700))
//
// or, once the lock has expired unsettled, the user takes it back:
//
//	_, err = b.ClaimExpiredLock(ctx, user, tx.ID)
//
// # Time
//
// Expiry is evaluated lazily against the engine Clock at call time. There
// are no timers. Tests inject a ManualClock.
//
// # Identifiers
//
// Transaction ids are 32-byte Keccak-256 digests of a per-process salt, the
// initiation parameters and a monotonic counter. Journal events use TypeIDs:
//
//	evt_01h2xcejqtf2nbrexx3vqjhp41
package fiatbridge
