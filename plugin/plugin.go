// Package plugin provides lifecycle hooks for FiatBridge.
// A plugin implements Plugin plus any of the On* interfaces it cares about;
// the Registry discovers the hooks at registration time.
package plugin

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/permission"
	"github.com/xraph/fiatbridge/transaction"
	"github.com/xraph/fiatbridge/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the bridge starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, bridge interface{}) error
}

// OnShutdown is called when the bridge stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Permission hooks
// ──────────────────────────────────────────────────

// OnPermissionGranted is called after a grant is stored.
type OnPermissionGranted interface {
	Plugin
	OnPermissionGranted(ctx context.Context, p *permission.Permission) error
}

// ──────────────────────────────────────────────────
// Transaction hooks
// ──────────────────────────────────────────────────

// OnTransactionInitiated is called after funds are locked.
type OnTransactionInitiated interface {
	Plugin
	OnTransactionInitiated(ctx context.Context, tx *transaction.Transaction) error
}

// OnTransactionCompleted is called after the owner settles a transaction.
// refund is the unspent amount returned to the user.
type OnTransactionCompleted interface {
	Plugin
	OnTransactionCompleted(ctx context.Context, tx *transaction.Transaction, refund types.Amount) error
}

// OnTransactionRefunded is called after a user reclaims an expired lock.
type OnTransactionRefunded interface {
	Plugin
	OnTransactionRefunded(ctx context.Context, tx *transaction.Transaction) error
}

// ──────────────────────────────────────────────────
// Administrative hooks
// ──────────────────────────────────────────────────

// OnFeesWithdrawn is called after collected fees leave custody.
type OnFeesWithdrawn interface {
	Plugin
	OnFeesWithdrawn(ctx context.Context, token, to common.Address, amount types.Amount) error
}

// OnTokenSupportChanged is called when a token is added or removed.
type OnTokenSupportChanged interface {
	Plugin
	OnTokenSupportChanged(ctx context.Context, token common.Address, supported bool) error
}

// OnSpreadFeeUpdated is called when the fee rate changes.
type OnSpreadFeeUpdated interface {
	Plugin
	OnSpreadFeeUpdated(ctx context.Context, oldBps, newBps uint16) error
}

// OnPauseChanged is called when the bridge is paused or unpaused.
type OnPauseChanged interface {
	Plugin
	OnPauseChanged(ctx context.Context, paused bool) error
}

// ──────────────────────────────────────────────────
// Journal and failure hooks
// ──────────────────────────────────────────────────

// OnEvent receives every journal event after it is appended.
type OnEvent interface {
	Plugin
	OnEvent(ctx context.Context, e *event.Event) error
}

// OnOperationFailed is called when an operation is rejected or fails.
type OnOperationFailed interface {
	Plugin
	OnOperationFailed(ctx context.Context, op string, err error) error
}
