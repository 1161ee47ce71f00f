// Package audithook bridges FiatBridge lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import any
// audit system directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge"
	"github.com/xraph/fiatbridge/id"
	"github.com/xraph/fiatbridge/permission"
	"github.com/xraph/fiatbridge/plugin"
	"github.com/xraph/fiatbridge/transaction"
	"github.com/xraph/fiatbridge/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnPermissionGranted    = (*Extension)(nil)
	_ plugin.OnTransactionInitiated = (*Extension)(nil)
	_ plugin.OnTransactionCompleted = (*Extension)(nil)
	_ plugin.OnTransactionRefunded  = (*Extension)(nil)
	_ plugin.OnFeesWithdrawn        = (*Extension)(nil)
	_ plugin.OnTokenSupportChanged  = (*Extension)(nil)
	_ plugin.OnSpreadFeeUpdated     = (*Extension)(nil)
	_ plugin.OnPauseChanged         = (*Extension)(nil)
	_ plugin.OnOperationFailed      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	ID         id.AuditID     `json:"id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges FiatBridge lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Permission hooks
// ──────────────────────────────────────────────────

// OnPermissionGranted implements plugin.OnPermissionGranted.
func (e *Extension) OnPermissionGranted(ctx context.Context, p *permission.Permission) error {
	return e.record(ctx, ActionPermissionGranted, SeverityInfo, OutcomeSuccess,
		ResourcePermission, p.User.Hex()+":"+p.Token.Hex(), CategoryAccess, nil,
		"user", p.User.Hex(),
		"token", p.Token.Hex(),
		"max_amount", p.MaxAmount.String(),
		"expiry_time", p.ExpiryTime,
	)
}

// ──────────────────────────────────────────────────
// Transaction hooks
// ──────────────────────────────────────────────────

// OnTransactionInitiated implements plugin.OnTransactionInitiated.
func (e *Extension) OnTransactionInitiated(ctx context.Context, tx *transaction.Transaction) error {
	return e.record(ctx, ActionTransactionInitiated, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, tx.ID.Hex(), CategoryEscrow, nil,
		"user", tx.User.Hex(),
		"token", tx.Token.Hex(),
		"amount", tx.Amount.String(),
		"fee", tx.FeeAmount.String(),
		"lock_expiry", tx.LockExpiry,
	)
}

// OnTransactionCompleted implements plugin.OnTransactionCompleted.
func (e *Extension) OnTransactionCompleted(ctx context.Context, tx *transaction.Transaction, refund types.Amount) error {
	return e.record(ctx, ActionTransactionCompleted, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, tx.ID.Hex(), CategorySettlement, nil,
		"user", tx.User.Hex(),
		"token", tx.Token.Hex(),
		"amount", tx.Amount.String(),
		"amount_spent", tx.AmountSpent.String(),
		"refund", refund.String(),
	)
}

// OnTransactionRefunded implements plugin.OnTransactionRefunded.
func (e *Extension) OnTransactionRefunded(ctx context.Context, tx *transaction.Transaction) error {
	return e.record(ctx, ActionTransactionRefunded, SeverityWarning, OutcomeSuccess,
		ResourceTransaction, tx.ID.Hex(), CategorySettlement, nil,
		"user", tx.User.Hex(),
		"token", tx.Token.Hex(),
		"amount", tx.Amount.String(),
		"lock_expiry", tx.LockExpiry,
	)
}

// ──────────────────────────────────────────────────
// Administrative hooks
// ──────────────────────────────────────────────────

// OnFeesWithdrawn implements plugin.OnFeesWithdrawn.
func (e *Extension) OnFeesWithdrawn(ctx context.Context, token, to common.Address, amount types.Amount) error {
	return e.record(ctx, ActionFeesWithdrawn, SeverityInfo, OutcomeSuccess,
		ResourceFees, token.Hex(), CategoryTreasury, nil,
		"token", token.Hex(),
		"to", to.Hex(),
		"amount", amount.String(),
	)
}

// OnTokenSupportChanged implements plugin.OnTokenSupportChanged.
func (e *Extension) OnTokenSupportChanged(ctx context.Context, token common.Address, supported bool) error {
	action := ActionTokenRemoved
	if supported {
		action = ActionTokenAdded
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceToken, token.Hex(), CategoryAdmin, nil,
		"token", token.Hex(),
	)
}

// OnSpreadFeeUpdated implements plugin.OnSpreadFeeUpdated.
func (e *Extension) OnSpreadFeeUpdated(ctx context.Context, oldBps, newBps uint16) error {
	return e.record(ctx, ActionSpreadFeeUpdated, SeverityInfo, OutcomeSuccess,
		ResourceBridge, "", CategoryAdmin, nil,
		"old_bps", oldBps,
		"new_bps", newBps,
	)
}

// OnPauseChanged implements plugin.OnPauseChanged.
func (e *Extension) OnPauseChanged(ctx context.Context, paused bool) error {
	action, severity := ActionBridgeUnpaused, SeverityInfo
	if paused {
		action, severity = ActionBridgePaused, SeverityWarning
	}
	return e.record(ctx, action, severity, OutcomeSuccess,
		ResourceBridge, "", CategoryAdmin, nil,
		"paused", paused,
	)
}

// ──────────────────────────────────────────────────
// Failure hooks
// ──────────────────────────────────────────────────

// OnOperationFailed implements plugin.OnOperationFailed. Transfer failures
// are recorded as errors; rejected preconditions as warnings.
func (e *Extension) OnOperationFailed(ctx context.Context, op string, opErr error) error {
	action, severity := ActionOperationRejected, SeverityWarning
	if fiatbridge.IsTransferError(opErr) {
		action, severity = ActionTransferFailed, SeverityError
	}
	return e.record(ctx, action, severity, OutcomeFailure,
		ResourceBridge, "", categoryForOp(op), opErr,
		"operation", op,
		"kind", fiatbridge.KindOf(opErr).String(),
	)
}

func categoryForOp(op string) string {
	switch op {
	case "grant_permission":
		return CategoryAccess
	case "initiate_transaction":
		return CategoryEscrow
	case "complete_transaction", "claim_expired_lock":
		return CategorySettlement
	case "withdraw_fees":
		return CategoryTreasury
	default:
		return CategoryAdmin
	}
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		ID:         id.NewAuditID(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
