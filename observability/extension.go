// Package observability provides a metrics extension for FiatBridge that
// records lifecycle event counts and amounts through a MetricFactory.
package observability

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge"
	"github.com/xraph/fiatbridge/permission"
	"github.com/xraph/fiatbridge/plugin"
	"github.com/xraph/fiatbridge/transaction"
	"github.com/xraph/fiatbridge/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnPermissionGranted    = (*MetricsExtension)(nil)
	_ plugin.OnTransactionInitiated = (*MetricsExtension)(nil)
	_ plugin.OnTransactionCompleted = (*MetricsExtension)(nil)
	_ plugin.OnTransactionRefunded  = (*MetricsExtension)(nil)
	_ plugin.OnFeesWithdrawn        = (*MetricsExtension)(nil)
	_ plugin.OnTokenSupportChanged  = (*MetricsExtension)(nil)
	_ plugin.OnSpreadFeeUpdated     = (*MetricsExtension)(nil)
	_ plugin.OnPauseChanged         = (*MetricsExtension)(nil)
	_ plugin.OnOperationFailed      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a FiatBridge plugin to track escrow activity.
//
// Amount histograms observe base units converted to float64, so very large
// values lose precision. They are meant for distribution, not accounting.
type MetricsExtension struct {
	factory MetricFactory

	// Permission metrics
	PermissionsGranted Counter
	PermissionCeiling  Histogram

	// Transaction metrics
	TransactionsInitiated Counter
	TransactionsCompleted Counter
	TransactionsRefunded  Counter
	LockedAmount          Histogram
	FeeCharged            Histogram
	AmountSpent           Histogram
	AmountRefunded        Histogram

	// Administrative metrics
	FeesWithdrawn    Counter
	FeesWithdrawnAmt Histogram
	TokensAdded      Counter
	TokensRemoved    Counter
	SpreadFeeUpdates Counter
	PauseTransitions Counter

	// Error metrics
	OperationsRejected Counter
	TransferFailures   Counter
	AuthFailures       Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use NewPrometheusFactory for a Prometheus registry.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		PermissionsGranted: factory.Counter("fiatbridge.permission.granted"),
		PermissionCeiling:  factory.Histogram("fiatbridge.permission.max_amount"),

		TransactionsInitiated: factory.Counter("fiatbridge.transaction.initiated"),
		TransactionsCompleted: factory.Counter("fiatbridge.transaction.completed"),
		TransactionsRefunded:  factory.Counter("fiatbridge.transaction.refunded"),
		LockedAmount:          factory.Histogram("fiatbridge.transaction.locked_amount"),
		FeeCharged:            factory.Histogram("fiatbridge.transaction.fee_amount"),
		AmountSpent:           factory.Histogram("fiatbridge.transaction.spent_amount"),
		AmountRefunded:        factory.Histogram("fiatbridge.transaction.refund_amount"),

		FeesWithdrawn:    factory.Counter("fiatbridge.fees.withdrawn"),
		FeesWithdrawnAmt: factory.Histogram("fiatbridge.fees.withdrawn_amount"),
		TokensAdded:      factory.Counter("fiatbridge.token.added"),
		TokensRemoved:    factory.Counter("fiatbridge.token.removed"),
		SpreadFeeUpdates: factory.Counter("fiatbridge.spread_fee.updated"),
		PauseTransitions: factory.Counter("fiatbridge.pause.transitions"),

		OperationsRejected: factory.Counter("fiatbridge.operation.rejected"),
		TransferFailures:   factory.Counter("fiatbridge.transfer.failures"),
		AuthFailures:       factory.Counter("fiatbridge.auth.failures"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Permission hooks
// ──────────────────────────────────────────────────

// OnPermissionGranted implements plugin.OnPermissionGranted.
func (m *MetricsExtension) OnPermissionGranted(_ context.Context, p *permission.Permission) error {
	m.PermissionsGranted.Inc()
	m.PermissionCeiling.Observe(p.MaxAmount.Float64())
	return nil
}

// ──────────────────────────────────────────────────
// Transaction hooks
// ──────────────────────────────────────────────────

// OnTransactionInitiated implements plugin.OnTransactionInitiated.
func (m *MetricsExtension) OnTransactionInitiated(_ context.Context, tx *transaction.Transaction) error {
	m.TransactionsInitiated.Inc()
	m.LockedAmount.Observe(tx.Amount.Float64())
	m.FeeCharged.Observe(tx.FeeAmount.Float64())
	return nil
}

// OnTransactionCompleted implements plugin.OnTransactionCompleted.
func (m *MetricsExtension) OnTransactionCompleted(_ context.Context, tx *transaction.Transaction, refund types.Amount) error {
	m.TransactionsCompleted.Inc()
	m.AmountSpent.Observe(tx.AmountSpent.Float64())
	m.AmountRefunded.Observe(refund.Float64())
	return nil
}

// OnTransactionRefunded implements plugin.OnTransactionRefunded.
func (m *MetricsExtension) OnTransactionRefunded(_ context.Context, tx *transaction.Transaction) error {
	m.TransactionsRefunded.Inc()
	m.AmountRefunded.Observe(tx.Amount.Float64())
	return nil
}

// ──────────────────────────────────────────────────
// Administrative hooks
// ──────────────────────────────────────────────────

// OnFeesWithdrawn implements plugin.OnFeesWithdrawn.
func (m *MetricsExtension) OnFeesWithdrawn(_ context.Context, _, _ common.Address, amount types.Amount) error {
	m.FeesWithdrawn.Inc()
	m.FeesWithdrawnAmt.Observe(amount.Float64())
	return nil
}

// OnTokenSupportChanged implements plugin.OnTokenSupportChanged.
func (m *MetricsExtension) OnTokenSupportChanged(_ context.Context, _ common.Address, supported bool) error {
	if supported {
		m.TokensAdded.Inc()
	} else {
		m.TokensRemoved.Inc()
	}
	return nil
}

// OnSpreadFeeUpdated implements plugin.OnSpreadFeeUpdated.
func (m *MetricsExtension) OnSpreadFeeUpdated(_ context.Context, _, _ uint16) error {
	m.SpreadFeeUpdates.Inc()
	return nil
}

// OnPauseChanged implements plugin.OnPauseChanged.
func (m *MetricsExtension) OnPauseChanged(_ context.Context, _ bool) error {
	m.PauseTransitions.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Error hooks
// ──────────────────────────────────────────────────

// OnOperationFailed implements plugin.OnOperationFailed.
func (m *MetricsExtension) OnOperationFailed(_ context.Context, _ string, err error) error {
	switch {
	case errors.Is(err, fiatbridge.ErrTransferFailed):
		m.TransferFailures.Inc()
	case fiatbridge.IsAuthorizationError(err):
		m.AuthFailures.Inc()
	default:
		m.OperationsRejected.Inc()
	}
	return nil
}
