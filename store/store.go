// Package store defines the unified persistence interface for FiatBridge.
package store

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/fee"
	"github.com/xraph/fiatbridge/id"
	"github.com/xraph/fiatbridge/permission"
	"github.com/xraph/fiatbridge/registry"
	"github.com/xraph/fiatbridge/transaction"
	"github.com/xraph/fiatbridge/types"
)

// Store is the unified storage interface for all bridge state.
// Methods are declared explicitly rather than by embedding the per-domain
// interfaces so that every backend's surface is visible in one place.
type Store interface {
	// Registry methods
	GetSettings(ctx context.Context) (*registry.Settings, error)
	SaveSettings(ctx context.Context, s *registry.Settings) error
	AddSupportedToken(ctx context.Context, t *registry.SupportedToken) error
	RemoveSupportedToken(ctx context.Context, token common.Address) error
	IsSupportedToken(ctx context.Context, token common.Address) (bool, error)
	ListSupportedTokens(ctx context.Context) ([]*registry.SupportedToken, error)

	// Permission methods
	PutPermission(ctx context.Context, p *permission.Permission) error
	GetPermission(ctx context.Context, user, token common.Address) (*permission.Permission, error)
	ListPermissions(ctx context.Context, user common.Address) ([]*permission.Permission, error)

	// Transaction methods
	CreateTransaction(ctx context.Context, t *transaction.Transaction) error
	GetTransaction(ctx context.Context, txID id.TxID) (*transaction.Transaction, error)
	ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error)
	SettleTransaction(ctx context.Context, t *transaction.Transaction) error
	RevertSettlement(ctx context.Context, t *transaction.Transaction) error
	DeleteTransaction(ctx context.Context, txID id.TxID) error

	// Fee methods
	GetCollectedFees(ctx context.Context, token common.Address) (types.Amount, error)
	SetCollectedFees(ctx context.Context, token common.Address, amount types.Amount) error
	ListCollectedFees(ctx context.Context) ([]*fee.Balance, error)

	// Journal methods
	AppendEvent(ctx context.Context, e *event.Event) error
	ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error)
	LastEventSeq(ctx context.Context) (uint64, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ registry.Store    = Store(nil)
	_ permission.Store  = Store(nil)
	_ transaction.Store = Store(nil)
	_ fee.Store         = Store(nil)
	_ event.Store       = Store(nil)
)
