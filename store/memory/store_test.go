package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiatbridge"
	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/id"
	"github.com/xraph/fiatbridge/permission"
	"github.com/xraph/fiatbridge/registry"
	"github.com/xraph/fiatbridge/store/memory"
	"github.com/xraph/fiatbridge/transaction"
	"github.com/xraph/fiatbridge/types"
)

var (
	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	usdc  = common.HexToAddress("0x0000000000000000000000000000000000000d01")
	dai   = common.HexToAddress("0x0000000000000000000000000000000000000d02")
	at    = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
)

func newTx(gen *id.TxGenerator, user, token common.Address, amount int64) *transaction.Transaction {
	return &transaction.Transaction{
		Entity:     types.NewEntity(at),
		ID:         gen.Next(user, token, types.NewAmount(amount).Big()),
		User:       user,
		Token:      token,
		Amount:     types.NewAmount(amount),
		FeeAmount:  types.NewAmount(amount / 100),
		LockExpiry: at.Add(time.Hour),
	}
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.GetSettings(ctx)
	assert.ErrorIs(t, err, fiatbridge.ErrSettingsNotFound)

	require.NoError(t, s.SaveSettings(ctx, &registry.Settings{Owner: alice, SpreadFeeBps: 100, Paused: true}))
	got, err := s.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice, got.Owner)
	assert.True(t, got.Paused)
	assert.Equal(t, uint16(100), got.SpreadFeeBps)
}

func TestSupportedTokens(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.AddSupportedToken(ctx, &registry.SupportedToken{Token: dai, AddedAt: at}))
	require.NoError(t, s.AddSupportedToken(ctx, &registry.SupportedToken{Token: usdc, AddedAt: at}))
	require.NoError(t, s.AddSupportedToken(ctx, &registry.SupportedToken{Token: usdc, AddedAt: at.Add(time.Hour)}))

	ok, err := s.IsSupportedToken(ctx, usdc)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := s.ListSupportedTokens(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, usdc, list[0].Token)
	assert.Equal(t, at, list[0].AddedAt)

	require.NoError(t, s.RemoveSupportedToken(ctx, usdc))
	require.NoError(t, s.RemoveSupportedToken(ctx, usdc))
	ok, err = s.IsSupportedToken(ctx, usdc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPermissions(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	_, err := s.GetPermission(ctx, alice, usdc)
	assert.ErrorIs(t, err, fiatbridge.ErrPermissionNotFound)

	p := &permission.Permission{
		Entity:     types.NewEntity(at),
		User:       alice,
		Token:      usdc,
		MaxAmount:  types.NewAmount(5000),
		ExpiryTime: at.Add(24 * time.Hour),
		IsActive:   true,
	}
	require.NoError(t, s.PutPermission(ctx, p))
	require.NoError(t, s.PutPermission(ctx, &permission.Permission{User: alice, Token: dai, MaxAmount: types.NewAmount(1), IsActive: true}))
	require.NoError(t, s.PutPermission(ctx, &permission.Permission{User: bob, Token: usdc, MaxAmount: types.NewAmount(1), IsActive: true}))

	got, err := s.GetPermission(ctx, alice, usdc)
	require.NoError(t, err)
	assert.True(t, got.MaxAmount.Equal(types.NewAmount(5000)))

	got.IsActive = false
	again, err := s.GetPermission(ctx, alice, usdc)
	require.NoError(t, err)
	assert.True(t, again.IsActive, "returned values must not alias stored state")

	list, err := s.ListPermissions(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestTransactionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	gen := id.NewTxGenerator()

	tx := newTx(gen, alice, usdc, 1000)
	require.NoError(t, s.CreateTransaction(ctx, tx))
	assert.ErrorIs(t, s.CreateTransaction(ctx, tx), fiatbridge.ErrAlreadyExists)

	settled := tx.Clone()
	settled.IsCompleted = true
	settled.AmountSpent = types.NewAmount(700)
	require.NoError(t, s.SettleTransaction(ctx, settled))
	assert.ErrorIs(t, s.SettleTransaction(ctx, settled), fiatbridge.ErrAlreadyProcessed)

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCompleted, got.Status())

	require.NoError(t, s.RevertSettlement(ctx, tx))
	got, err = s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusLocked, got.Status())

	require.NoError(t, s.DeleteTransaction(ctx, tx.ID))
	_, err = s.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, fiatbridge.ErrTransactionNotFound)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, tx.ID), fiatbridge.ErrTransactionNotFound)
	assert.ErrorIs(t, s.SettleTransaction(ctx, settled), fiatbridge.ErrTransactionNotFound)
}

func TestListTransactions(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	gen := id.NewTxGenerator()

	a1 := newTx(gen, alice, usdc, 100)
	a2 := newTx(gen, alice, dai, 200)
	b1 := newTx(gen, bob, usdc, 300)
	for _, tx := range []*transaction.Transaction{a1, a2, b1} {
		require.NoError(t, s.CreateTransaction(ctx, tx))
	}
	done := a1.Clone()
	done.IsRefunded = true
	require.NoError(t, s.SettleTransaction(ctx, done))

	tests := []struct {
		name string
		opts transaction.ListOpts
		want []id.TxID
	}{
		{"all", transaction.ListOpts{}, []id.TxID{a1.ID, a2.ID, b1.ID}},
		{"by user", transaction.ListOpts{User: alice}, []id.TxID{a1.ID, a2.ID}},
		{"by token", transaction.ListOpts{Token: usdc}, []id.TxID{a1.ID, b1.ID}},
		{"locked", transaction.ListOpts{Status: transaction.StatusLocked}, []id.TxID{a2.ID, b1.ID}},
		{"refunded", transaction.ListOpts{Status: transaction.StatusRefunded}, []id.TxID{a1.ID}},
		{"paged", transaction.ListOpts{Offset: 1, Limit: 1}, []id.TxID{a2.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTransactions(ctx, tt.opts)
			require.NoError(t, err)
			ids := make([]id.TxID, len(got))
			for i, tx := range got {
				ids[i] = tx.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestCollectedFees(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	got, err := s.GetCollectedFees(ctx, usdc)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	require.NoError(t, s.SetCollectedFees(ctx, usdc, types.NewAmount(10)))
	require.NoError(t, s.SetCollectedFees(ctx, dai, types.NewAmount(3)))
	assert.ErrorIs(t, s.SetCollectedFees(ctx, usdc, types.NewAmount(-1)), fiatbridge.ErrNegativeAmount)

	got, err = s.GetCollectedFees(ctx, usdc)
	require.NoError(t, err)
	assert.True(t, got.Equal(types.NewAmount(10)))

	list, err := s.ListCollectedFees(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, usdc, list[0].Token)
}

func TestJournal(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	seq, err := s.LastEventSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	for i, typ := range []event.Type{event.TokenAdded, event.PermissionGranted, event.TransactionInitiated} {
		require.NoError(t, s.AppendEvent(ctx, &event.Event{ID: id.NewEventID(), Seq: uint64(i + 1), Type: typ}))
	}
	assert.Error(t, s.AppendEvent(ctx, &event.Event{ID: id.NewEventID(), Seq: 2, Type: event.Paused}))

	seq, err = s.LastEventSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)

	after, err := s.ListEvents(ctx, event.ListOpts{AfterSeq: 1})
	require.NoError(t, err)
	assert.Len(t, after, 2)

	typed, err := s.ListEvents(ctx, event.ListOpts{Type: event.TokenAdded})
	require.NoError(t, err)
	require.Len(t, typed, 1)
	assert.Equal(t, uint64(1), typed[0].Seq)

	limited, err := s.ListEvents(ctx, event.ListOpts{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPingAfterClose(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(ctx))
}
