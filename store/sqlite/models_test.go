package sqlite

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/id"
	"github.com/xraph/fiatbridge/permission"
	"github.com/xraph/fiatbridge/registry"
	"github.com/xraph/fiatbridge/transaction"
	"github.com/xraph/fiatbridge/types"
)

var (
	user  = common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	token = common.HexToAddress("0xde709f2102306220921060314715629080e2fb77")
	at    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func TestSettingsModel(t *testing.T) {
	m := toSettingsModel(&registry.Settings{Owner: user, Paused: true, SpreadFeeBps: 250, UpdatedAt: at})

	assert.Equal(t, settingsRowID, m.ID)
	assert.Equal(t, user.Hex(), m.Owner)

	back := fromSettingsModel(m)
	assert.Equal(t, user, back.Owner)
	assert.True(t, back.Paused)
	assert.Equal(t, uint16(250), back.SpreadFeeBps)
}

func TestPermissionModel(t *testing.T) {
	p := &permission.Permission{
		Entity:     types.NewEntity(at),
		User:       user,
		Token:      token,
		MaxAmount:  types.MustParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935"),
		ExpiryTime: at.Add(time.Hour),
		IsActive:   true,
	}

	back, err := fromPermissionModel(toPermissionModel(p))
	require.NoError(t, err)
	assert.Equal(t, p.User, back.User)
	assert.Equal(t, p.Token, back.Token)
	assert.True(t, p.MaxAmount.Equal(back.MaxAmount))
	assert.Equal(t, p.ExpiryTime, back.ExpiryTime)
	assert.Equal(t, p.CreatedAt, back.CreatedAt)
}

func TestTransactionModel(t *testing.T) {
	tx := &transaction.Transaction{
		Entity:      types.NewEntity(at),
		ID:          id.NewTxGenerator().Next(user, token, types.NewAmount(1000).Big()),
		User:        user,
		Token:       token,
		Amount:      types.NewAmount(1000),
		FeeAmount:   types.NewAmount(10),
		LockExpiry:  at.Add(time.Minute),
		IsCompleted: true,
		AmountSpent: types.NewAmount(700),
	}

	m := toTransactionModel(tx)
	assert.Equal(t, "1000", m.Amount)
	assert.Equal(t, tx.ID.Hex(), m.ID)

	back, err := fromTransactionModel(m)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, back.ID)
	assert.Equal(t, transaction.StatusCompleted, back.Status())
	assert.True(t, back.Unspent().Equal(types.NewAmount(300)))
}

func TestTransactionModel_BadAmount(t *testing.T) {
	m := toTransactionModel(&transaction.Transaction{ID: id.TxID{1}})
	m.Amount = "ten"

	_, err := fromTransactionModel(m)
	assert.Error(t, err)
}

func TestEventModel(t *testing.T) {
	e := &event.Event{
		ID:         id.NewEventID(),
		Seq:        7,
		Type:       event.TransactionInitiated,
		Actor:      user,
		User:       user,
		Token:      token,
		TxID:       id.TxID{0xaa},
		Amount:     types.NewAmount(1000),
		Fee:        types.NewAmount(10),
		ExpiresAt:  at.Add(time.Hour),
		OccurredAt: at,
	}

	m := toEventModel(e)
	require.NotNil(t, m.ExpiresAt)

	back, err := fromEventModel(m)
	require.NoError(t, err)
	assert.Equal(t, e.ID, back.ID)
	assert.Equal(t, e.Seq, back.Seq)
	assert.Equal(t, e.TxID, back.TxID)
	assert.True(t, back.Fee.Equal(types.NewAmount(10)))
	assert.True(t, back.Refund.IsZero())
	assert.Equal(t, e.ExpiresAt, back.ExpiresAt)
}

func TestEventModel_NoTransaction(t *testing.T) {
	e := &event.Event{ID: id.NewEventID(), Seq: 1, Type: event.Paused, Actor: user, OccurredAt: at}

	m := toEventModel(e)
	assert.Empty(t, m.TxID)
	assert.Nil(t, m.ExpiresAt)

	back, err := fromEventModel(m)
	require.NoError(t, err)
	assert.Equal(t, id.NilTxID, back.TxID)
	assert.True(t, back.ExpiresAt.IsZero())
}
