package mongo

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/id"
	"github.com/xraph/fiatbridge/permission"
	"github.com/xraph/fiatbridge/transaction"
	"github.com/xraph/fiatbridge/types"
)

var (
	user  = common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	token = common.HexToAddress("0xde709f2102306220921060314715629080e2fb77")
	at    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func TestPermissionDocID(t *testing.T) {
	m := toPermissionModel(&permission.Permission{User: user, Token: token, MaxAmount: types.NewAmount(1)})
	assert.Equal(t, permissionDocID(user, token), m.ID)
	assert.NotEqual(t, permissionDocID(token, user), m.ID)
}

func TestTransactionModel_BSONRoundTrip(t *testing.T) {
	tx := &transaction.Transaction{
		Entity:     types.NewEntity(at),
		ID:         id.NewTxGenerator().Next(user, token, types.NewAmount(5).Big()),
		User:       user,
		Token:      token,
		Amount:     types.MustParseAmount("1000000000000000000000"),
		FeeAmount:  types.MustParseAmount("10000000000000000000"),
		LockExpiry: at.Add(time.Hour),
		IsRefunded: true,
	}

	raw, err := bson.Marshal(toTransactionModel(tx))
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, tx.ID.Hex(), doc["_id"])
	assert.Equal(t, "1000000000000000000000", doc["amount"])

	var m transactionModel
	require.NoError(t, bson.Unmarshal(raw, &m))
	back, err := fromTransactionModel(&m)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, back.ID)
	assert.True(t, tx.Amount.Equal(back.Amount))
	assert.Equal(t, transaction.StatusRefunded, back.Status())
	assert.True(t, tx.LockExpiry.Equal(back.LockExpiry))
}

func TestEventModel_OmitsEmptyFields(t *testing.T) {
	e := &event.Event{
		ID:         id.NewEventID(),
		Seq:        3,
		Type:       event.SpreadFeeUpdated,
		Actor:      user,
		OldFeeBps:  100,
		NewFeeBps:  200,
		OccurredAt: at,
	}

	raw, err := bson.Marshal(toEventModel(e))
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.NotContains(t, doc, "tx_id")
	assert.NotContains(t, doc, "token")
	assert.NotContains(t, doc, "expires_at")
	assert.Equal(t, int64(3), doc["_id"])

	var m eventModel
	require.NoError(t, bson.Unmarshal(raw, &m))
	back, err := fromEventModel(&m)
	require.NoError(t, err)
	assert.Equal(t, e.ID, back.ID)
	assert.Equal(t, uint16(200), back.NewFeeBps)
	assert.Equal(t, common.Address{}, back.Token)
}

func TestMigrationIndexes(t *testing.T) {
	idx := migrationIndexes()
	assert.Len(t, idx[colPermissions], 1)
	assert.NotEmpty(t, idx[colEvents])
	assert.Contains(t, idx, colTransactions)
}
