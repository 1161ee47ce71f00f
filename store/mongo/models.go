package mongo

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"

	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/fee"
	"github.com/xraph/fiatbridge/id"
	"github.com/xraph/fiatbridge/permission"
	"github.com/xraph/fiatbridge/registry"
	"github.com/xraph/fiatbridge/transaction"
	"github.com/xraph/fiatbridge/types"
)

// Amounts are stored as base-10 strings since BSON has no integer type
// wide enough for token quantities.

// ==================== Registry models ====================

// settingsDocID is the _id of the single settings document.
const settingsDocID = "settings"

type settingsModel struct {
	grove.BaseModel `grove:"table:fiatbridge_settings"`

	ID           string    `grove:"id,pk"          bson:"_id"`
	Owner        string    `grove:"owner"          bson:"owner"`
	Paused       bool      `grove:"paused"         bson:"paused"`
	SpreadFeeBps int32     `grove:"spread_fee_bps" bson:"spread_fee_bps"`
	UpdatedAt    time.Time `grove:"updated_at"     bson:"updated_at"`
}

func toSettingsModel(s *registry.Settings) *settingsModel {
	return &settingsModel{
		ID:           settingsDocID,
		Owner:        s.Owner.Hex(),
		Paused:       s.Paused,
		SpreadFeeBps: int32(s.SpreadFeeBps),
		UpdatedAt:    s.UpdatedAt,
	}
}

func fromSettingsModel(m *settingsModel) *registry.Settings {
	return &registry.Settings{
		Owner:        common.HexToAddress(m.Owner),
		Paused:       m.Paused,
		SpreadFeeBps: uint16(m.SpreadFeeBps), //nolint:gosec // bounded by fee.MaxSpreadBps on write
		UpdatedAt:    m.UpdatedAt,
	}
}

type supportedTokenModel struct {
	grove.BaseModel `grove:"table:fiatbridge_supported_tokens"`

	Token   string    `grove:"token,pk" bson:"_id"`
	AddedAt time.Time `grove:"added_at" bson:"added_at"`
}

func fromSupportedTokenModel(m *supportedTokenModel) *registry.SupportedToken {
	return &registry.SupportedToken{
		Token:   common.HexToAddress(m.Token),
		AddedAt: m.AddedAt,
	}
}

// ==================== Permission models ====================

type permissionModel struct {
	grove.BaseModel `grove:"table:fiatbridge_permissions"`

	ID         string    `grove:"id,pk"       bson:"_id"`
	UserAddr   string    `grove:"user_addr"   bson:"user_addr"`
	Token      string    `grove:"token"       bson:"token"`
	MaxAmount  string    `grove:"max_amount"  bson:"max_amount"`
	ExpiryTime time.Time `grove:"expiry_time" bson:"expiry_time"`
	IsActive   bool      `grove:"is_active"   bson:"is_active"`
	CreatedAt  time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"  bson:"updated_at"`
}

func permissionDocID(user, token common.Address) string {
	return fmt.Sprintf("%s:%s", user.Hex(), token.Hex())
}

func toPermissionModel(p *permission.Permission) *permissionModel {
	return &permissionModel{
		ID:         permissionDocID(p.User, p.Token),
		UserAddr:   p.User.Hex(),
		Token:      p.Token.Hex(),
		MaxAmount:  p.MaxAmount.String(),
		ExpiryTime: p.ExpiryTime,
		IsActive:   p.IsActive,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func fromPermissionModel(m *permissionModel) (*permission.Permission, error) {
	maxAmount, err := types.ParseAmount(m.MaxAmount)
	if err != nil {
		return nil, err
	}
	return &permission.Permission{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		User:       common.HexToAddress(m.UserAddr),
		Token:      common.HexToAddress(m.Token),
		MaxAmount:  maxAmount,
		ExpiryTime: m.ExpiryTime,
		IsActive:   m.IsActive,
	}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:fiatbridge_transactions"`

	ID          string    `grove:"id,pk"        bson:"_id"`
	UserAddr    string    `grove:"user_addr"    bson:"user_addr"`
	Token       string    `grove:"token"        bson:"token"`
	Amount      string    `grove:"amount"       bson:"amount"`
	FeeAmount   string    `grove:"fee_amount"   bson:"fee_amount"`
	LockExpiry  time.Time `grove:"lock_expiry"  bson:"lock_expiry"`
	IsCompleted bool      `grove:"is_completed" bson:"is_completed"`
	IsRefunded  bool      `grove:"is_refunded"  bson:"is_refunded"`
	AmountSpent string    `grove:"amount_spent" bson:"amount_spent"`
	CreatedAt   time.Time `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"   bson:"updated_at"`
}

func toTransactionModel(t *transaction.Transaction) *transactionModel {
	return &transactionModel{
		ID:          t.ID.Hex(),
		UserAddr:    t.User.Hex(),
		Token:       t.Token.Hex(),
		Amount:      t.Amount.String(),
		FeeAmount:   t.FeeAmount.String(),
		LockExpiry:  t.LockExpiry,
		IsCompleted: t.IsCompleted,
		IsRefunded:  t.IsRefunded,
		AmountSpent: t.AmountSpent.String(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func fromTransactionModel(m *transactionModel) (*transaction.Transaction, error) {
	txID, err := id.ParseTxID(m.ID)
	if err != nil {
		return nil, err
	}
	amount, err := types.ParseAmount(m.Amount)
	if err != nil {
		return nil, err
	}
	feeAmount, err := types.ParseAmount(m.FeeAmount)
	if err != nil {
		return nil, err
	}
	spent, err := types.ParseAmount(m.AmountSpent)
	if err != nil {
		return nil, err
	}

	return &transaction.Transaction{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          txID,
		User:        common.HexToAddress(m.UserAddr),
		Token:       common.HexToAddress(m.Token),
		Amount:      amount,
		FeeAmount:   feeAmount,
		LockExpiry:  m.LockExpiry,
		IsCompleted: m.IsCompleted,
		IsRefunded:  m.IsRefunded,
		AmountSpent: spent,
	}, nil
}

// ==================== Fee models ====================

type feeBalanceModel struct {
	grove.BaseModel `grove:"table:fiatbridge_fees"`

	Token     string    `grove:"token,pk"   bson:"_id"`
	Collected string    `grove:"collected"  bson:"collected"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func fromFeeBalanceModel(m *feeBalanceModel) (*fee.Balance, error) {
	collected, err := types.ParseAmount(m.Collected)
	if err != nil {
		return nil, err
	}
	return &fee.Balance{
		Token:     common.HexToAddress(m.Token),
		Collected: collected,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

// ==================== Event models ====================

type eventModel struct {
	grove.BaseModel `grove:"table:fiatbridge_events"`

	Seq         int64      `grove:"seq,pk"       bson:"_id"`
	ID          string     `grove:"id"           bson:"event_id"`
	Type        string     `grove:"type"         bson:"type"`
	Actor       string     `grove:"actor"        bson:"actor"`
	UserAddr    string     `grove:"user_addr"    bson:"user_addr,omitempty"`
	Token       string     `grove:"token"        bson:"token,omitempty"`
	TxID        string     `grove:"tx_id"        bson:"tx_id,omitempty"`
	Amount      string     `grove:"amount"       bson:"amount"`
	Fee         string     `grove:"fee"          bson:"fee"`
	AmountSpent string     `grove:"amount_spent" bson:"amount_spent"`
	Refund      string     `grove:"refund"       bson:"refund"`
	OldFeeBps   int32      `grove:"old_fee_bps"  bson:"old_fee_bps"`
	NewFeeBps   int32      `grove:"new_fee_bps"  bson:"new_fee_bps"`
	ExpiresAt   *time.Time `grove:"expires_at"   bson:"expires_at,omitempty"`
	OccurredAt  time.Time  `grove:"occurred_at"  bson:"occurred_at"`
}

func toEventModel(e *event.Event) *eventModel {
	m := &eventModel{
		Seq:         int64(e.Seq), //nolint:gosec // sequence numbers stay far below MaxInt64
		ID:          e.ID.String(),
		Type:        string(e.Type),
		Actor:       e.Actor.Hex(),
		Amount:      e.Amount.String(),
		Fee:         e.Fee.String(),
		AmountSpent: e.AmountSpent.String(),
		Refund:      e.Refund.String(),
		OldFeeBps:   int32(e.OldFeeBps),
		NewFeeBps:   int32(e.NewFeeBps),
		OccurredAt:  e.OccurredAt,
	}
	if e.User != (common.Address{}) {
		m.UserAddr = e.User.Hex()
	}
	if e.Token != (common.Address{}) {
		m.Token = e.Token.Hex()
	}
	if e.TxID != id.NilTxID {
		m.TxID = e.TxID.Hex()
	}
	if !e.ExpiresAt.IsZero() {
		t := e.ExpiresAt
		m.ExpiresAt = &t
	}
	return m
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, err
	}

	e := &event.Event{
		ID:         evtID,
		Seq:        uint64(m.Seq), //nolint:gosec // seq is never negative
		Type:       event.Type(m.Type),
		Actor:      common.HexToAddress(m.Actor),
		User:       common.HexToAddress(m.UserAddr),
		Token:      common.HexToAddress(m.Token),
		OldFeeBps:  uint16(m.OldFeeBps), //nolint:gosec // written from uint16
		NewFeeBps:  uint16(m.NewFeeBps), //nolint:gosec // written from uint16
		OccurredAt: m.OccurredAt,
	}
	if m.TxID != "" {
		if e.TxID, err = id.ParseTxID(m.TxID); err != nil {
			return nil, err
		}
	}
	if m.ExpiresAt != nil {
		e.ExpiresAt = *m.ExpiresAt
	}
	amounts := []struct {
		field string
		src   string
		dst   *types.Amount
	}{
		{"amount", m.Amount, &e.Amount},
		{"fee", m.Fee, &e.Fee},
		{"amount_spent", m.AmountSpent, &e.AmountSpent},
		{"refund", m.Refund, &e.Refund},
	}
	for _, a := range amounts {
		if *a.dst, err = types.ParseAmount(a.src); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", a.field, err)
		}
	}

	return e, nil
}
