package postgres

import (
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

// Addresses are stored in checksummed hex, amounts as base-10 text and
// transaction ids as 0x-prefixed hex.

// ==================== Registry models ====================

type settingsModel struct {
	grove.BaseModel `grove:"table:fiatbridge_settings"`

	ID           int       `grove:"id,pk"`
	Owner        string    `grove:"owner"`
	Paused       bool      `grove:"paused"`
	SpreadFeeBps int       `grove:"spread_fee_bps"`
	UpdatedAt    time.Time `grove:"updated_at"`
}

// settingsRowID is the primary key of the single settings row.
const settingsRowID = 1

func toSettingsModel(s *registry.Settings) *settingsModel {
	return &settingsModel{
		ID:           settingsRowID,
		Owner:        s.Owner.Hex(),
		Paused:       s.Paused,
		SpreadFeeBps: int(s.SpreadFeeBps),
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

	Token   string    `grove:"token,pk"`
	AddedAt time.Time `grove:"added_at"`
}

func toSupportedTokenModel(t *registry.SupportedToken) *supportedTokenModel {
	return &supportedTokenModel{
		Token:   t.Token.Hex(),
		AddedAt: t.AddedAt,
	}
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

	UserAddr   string    `grove:"user_addr,pk"`
	Token      string    `grove:"token,pk"`
	MaxAmount  string    `grove:"max_amount"`
	ExpiryTime time.Time `grove:"expiry_time"`
	IsActive   bool      `grove:"is_active"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
}

func toPermissionModel(p *permission.Permission) *permissionModel {
	return &permissionModel{
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

	ID          string    `grove:"id,pk"`
	UserAddr    string    `grove:"user_addr"`
	Token       string    `grove:"token"`
	Amount      string    `grove:"amount"`
	FeeAmount   string    `grove:"fee_amount"`
	LockExpiry  time.Time `grove:"lock_expiry"`
	IsCompleted bool      `grove:"is_completed"`
	IsRefunded  bool      `grove:"is_refunded"`
	AmountSpent string    `grove:"amount_spent"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
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

	Token     string    `grove:"token,pk"`
	Collected string    `grove:"collected"`
	UpdatedAt time.Time `grove:"updated_at"`
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

	Seq         int64      `grove:"seq,pk"`
	ID          string     `grove:"id"`
	Type        string     `grove:"type"`
	Actor       string     `grove:"actor"`
	UserAddr    string     `grove:"user_addr"`
	Token       string     `grove:"token"`
	TxID        string     `grove:"tx_id"`
	Amount      string     `grove:"amount"`
	Fee         string     `grove:"fee"`
	AmountSpent string     `grove:"amount_spent"`
	Refund      string     `grove:"refund"`
	OldFeeBps   int        `grove:"old_fee_bps"`
	NewFeeBps   int        `grove:"new_fee_bps"`
	ExpiresAt   *time.Time `grove:"expires_at"`
	OccurredAt  time.Time  `grove:"occurred_at"`
}

func toEventModel(e *event.Event) *eventModel {
	m := &eventModel{
		Seq:         int64(e.Seq), //nolint:gosec // sequence numbers stay far below MaxInt64
		ID:          e.ID.String(),
		Type:        string(e.Type),
		Actor:       e.Actor.Hex(),
		UserAddr:    e.User.Hex(),
		Token:       e.Token.Hex(),
		Amount:      e.Amount.String(),
		Fee:         e.Fee.String(),
		AmountSpent: e.AmountSpent.String(),
		Refund:      e.Refund.String(),
		OldFeeBps:   int(e.OldFeeBps),
		NewFeeBps:   int(e.NewFeeBps),
		OccurredAt:  e.OccurredAt,
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
		src string
		dst *types.Amount
	}{
		{m.Amount, &e.Amount},
		{m.Fee, &e.Fee},
		{m.AmountSpent, &e.AmountSpent},
		{m.Refund, &e.Refund},
	}
	for _, a := range amounts {
		if *a.dst, err = types.ParseAmount(a.src); err != nil {
			return nil, err
		}
	}

	return e, nil
}
