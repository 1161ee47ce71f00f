package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/fiatbridge"
	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/fee"
	"github.com/xraph/fiatbridge/id"
	"github.com/xraph/fiatbridge/permission"
	"github.com/xraph/fiatbridge/registry"
	bridgestore "github.com/xraph/fiatbridge/store"
	"github.com/xraph/fiatbridge/transaction"
	"github.com/xraph/fiatbridge/types"
)

// Collection name constants.
const (
	colSettings     = "fiatbridge_settings"
	colTokens       = "fiatbridge_supported_tokens"
	colPermissions  = "fiatbridge_permissions"
	colTransactions = "fiatbridge_transactions"
	colFees         = "fiatbridge_fees"
	colEvents       = "fiatbridge_events"
)

// compile-time interface check
var _ bridgestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all bridge collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("fiatbridge/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Registry Store ====================

func (s *Store) GetSettings(ctx context.Context) (*registry.Settings, error) {
	var m settingsModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": settingsDocID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fiatbridge.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("fiatbridge/mongo: get settings: %w", err)
	}
	return fromSettingsModel(&m), nil
}

func (s *Store) SaveSettings(ctx context.Context, st *registry.Settings) error {
	m := toSettingsModel(st)
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		SetUpdate(bson.M{"$set": bson.M{
			"owner":          m.Owner,
			"paused":         m.Paused,
			"spread_fee_bps": m.SpreadFeeBps,
			"updated_at":     m.UpdatedAt,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fiatbridge/mongo: save settings: %w", err)
	}
	return nil
}

func (s *Store) AddSupportedToken(ctx context.Context, t *registry.SupportedToken) error {
	_, err := s.mdb.NewUpdate((*supportedTokenModel)(nil)).
		Filter(bson.M{"_id": t.Token.Hex()}).
		SetUpdate(bson.M{"$setOnInsert": bson.M{"added_at": t.AddedAt}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fiatbridge/mongo: add supported token: %w", err)
	}
	return nil
}

func (s *Store) RemoveSupportedToken(ctx context.Context, token common.Address) error {
	_, err := s.mdb.NewDelete((*supportedTokenModel)(nil)).
		Filter(bson.M{"_id": token.Hex()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fiatbridge/mongo: remove supported token: %w", err)
	}
	return nil
}

func (s *Store) IsSupportedToken(ctx context.Context, token common.Address) (bool, error) {
	n, err := s.mdb.Collection(colTokens).CountDocuments(ctx, bson.M{"_id": token.Hex()})
	if err != nil {
		return false, fmt.Errorf("fiatbridge/mongo: check supported token: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListSupportedTokens(ctx context.Context) ([]*registry.SupportedToken, error) {
	var models []supportedTokenModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fiatbridge/mongo: list supported tokens: %w", err)
	}

	result := make([]*registry.SupportedToken, len(models))
	for i := range models {
		result[i] = fromSupportedTokenModel(&models[i])
	}
	return result, nil
}

// ==================== Permission Store ====================

func (s *Store) PutPermission(ctx context.Context, p *permission.Permission) error {
	m := toPermissionModel(p)
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"user_addr":   m.UserAddr,
				"token":       m.Token,
				"max_amount":  m.MaxAmount,
				"expiry_time": m.ExpiryTime,
				"is_active":   m.IsActive,
				"updated_at":  m.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": m.CreatedAt},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fiatbridge/mongo: put permission: %w", err)
	}
	return nil
}

func (s *Store) GetPermission(ctx context.Context, user, token common.Address) (*permission.Permission, error) {
	var m permissionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": permissionDocID(user, token)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fiatbridge.ErrPermissionNotFound
		}
		return nil, fmt.Errorf("fiatbridge/mongo: get permission: %w", err)
	}
	return fromPermissionModel(&m)
}

func (s *Store) ListPermissions(ctx context.Context, user common.Address) ([]*permission.Permission, error) {
	var models []permissionModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"user_addr": user.Hex()}).
		Sort(bson.D{{Key: "token", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fiatbridge/mongo: list permissions: %w", err)
	}

	result := make([]*permission.Permission, len(models))
	for i := range models {
		p, err := fromPermissionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Transaction Store ====================

func (s *Store) CreateTransaction(ctx context.Context, t *transaction.Transaction) error {
	m := toTransactionModel(t)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fiatbridge.ErrAlreadyExists
		}
		return fmt.Errorf("fiatbridge/mongo: create transaction: %w", err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, txID id.TxID) (*transaction.Transaction, error) {
	var m transactionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": txID.Hex()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fiatbridge.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("fiatbridge/mongo: get transaction: %w", err)
	}
	return fromTransactionModel(&m)
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel

	filter := bson.M{}
	if opts.User != (common.Address{}) {
		filter["user_addr"] = opts.User.Hex()
	}
	if opts.Token != (common.Address{}) {
		filter["token"] = opts.Token.Hex()
	}
	switch opts.Status {
	case transaction.StatusLocked:
		filter["is_completed"] = false
		filter["is_refunded"] = false
	case transaction.StatusCompleted:
		filter["is_completed"] = true
	case transaction.StatusRefunded:
		filter["is_refunded"] = true
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fiatbridge/mongo: list transactions: %w", err)
	}

	result := make([]*transaction.Transaction, len(models))
	for i := range models {
		t, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

// SettleTransaction only matches documents that are still locked, so two
// settlements racing on the same id cannot both succeed.
func (s *Store) SettleTransaction(ctx context.Context, t *transaction.Transaction) error {
	res, err := s.mdb.NewUpdate((*transactionModel)(nil)).
		Filter(bson.M{
			"_id":          t.ID.Hex(),
			"is_completed": false,
			"is_refunded":  false,
		}).
		Set("is_completed", t.IsCompleted).
		Set("is_refunded", t.IsRefunded).
		Set("amount_spent", t.AmountSpent.String()).
		Set("updated_at", t.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fiatbridge/mongo: settle transaction: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetTransaction(ctx, t.ID); err != nil {
			return err
		}
		return fiatbridge.ErrAlreadyProcessed
	}
	return nil
}

func (s *Store) RevertSettlement(ctx context.Context, t *transaction.Transaction) error {
	res, err := s.mdb.NewUpdate((*transactionModel)(nil)).
		Filter(bson.M{"_id": t.ID.Hex()}).
		Set("is_completed", t.IsCompleted).
		Set("is_refunded", t.IsRefunded).
		Set("amount_spent", t.AmountSpent.String()).
		Set("updated_at", t.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fiatbridge/mongo: revert settlement: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fiatbridge.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, txID id.TxID) error {
	res, err := s.mdb.NewDelete((*transactionModel)(nil)).
		Filter(bson.M{"_id": txID.Hex()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fiatbridge/mongo: delete transaction: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fiatbridge.ErrTransactionNotFound
	}
	return nil
}

// ==================== Fee Store ====================

func (s *Store) GetCollectedFees(ctx context.Context, token common.Address) (types.Amount, error) {
	var m feeBalanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": token.Hex()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return types.Amount{}, nil
		}
		return types.Amount{}, fmt.Errorf("fiatbridge/mongo: get collected fees: %w", err)
	}
	return types.ParseAmount(m.Collected)
}

func (s *Store) SetCollectedFees(ctx context.Context, token common.Address, amount types.Amount) error {
	if amount.IsNegative() {
		return fiatbridge.ErrNegativeAmount
	}
	_, err := s.mdb.NewUpdate((*feeBalanceModel)(nil)).
		Filter(bson.M{"_id": token.Hex()}).
		SetUpdate(bson.M{"$set": bson.M{
			"collected":  amount.String(),
			"updated_at": now(),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("fiatbridge/mongo: set collected fees: %w", err)
	}
	return nil
}

func (s *Store) ListCollectedFees(ctx context.Context) ([]*fee.Balance, error) {
	var models []feeBalanceModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fiatbridge/mongo: list collected fees: %w", err)
	}

	result := make([]*fee.Balance, len(models))
	for i := range models {
		b, err := fromFeeBalanceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

// ==================== Journal Store ====================

func (s *Store) AppendEvent(ctx context.Context, e *event.Event) error {
	m := toEventModel(e)
	_, err := s.mdb.NewInsert(m).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fiatbridge.ErrAlreadyExists
		}
		return fmt.Errorf("fiatbridge/mongo: append event: %w", err)
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel

	filter := bson.M{"_id": bson.M{"$gt": int64(opts.AfterSeq)}} //nolint:gosec // sequence numbers stay far below MaxInt64
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("fiatbridge/mongo: list events: %w", err)
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		e, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) LastEventSeq(ctx context.Context) (uint64, error) {
	var models []eventModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return 0, fmt.Errorf("fiatbridge/mongo: last event seq: %w", err)
	}
	if len(models) == 0 {
		return 0, nil
	}
	return uint64(models[0].Seq), nil //nolint:gosec // seq is never negative
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all bridge collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colSettings: {},
		colTokens:   {},
		colPermissions: {
			{
				Keys:    bson.D{{Key: "user_addr", Value: 1}, {Key: "token", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "user_addr", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "token", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "is_completed", Value: 1}, {Key: "is_refunded", Value: 1}}},
		},
		colFees: {},
		colEvents: {
			{
				Keys:    bson.D{{Key: "event_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "_id", Value: 1}}},
			{
				Keys:    bson.D{{Key: "tx_id", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
	}
}
