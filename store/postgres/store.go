package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

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

// compile-time interface check
var _ bridgestore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("fiatbridge/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("fiatbridge/postgres: migration failed: %w", err)
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
	m := new(settingsModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", settingsRowID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fiatbridge.ErrSettingsNotFound
		}
		return nil, err
	}
	return fromSettingsModel(m), nil
}

func (s *Store) SaveSettings(ctx context.Context, st *registry.Settings) error {
	m := toSettingsModel(st)
	_, err := s.pg.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("owner = EXCLUDED.owner").
		Set("paused = EXCLUDED.paused").
		Set("spread_fee_bps = EXCLUDED.spread_fee_bps").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) AddSupportedToken(ctx context.Context, t *registry.SupportedToken) error {
	m := toSupportedTokenModel(t)
	_, err := s.pg.NewInsert(m).
		OnConflict("(token) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) RemoveSupportedToken(ctx context.Context, token common.Address) error {
	_, err := s.pg.NewDelete((*supportedTokenModel)(nil)).
		Where("token = $1", token.Hex()).
		Exec(ctx)
	return err
}

func (s *Store) IsSupportedToken(ctx context.Context, token common.Address) (bool, error) {
	var n int64
	err := s.pg.NewRaw(`
		SELECT COUNT(*) FROM fiatbridge_supported_tokens WHERE token = $1
	`, token.Hex()).Scan(ctx, &n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ListSupportedTokens(ctx context.Context) ([]*registry.SupportedToken, error) {
	var models []supportedTokenModel
	err := s.pg.NewSelect(&models).
		OrderExpr("token ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	_, err := s.pg.NewInsert(m).
		OnConflict("(user_addr, token) DO UPDATE").
		Set("max_amount = EXCLUDED.max_amount").
		Set("expiry_time = EXCLUDED.expiry_time").
		Set("is_active = EXCLUDED.is_active").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetPermission(ctx context.Context, user, token common.Address) (*permission.Permission, error) {
	m := new(permissionModel)
	err := s.pg.NewSelect(m).
		Where("user_addr = $1", user.Hex()).
		Where("token = $2", token.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fiatbridge.ErrPermissionNotFound
		}
		return nil, err
	}
	return fromPermissionModel(m)
}

func (s *Store) ListPermissions(ctx context.Context, user common.Address) ([]*permission.Permission, error) {
	var models []permissionModel
	err := s.pg.NewSelect(&models).
		Where("user_addr = $1", user.Hex()).
		OrderExpr("token ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	res, err := s.pg.NewInsert(m).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fiatbridge.ErrAlreadyExists
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, txID id.TxID) (*transaction.Transaction, error) {
	m := new(transactionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", txID.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fiatbridge.ErrTransactionNotFound
		}
		return nil, err
	}
	return fromTransactionModel(m)
}

func (s *Store) ListTransactions(ctx context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	var models []transactionModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.User != (common.Address{}) {
		argIdx++
		q = q.Where(fmt.Sprintf("user_addr = $%d", argIdx), opts.User.Hex())
	}
	if opts.Token != (common.Address{}) {
		argIdx++
		q = q.Where(fmt.Sprintf("token = $%d", argIdx), opts.Token.Hex())
	}
	switch opts.Status {
	case transaction.StatusLocked:
		q = q.Where("is_completed = FALSE AND is_refunded = FALSE")
	case transaction.StatusCompleted:
		q = q.Where("is_completed = TRUE")
	case transaction.StatusRefunded:
		q = q.Where("is_refunded = TRUE")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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

// SettleTransaction only touches rows that are still locked, so two
// settlements racing on the same id cannot both succeed.
func (s *Store) SettleTransaction(ctx context.Context, t *transaction.Transaction) error {
	res, err := s.pg.NewUpdate((*transactionModel)(nil)).
		Set("is_completed = $1", t.IsCompleted).
		Set("is_refunded = $2", t.IsRefunded).
		Set("amount_spent = $3", t.AmountSpent.String()).
		Set("updated_at = $4", t.UpdatedAt).
		Where("id = $5", t.ID.Hex()).
		Where("is_completed = FALSE AND is_refunded = FALSE").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetTransaction(ctx, t.ID); err != nil {
			return err
		}
		return fiatbridge.ErrAlreadyProcessed
	}
	return nil
}

func (s *Store) RevertSettlement(ctx context.Context, t *transaction.Transaction) error {
	res, err := s.pg.NewUpdate((*transactionModel)(nil)).
		Set("is_completed = $1", t.IsCompleted).
		Set("is_refunded = $2", t.IsRefunded).
		Set("amount_spent = $3", t.AmountSpent.String()).
		Set("updated_at = $4", t.UpdatedAt).
		Where("id = $5", t.ID.Hex()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fiatbridge.ErrTransactionNotFound
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, txID id.TxID) error {
	res, err := s.pg.NewDelete((*transactionModel)(nil)).
		Where("id = $1", txID.Hex()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fiatbridge.ErrTransactionNotFound
	}
	return nil
}

// ==================== Fee Store ====================

func (s *Store) GetCollectedFees(ctx context.Context, token common.Address) (types.Amount, error) {
	m := new(feeBalanceModel)
	err := s.pg.NewSelect(m).
		Where("token = $1", token.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return types.Amount{}, nil
		}
		return types.Amount{}, err
	}
	return types.ParseAmount(m.Collected)
}

func (s *Store) SetCollectedFees(ctx context.Context, token common.Address, amount types.Amount) error {
	if amount.IsNegative() {
		return fiatbridge.ErrNegativeAmount
	}
	m := &feeBalanceModel{
		Token:     token.Hex(),
		Collected: amount.String(),
		UpdatedAt: now(),
	}
	_, err := s.pg.NewInsert(m).
		OnConflict("(token) DO UPDATE").
		Set("collected = EXCLUDED.collected").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) ListCollectedFees(ctx context.Context) ([]*fee.Balance, error) {
	var models []feeBalanceModel
	err := s.pg.NewSelect(&models).
		OrderExpr("token ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
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
	res, err := s.pg.NewInsert(m).
		OnConflict("(seq) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fiatbridge.ErrAlreadyExists
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.pg.NewSelect(&models).
		Where("seq > $1", int64(opts.AfterSeq)) //nolint:gosec // sequence numbers stay far below MaxInt64

	if opts.Type != "" {
		q = q.Where("type = $2", string(opts.Type))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("seq ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	var seq int64
	err := s.pg.NewRaw(`
		SELECT COALESCE(MAX(seq), 0) FROM fiatbridge_events
	`).Scan(ctx, &seq)
	if err != nil {
		return 0, err
	}
	return uint64(seq), nil //nolint:gosec // seq is never negative
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
