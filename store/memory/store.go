// Package memory implements store.Store in process memory. Records are
// copied on the way in and out so callers never alias stored state.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	fiatbridge "github.com/xraph/fiatbridge"
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

type permissionKey struct {
	user  common.Address
	token common.Address
}

// Store is an in-memory store.Store.
type Store struct {
	mu sync.RWMutex

	settings *registry.Settings
	tokens   map[common.Address]registry.SupportedToken

	permissions map[permissionKey]permission.Permission

	transactions map[id.TxID]transaction.Transaction
	txOrder      []id.TxID

	fees map[common.Address]fee.Balance

	events []event.Event

	closed bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tokens:       make(map[common.Address]registry.SupportedToken),
		permissions:  make(map[permissionKey]permission.Permission),
		transactions: make(map[id.TxID]transaction.Transaction),
		fees:         make(map[common.Address]fee.Balance),
	}
}

// Migrate is a no-op.
func (s *Store) Migrate(context.Context) error { return nil }

// Ping fails once the store is closed.
func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("fiatbridge/memory: store closed")
	}
	return nil
}

// Close marks the store closed. Data stays readable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ==================== Registry Store ====================

func (s *Store) GetSettings(context.Context) (*registry.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return nil, fiatbridge.ErrSettingsNotFound
	}
	c := *s.settings
	return &c, nil
}

func (s *Store) SaveSettings(_ context.Context, st *registry.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *st
	s.settings = &c
	return nil
}

func (s *Store) AddSupportedToken(_ context.Context, t *registry.SupportedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[t.Token]; !ok {
		s.tokens[t.Token] = *t
	}
	return nil
}

func (s *Store) RemoveSupportedToken(_ context.Context, token common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func (s *Store) IsSupportedToken(_ context.Context, token common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[token]
	return ok, nil
}

func (s *Store) ListSupportedTokens(context.Context) ([]*registry.SupportedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*registry.SupportedToken, 0, len(s.tokens))
	for _, t := range s.tokens {
		c := t
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Token.Cmp(result[j].Token) < 0 })
	return result, nil
}

// ==================== Permission Store ====================

func (s *Store) PutPermission(_ context.Context, p *permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := permissionKey{user: p.User, token: p.Token}
	c := *p
	if existing, ok := s.permissions[key]; ok {
		c.CreatedAt = existing.CreatedAt
	}
	s.permissions[key] = c
	return nil
}

func (s *Store) GetPermission(_ context.Context, user, token common.Address) (*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.permissions[permissionKey{user: user, token: token}]
	if !ok {
		return nil, fiatbridge.ErrPermissionNotFound
	}
	return &p, nil
}

func (s *Store) ListPermissions(_ context.Context, user common.Address) ([]*permission.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*permission.Permission
	for key, p := range s.permissions {
		if key.user == user {
			c := p
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Token.Cmp(result[j].Token) < 0 })
	return result, nil
}

// ==================== Transaction Store ====================

func (s *Store) CreateTransaction(_ context.Context, t *transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[t.ID]; exists {
		return fiatbridge.ErrAlreadyExists
	}
	s.transactions[t.ID] = *t
	s.txOrder = append(s.txOrder, t.ID)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, txID id.TxID) (*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[txID]
	if !ok {
		return nil, fiatbridge.ErrTransactionNotFound
	}
	return &t, nil
}

func (s *Store) ListTransactions(_ context.Context, opts transaction.ListOpts) ([]*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*transaction.Transaction
	skipped := 0
	for _, txID := range s.txOrder {
		t, ok := s.transactions[txID]
		if !ok {
			continue
		}
		if opts.User != (common.Address{}) && t.User != opts.User {
			continue
		}
		if opts.Token != (common.Address{}) && t.Token != opts.Token {
			continue
		}
		if opts.Status != "" && t.Status() != opts.Status {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		c := t
		result = append(result, &c)
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) SettleTransaction(_ context.Context, t *transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.transactions[t.ID]
	if !ok {
		return fiatbridge.ErrTransactionNotFound
	}
	if existing.IsTerminal() {
		return fiatbridge.ErrAlreadyProcessed
	}
	s.transactions[t.ID] = *t
	return nil
}

func (s *Store) RevertSettlement(_ context.Context, t *transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[t.ID]; !ok {
		return fiatbridge.ErrTransactionNotFound
	}
	s.transactions[t.ID] = *t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, txID id.TxID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[txID]; !ok {
		return fiatbridge.ErrTransactionNotFound
	}
	delete(s.transactions, txID)
	for i, v := range s.txOrder {
		if v == txID {
			s.txOrder = append(s.txOrder[:i], s.txOrder[i+1:]...)
			break
		}
	}
	return nil
}

// ==================== Fee Store ====================

func (s *Store) GetCollectedFees(_ context.Context, token common.Address) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fees[token].Collected, nil
}

func (s *Store) SetCollectedFees(_ context.Context, token common.Address, amount types.Amount) error {
	if amount.IsNegative() {
		return fmt.Errorf("fiatbridge/memory: fee balance %s for %s: %w", amount, token.Hex(), fiatbridge.ErrNegativeAmount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fees[token] = fee.Balance{Token: token, Collected: amount, UpdatedAt: time.Now().UTC()}
	return nil
}

func (s *Store) ListCollectedFees(context.Context) ([]*fee.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*fee.Balance, 0, len(s.fees))
	for _, b := range s.fees {
		c := b
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Token.Cmp(result[j].Token) < 0 })
	return result, nil
}

// ==================== Journal Store ====================

func (s *Store) AppendEvent(_ context.Context, e *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.events); n > 0 && e.Seq <= s.events[n-1].Seq {
		return fmt.Errorf("fiatbridge/memory: event seq %d not after %d", e.Seq, s.events[n-1].Seq)
	}
	s.events = append(s.events, *e)
	return nil
}

func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*event.Event
	for _, e := range s.events {
		if e.Seq <= opts.AfterSeq {
			continue
		}
		if opts.Type != "" && e.Type != opts.Type {
			continue
		}
		c := e
		result = append(result, &c)
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) LastEventSeq(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.events) == 0 {
		return 0, nil
	}
	return s.events[len(s.events)-1].Seq, nil
}
