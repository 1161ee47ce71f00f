// Package memtoken is an in-memory ERC-20 ledger. It backs tests and local
// simulations of the bridge.
package memtoken

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/token"
	"github.com/xraph/fiatbridge/types"
)

// Compile-time interface checks.
var (
	_ token.Token    = (*Token)(nil)
	_ token.Resolver = (*Bank)(nil)
)

// Token is a single ERC-20 token with balances and allowances. Transfers
// are atomic: a failed call changes nothing.
type Token struct {
	mu         sync.Mutex
	address    common.Address
	symbol     string
	decimals   uint8
	custody    common.Address
	balances   map[common.Address]types.Amount
	allowances map[common.Address]map[common.Address]types.Amount

	// failNext, when set, makes the next mutating call fail with this error.
	failNext error
	// pendNext makes the next mutating call apply and then report
	// token.ErrTransferPending.
	pendNext bool
}

// New creates a token at address whose TransferFrom and Transfer act on
// behalf of custody.
func New(address common.Address, symbol string, decimals uint8, custody common.Address) *Token {
	return &Token{
		address:    address,
		symbol:     symbol,
		decimals:   decimals,
		custody:    custody,
		balances:   make(map[common.Address]types.Amount),
		allowances: make(map[common.Address]map[common.Address]types.Amount),
	}
}

// Address returns the token address.
func (t *Token) Address() common.Address { return t.address }

// Symbol returns the token symbol.
func (t *Token) Symbol() string { return t.symbol }

// Decimals returns the number of decimals.
func (t *Token) Decimals() uint8 { return t.decimals }

// Units converts a whole-token quantity to base units.
func (t *Token) Units(whole int64) types.Amount { return types.Units(whole, t.decimals) }

// Mint credits amount to account.
func (t *Token) Mint(account common.Address, amount types.Amount) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[account] = t.balances[account].Add(amount)
}

// Approve sets the allowance owner grants to spender.
func (t *Token) Approve(owner, spender common.Address, amount types.Amount) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]types.Amount)
	}
	t.allowances[owner][spender] = amount
}

// Allowance returns the allowance owner granted to spender.
func (t *Token) Allowance(owner, spender common.Address) types.Amount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowances[owner][spender]
}

// FailNext makes the next TransferFrom or Transfer fail with err.
func (t *Token) FailNext(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failNext = err
}

// PendNext makes the next TransferFrom or Transfer take effect but report
// token.ErrTransferPending, as a chain transfer that was broadcast but not
// confirmed in time.
func (t *Token) PendNext() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendNext = true
}

// BalanceOf implements token.Token.
func (t *Token) BalanceOf(_ context.Context, account common.Address) (types.Amount, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[account], nil
}

// TransferFrom implements token.Token with custody as the spender.
func (t *Token) TransferFrom(_ context.Context, owner, recipient common.Address, amount types.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.takeFailure(); err != nil {
		return err
	}
	if amount.IsNegative() {
		return fmt.Errorf("memtoken: negative amount %s", amount)
	}
	allowed := t.allowances[owner][t.custody]
	if allowed.LessThan(amount) {
		return token.ErrInsufficientAllowance
	}
	if err := t.move(owner, recipient, amount); err != nil {
		return err
	}
	t.allowances[owner][t.custody] = allowed.Sub(amount)
	return t.takePending()
}

// Transfer implements token.Token, sending from custody.
func (t *Token) Transfer(_ context.Context, recipient common.Address, amount types.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.takeFailure(); err != nil {
		return err
	}
	if amount.IsNegative() {
		return fmt.Errorf("memtoken: negative amount %s", amount)
	}
	if err := t.move(t.custody, recipient, amount); err != nil {
		return err
	}
	return t.takePending()
}

func (t *Token) takeFailure() error {
	err := t.failNext
	t.failNext = nil
	return err
}

func (t *Token) takePending() error {
	if !t.pendNext {
		return nil
	}
	t.pendNext = false
	return fmt.Errorf("memtoken: %w", token.ErrTransferPending)
}

func (t *Token) move(from, to common.Address, amount types.Amount) error {
	bal := t.balances[from]
	if bal.LessThan(amount) {
		return token.ErrInsufficientBalance
	}
	t.balances[from] = bal.Sub(amount)
	t.balances[to] = t.balances[to].Add(amount)
	return nil
}

// Bank is a set of in-memory tokens sharing one custody account.
type Bank struct {
	mu      sync.RWMutex
	custody common.Address
	tokens  map[common.Address]*Token
}

// NewBank creates an empty bank for custody.
func NewBank(custody common.Address) *Bank {
	return &Bank{custody: custody, tokens: make(map[common.Address]*Token)}
}

// Deploy creates and registers a new token.
func (b *Bank) Deploy(address common.Address, symbol string, decimals uint8) *Token {
	t := New(address, symbol, decimals, b.custody)
	b.mu.Lock()
	b.tokens[address] = t
	b.mu.Unlock()
	return t
}

// Token implements token.Resolver.
func (b *Bank) Token(address common.Address) (token.Token, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tokens[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", token.ErrUnknownToken, address.Hex())
	}
	return t, nil
}
