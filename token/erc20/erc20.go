// Package erc20 binds the bridge's token interface to ERC-20 contracts on an
// EVM chain. Pulls and pushes are signed by the custody key and are
// considered done only once mined with a successful receipt.
package erc20

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/xraph/fiatbridge/token"
	"github.com/xraph/fiatbridge/types"
)

// ErrReverted is returned when a transfer was mined but reverted.
var ErrReverted = errors.New("erc20: transaction reverted")

// Backend is the chain access the client needs. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.DeployBackend
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// Compile-time interface checks.
var (
	_ Backend        = (*ethclient.Client)(nil)
	_ token.Resolver = (*Client)(nil)
	_ token.Token    = (*Token)(nil)
)

// Client signs token calls with the custody key.
type Client struct {
	backend     Backend
	key         *ecdsa.PrivateKey
	custody     common.Address
	chainID     *big.Int
	abi         abi.ABI
	logger      *slog.Logger
	waitTimeout time.Duration
	gasMargin   uint64 // percent added to estimated gas

	// sendMu serializes nonce allocation.
	sendMu sync.Mutex
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithWaitTimeout bounds how long a transfer waits to be mined.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *Client) { c.waitTimeout = d }
}

// WithGasMargin sets the percentage added on top of estimated gas.
func WithGasMargin(percent uint64) Option {
	return func(c *Client) { c.gasMargin = percent }
}

// NewClient creates a client signing with key on chainID.
func NewClient(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, opts ...Option) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("erc20: parse abi: %w", err)
	}
	c := &Client{
		backend:     backend,
		key:         key,
		custody:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:     new(big.Int).Set(chainID),
		abi:         parsed,
		logger:      slog.Default(),
		waitTimeout: 2 * time.Minute,
		gasMargin:   20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dial connects to rpcURL and creates a client for the hex-encoded custody
// key (with or without 0x prefix).
func Dial(ctx context.Context, rpcURL, hexKey string, chainID *big.Int, opts ...Option) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("erc20: parse custody key: %w", err)
	}
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("erc20: dial %s: %w", rpcURL, err)
	}
	return NewClient(ec, key, chainID, opts...)
}

// Custody returns the address derived from the custody key.
func (c *Client) Custody() common.Address { return c.custody }

// Token implements token.Resolver.
func (c *Client) Token(address common.Address) (token.Token, error) {
	return &Token{client: c, address: address}, nil
}

// Token is one ERC-20 contract accessed through a Client.
type Token struct {
	client  *Client
	address common.Address
}

// BalanceOf implements token.Token.
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (types.Amount, error) {
	v, err := t.client.callUint(ctx, t.address, "balanceOf", account)
	if err != nil {
		return types.Amount{}, err
	}
	return types.AmountFromBig(v), nil
}

// Allowance returns the allowance owner granted to the custody account.
func (t *Token) Allowance(ctx context.Context, owner common.Address) (types.Amount, error) {
	v, err := t.client.callUint(ctx, t.address, "allowance", owner, t.client.custody)
	if err != nil {
		return types.Amount{}, err
	}
	return types.AmountFromBig(v), nil
}

// TransferFrom implements token.Token.
func (t *Token) TransferFrom(ctx context.Context, owner, recipient common.Address, amount types.Amount) error {
	return t.client.send(ctx, t.address, "transferFrom", owner, recipient, amount.Big())
}

// Transfer implements token.Token.
func (t *Token) Transfer(ctx context.Context, recipient common.Address, amount types.Amount) error {
	return t.client.send(ctx, t.address, "transfer", recipient, amount.Big())
}

func (c *Client) callUint(ctx context.Context, contract common.Address, method string, args ...interface{}) (*big.Int, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("erc20: pack %s: %w", method, err)
	}
	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("erc20: call %s: %w", method, err)
	}
	unpacked, err := c.abi.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("erc20: unpack %s: %w", method, err)
	}
	if len(unpacked) == 0 {
		return nil, fmt.Errorf("erc20: empty result from %s", method)
	}
	v, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("erc20: unexpected %s result type %T", method, unpacked[0])
	}
	return v, nil
}

// send signs and submits a state-changing call, then waits for it to be
// mined. Gas estimation runs the call against pending state first, so a
// transfer that would revert fails before anything is broadcast. Once the
// transaction is broadcast, a wait failure is reported as
// token.ErrTransferPending.
func (c *Client) send(ctx context.Context, contract common.Address, method string, args ...interface{}) error {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("erc20: pack %s: %w", method, err)
	}

	signed, err := c.submit(ctx, contract, data)
	if err != nil {
		return fmt.Errorf("erc20: %s: %w", method, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.waitTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.backend, signed)
	if err != nil {
		c.logger.Warn("erc20 transfer not confirmed",
			"method", method,
			"token", contract.Hex(),
			"tx", signed.Hash().Hex(),
			"error", err,
		)
		return fmt.Errorf("erc20: wait for %s %s: %w: %w", method, signed.Hash().Hex(), token.ErrTransferPending, err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s %s", ErrReverted, method, signed.Hash().Hex())
	}

	c.logger.Debug("erc20 transfer mined",
		"method", method,
		"token", contract.Hex(),
		"tx", signed.Hash().Hex(),
		"block", receipt.BlockNumber,
	)
	return nil
}

func (c *Client) submit(ctx context.Context, contract common.Address, data []byte) (*ethtypes.Transaction, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.custody, To: &contract, Data: data})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * c.gasMargin / 100

	nonce, err := c.backend.PendingNonceAt(ctx, c.custody)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &contract,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	return signed, nil
}
