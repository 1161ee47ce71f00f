package fiatbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/fee"
	"github.com/xraph/fiatbridge/id"
	"github.com/xraph/fiatbridge/plugin"
	"github.com/xraph/fiatbridge/registry"
	"github.com/xraph/fiatbridge/store"
	"github.com/xraph/fiatbridge/token"
)

// Bridge is the escrow and settlement engine.
//
// Work is serialized per key: per (user, token) for grants and initiations,
// per transaction id for settlement, per token for the fee accumulator.
// Unrelated users never wait on each other. Grants and initiations take
// adminMu for reading after their key and never hold it across a token
// transfer; an initiation re-checks the pause flag and token support after
// pulling funds and returns them if either changed. Lock order is key,
// then adminMu, then the fee key.
type Bridge struct {
	store   store.Store
	tokens  token.Resolver
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   Clock
	ids     *id.TxGenerator

	owner   common.Address
	custody common.Address

	adminMu      sync.RWMutex
	paused       bool
	spreadFeeBps uint16

	locks keyedMutex

	journalMu sync.Mutex
	seq       uint64
}

// New creates a bridge administered by owner. tokens resolves token
// addresses to the transfer primitive used for custody.
func New(s store.Store, owner common.Address, tokens token.Resolver, opts ...Option) *Bridge {
	b := &Bridge{
		store:        s,
		tokens:       tokens,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		clock:        SystemClock,
		ids:          id.NewTxGenerator(),
		owner:        owner,
		custody:      owner,
		spreadFeeBps: fee.DefaultSpreadBps,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
		b.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(b *Bridge) {
		_ = b.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.plugins.WithTimeout(d) }
}

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(b *Bridge) { b.clock = c }
}

// WithSpreadFee sets the initial spread fee in basis points. A value
// persisted by an earlier run takes precedence at Start.
func WithSpreadFee(bps uint16) Option {
	return func(b *Bridge) { b.spreadFeeBps = bps }
}

// WithCustody sets the account that holds locked funds and collected fees.
// It defaults to the owner.
func WithCustody(addr common.Address) Option {
	return func(b *Bridge) { b.custody = addr }
}

// WithIDGenerator replaces the transaction id generator.
func WithIDGenerator(g *id.TxGenerator) Option {
	return func(b *Bridge) { b.ids = g }
}

// Start migrates the store and loads persisted administrative state,
// seeding it on first run.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.store.Migrate(ctx); err != nil {
		return fmt.Errorf("fiatbridge: migrate: %w", err)
	}

	b.adminMu.Lock()
	err := b.loadSettings(ctx)
	b.adminMu.Unlock()
	if err != nil {
		return err
	}

	seq, err := b.store.LastEventSeq(ctx)
	if err != nil {
		return fmt.Errorf("fiatbridge: load journal position: %w", err)
	}
	b.journalMu.Lock()
	b.seq = seq
	b.journalMu.Unlock()

	b.plugins.EmitInit(ctx, b)

	b.logger.Info("fiatbridge started",
		"owner", b.owner.Hex(),
		"custody", b.custody.Hex(),
		"spread_fee_bps", b.SpreadFee(),
		"paused", b.Paused(),
		"plugins", b.plugins.Count(),
	)

	return nil
}

func (b *Bridge) loadSettings(ctx context.Context) error {
	st, err := b.store.GetSettings(ctx)
	switch {
	case errors.Is(err, ErrSettingsNotFound):
		if !fee.ValidRate(b.spreadFeeBps) {
			return ErrFeeTooHigh
		}
		return b.saveSettings(ctx, b.paused, b.spreadFeeBps)
	case err != nil:
		return fmt.Errorf("fiatbridge: load settings: %w", err)
	}

	if st.Owner != b.owner {
		return fmt.Errorf("%w: stored %s, configured %s", ErrOwnerMismatch, st.Owner.Hex(), b.owner.Hex())
	}
	b.paused = st.Paused
	b.spreadFeeBps = st.SpreadFeeBps
	return nil
}

// saveSettings persists the administrative scalars. Callers hold adminMu.
func (b *Bridge) saveSettings(ctx context.Context, paused bool, bps uint16) error {
	err := b.store.SaveSettings(ctx, &registry.Settings{
		Owner:        b.owner,
		Paused:       paused,
		SpreadFeeBps: bps,
		UpdatedAt:    b.now(),
	})
	if err != nil {
		return fmt.Errorf("fiatbridge: save settings: %w", err)
	}
	return nil
}

// Stop notifies plugins and closes the store.
func (b *Bridge) Stop() error {
	ctx := context.Background()
	b.plugins.EmitShutdown(ctx)

	return b.store.Close()
}

// ──────────────────────────────────────────────────
// Accessors
// ──────────────────────────────────────────────────

// Owner returns the administrative identity.
func (b *Bridge) Owner() common.Address { return b.owner }

// Custody returns the account holding locked funds.
func (b *Bridge) Custody() common.Address { return b.custody }

// Store returns the underlying store.
func (b *Bridge) Store() store.Store { return b.store }

// Plugins returns the plugin registry.
func (b *Bridge) Plugins() *plugin.Registry { return b.plugins }

// Paused reports whether user-facing mutations are blocked.
func (b *Bridge) Paused() bool {
	b.adminMu.RLock()
	defer b.adminMu.RUnlock()
	return b.paused
}

// SpreadFee returns the current fee rate in basis points.
func (b *Bridge) SpreadFee() uint16 {
	b.adminMu.RLock()
	defer b.adminMu.RUnlock()
	return b.spreadFeeBps
}

// ──────────────────────────────────────────────────
// Guards
// ──────────────────────────────────────────────────

func (b *Bridge) now() time.Time { return b.clock.Now() }

func (b *Bridge) requireOwner(caller common.Address) error {
	if caller != b.owner {
		return ErrNotOwner
	}
	return nil
}

// requireNotPaused must be called with adminMu held.
func (b *Bridge) requireNotPaused() error {
	if b.paused {
		return ErrPaused
	}
	return nil
}

// requireSupported must be called with adminMu held.
func (b *Bridge) requireSupported(ctx context.Context, tokenAddr common.Address) error {
	ok, err := b.store.IsSupportedToken(ctx, tokenAddr)
	if err != nil {
		return fmt.Errorf("fiatbridge: check token support: %w", err)
	}
	if !ok {
		return ErrTokenNotSupported
	}
	return nil
}

// admit runs the pause and token support checks shared by user
// operations. It must be called with adminMu held.
func (b *Bridge) admit(ctx context.Context, tokenAddr common.Address) error {
	if err := b.requireNotPaused(); err != nil {
		return err
	}
	return b.requireSupported(ctx, tokenAddr)
}

func (b *Bridge) resolveToken(tokenAddr common.Address) (token.Token, error) {
	tk, err := b.tokens.Token(tokenAddr)
	if err != nil {
		return nil, &TransferError{Op: "resolve", Token: tokenAddr, Err: err}
	}
	return tk, nil
}

// fail reports a rejected operation to plugins and returns err unchanged.
func (b *Bridge) fail(ctx context.Context, op string, err error) error {
	b.logger.Debug("fiatbridge operation rejected",
		"op", op,
		"kind", KindOf(err).String(),
		"error", err,
	)
	b.plugins.EmitOperationFailed(ctx, op, err)
	return err
}
