package extension

import (
	"time"

	"github.com/xraph/fiatbridge"
	"github.com/xraph/fiatbridge/plugin"
	"github.com/xraph/fiatbridge/store"
	"github.com/xraph/fiatbridge/token"
)

// Option configures the FiatBridge Forge extension.
type Option func(*Extension)

// WithStore sets the store for the bridge engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithTokens sets the token resolver used for custody transfers.
func WithTokens(r token.Resolver) Option {
	return func(e *Extension) {
		e.tokens = r
	}
}

// WithBridgeOption passes a fiatbridge.Option through to the underlying engine.
func WithBridgeOption(opt fiatbridge.Option) Option {
	return func(e *Extension) {
		e.bridgeOpts = append(e.bridgeOpts, opt)
	}
}

// WithPlugin registers a bridge plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.bridgeOpts = append(e.bridgeOpts, fiatbridge.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithOwner sets the administrator address.
func WithOwner(hex string) Option {
	return func(e *Extension) { e.config.Owner = hex }
}

// WithCustody sets the escrow account address.
func WithCustody(hex string) Option {
	return func(e *Extension) { e.config.Custody = hex }
}

// WithSpreadFee sets the initial spread fee in basis points. Zero means the
// default; pass WithBridgeOption(fiatbridge.WithSpreadFee(0)) for a free bridge.
func WithSpreadFee(bps uint16) Option {
	return func(e *Extension) { e.config.SpreadFeeBps = bps }
}

// WithPluginTimeout sets the per-hook plugin timeout.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithSupportedTokens lists tokens to add to the registry on start.
func WithSupportedTokens(tokens ...string) Option {
	return func(e *Extension) { e.config.SupportedTokens = append(e.config.SupportedTokens, tokens...) }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
