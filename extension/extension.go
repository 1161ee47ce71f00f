// Package extension provides the Forge extension adapter for FiatBridge.
//
// It implements the forge.Extension interface to integrate FiatBridge
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.fiatbridge" or
// "fiatbridge" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/fiatbridge"
	"github.com/xraph/fiatbridge/store"
	"github.com/xraph/fiatbridge/store/memory"
	"github.com/xraph/fiatbridge/token"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "fiatbridge"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Permission-gated token escrow and settlement engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts FiatBridge as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *fiatbridge.Bridge
	store      store.Store
	tokens     token.Resolver
	bridgeOpts []fiatbridge.Option
}

// New creates a new FiatBridge Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Bridge instance.
// This is nil until Register is called.
func (e *Extension) Engine() *fiatbridge.Bridge { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the bridge engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	eng, err := e.buildEngine()
	if err != nil {
		return err
	}
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*fiatbridge.Bridge, error) {
		return e.engine, nil
	})
}

// buildEngine validates the resolved config and constructs the bridge.
func (e *Extension) buildEngine() (*fiatbridge.Bridge, error) {
	if e.tokens == nil {
		return nil, errors.New("fiatbridge: token resolver is required; use WithTokens")
	}

	owner, err := parseAddress("owner", e.config.Owner)
	if err != nil {
		return nil, err
	}

	opts, err := e.buildBridgeOpts()
	if err != nil {
		return nil, err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	return fiatbridge.New(e.store, owner, e.tokens, opts...), nil
}

// Start implements [forge.Extension]. It starts the engine and adds any
// configured tokens that are not yet supported.
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("fiatbridge: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	for _, t := range e.config.SupportedTokens {
		addr, err := parseAddress("supported token", t)
		if err != nil {
			return err
		}
		if err := e.engine.AddSupportedToken(ctx, e.engine.Owner(), addr); err != nil {
			return fmt.Errorf("fiatbridge: add supported token %s: %w", addr.Hex(), err)
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("fiatbridge: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildBridgeOpts constructs fiatbridge.Option values from the resolved config.
func (e *Extension) buildBridgeOpts() ([]fiatbridge.Option, error) {
	opts := make([]fiatbridge.Option, 0, len(e.bridgeOpts)+3)
	opts = append(opts,
		fiatbridge.WithSpreadFee(e.config.SpreadFeeBps),
		fiatbridge.WithPluginTimeout(e.config.PluginTimeout),
	)

	if e.config.Custody != "" {
		custody, err := parseAddress("custody", e.config.Custody)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fiatbridge.WithCustody(custody))
	}

	// Append any pass-through bridge options.
	opts = append(opts, e.bridgeOpts...)

	return opts, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("fiatbridge: %s %q is not a hex address", field, s)
	}
	return common.HexToAddress(s), nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("fiatbridge: configuration is required but not found in config files; " +
				"ensure 'extensions.fiatbridge' or 'fiatbridge' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("fiatbridge: configuration loaded",
		forge.F("owner", e.config.Owner),
		forge.F("custody", e.config.Custody),
		forge.F("spread_fee_bps", e.config.SpreadFeeBps),
		forge.F("plugin_timeout", e.config.PluginTimeout),
		forge.F("supported_tokens", len(e.config.SupportedTokens)),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.fiatbridge" first (namespaced pattern).
	if cm.IsSet("extensions.fiatbridge") {
		if err := cm.Bind("extensions.fiatbridge", &cfg); err == nil {
			e.Logger().Debug("fiatbridge: loaded config from file",
				forge.F("key", "extensions.fiatbridge"),
			)
			return cfg, true
		}
		e.Logger().Warn("fiatbridge: failed to bind extensions.fiatbridge config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "fiatbridge" key.
	if cm.IsSet("fiatbridge") {
		if err := cm.Bind("fiatbridge", &cfg); err == nil {
			e.Logger().Debug("fiatbridge: loaded config from file",
				forge.F("key", "fiatbridge"),
			)
			return cfg, true
		}
		e.Logger().Warn("fiatbridge: failed to bind fiatbridge config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.SpreadFeeBps == 0 {
		cfg.SpreadFeeBps = defaults.SpreadFeeBps
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// String fields: YAML takes precedence.
	if yamlConfig.Owner == "" {
		yamlConfig.Owner = programmaticConfig.Owner
	}
	if yamlConfig.Custody == "" {
		yamlConfig.Custody = programmaticConfig.Custody
	}

	// Numeric fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.SpreadFeeBps == 0 && programmaticConfig.SpreadFeeBps != 0 {
		yamlConfig.SpreadFeeBps = programmaticConfig.SpreadFeeBps
	}
	if yamlConfig.PluginTimeout == 0 && programmaticConfig.PluginTimeout != 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}

	// Token lists are combined.
	if len(programmaticConfig.SupportedTokens) > 0 {
		yamlConfig.SupportedTokens = append(yamlConfig.SupportedTokens, programmaticConfig.SupportedTokens...)
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
