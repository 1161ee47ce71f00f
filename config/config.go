// Package config loads standalone FiatBridge configuration.
//
// Values are resolved in three layers: built-in defaults, an optional TOML
// file, then environment variables. Only keys present in the TOML file
// override defaults. Signing keys are read from the environment only.
package config

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/xraph/fiatbridge"
	"github.com/xraph/fiatbridge/fee"
	"github.com/xraph/fiatbridge/plugin"
	"github.com/xraph/fiatbridge/token/erc20"
)

// Config is the standalone configuration of a FiatBridge process.
type Config struct {
	// Owner is the administrator address. When empty it is derived from
	// Keys.Owner.
	Owner string `env:"FIATBRIDGE_OWNER"`

	// Custody is the account that holds escrowed funds. When empty it is
	// derived from Keys.Vault, then falls back to the owner.
	Custody string `env:"FIATBRIDGE_CUSTODY"`

	// SpreadFeeBps is the fee rate seeded on first start.
	SpreadFeeBps uint16 `env:"FIATBRIDGE_SPREAD_FEE_BPS"`

	// PluginTimeout bounds each plugin hook call.
	PluginTimeout time.Duration `env:"FIATBRIDGE_PLUGIN_TIMEOUT"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `env:"FIATBRIDGE_LOG_LEVEL"`

	// MetricsNamespace prefixes exported Prometheus metrics.
	MetricsNamespace string `env:"FIATBRIDGE_METRICS_NAMESPACE"`

	Chain ChainConfig
	NATS  NATSConfig
	Keys  KeyConfig
}

// ChainConfig selects the ERC-20 network.
type ChainConfig struct {
	RPCURL  string   `env:"FIATBRIDGE_RPC_URL"`
	ChainID int64    `env:"FIATBRIDGE_CHAIN_ID"`
	Tokens  []string `env:"FIATBRIDGE_TOKENS" envSeparator:","`
}

// NATSConfig configures the JetStream event publisher. An empty URL
// disables publishing.
type NATSConfig struct {
	URL           string `env:"FIATBRIDGE_NATS_URL"`
	Stream        string `env:"FIATBRIDGE_NATS_STREAM"`
	SubjectPrefix string `env:"FIATBRIDGE_NATS_SUBJECT_PREFIX"`
}

// KeyConfig holds hex-encoded secp256k1 keys.
type KeyConfig struct {
	// Owner is the administrator key.
	Owner string `env:"MY_PRIVATE_KEY"`
	// Vault is the custody key that signs token transfers.
	Vault string `env:"VAULT_PRIVATE_KEY"`
	// Fee is the key of the fee collector. Fees are withdrawn to the owner,
	// so its address must equal the owner.
	Fee string `env:"FEE_PRIVATE_KEY"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		SpreadFeeBps:     fee.DefaultSpreadBps,
		PluginTimeout:    plugin.DefaultTimeout,
		LogLevel:         "info",
		NATS: NATSConfig{
			Stream:        "FIATBRIDGE_EVENTS",
			SubjectPrefix: "fiatbridge.events",
		},
	}
}

type fileConfig struct {
	Owner            string `toml:"owner"`
	Custody          string `toml:"custody"`
	SpreadFeeBps     int    `toml:"spread_fee_bps"`
	PluginTimeout    string `toml:"plugin_timeout"`
	LogLevel         string `toml:"log_level"`
	MetricsNamespace string `toml:"metrics_namespace"`

	Chain struct {
		RPCURL  string   `toml:"rpc_url"`
		ChainID int64    `toml:"chain_id"`
		Tokens  []string `toml:"tokens"`
	} `toml:"chain"`

	NATS struct {
		URL           string `toml:"url"`
		Stream        string `toml:"stream"`
		SubjectPrefix string `toml:"subject_prefix"`
	} `toml:"nats"`
}

// Load resolves configuration from defaults, the TOML file at path (skipped
// when path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config: unknown key %q in %s", undecoded[0].String(), path)
	}

	if meta.IsDefined("owner") {
		c.Owner = strings.TrimSpace(raw.Owner)
	}
	if meta.IsDefined("custody") {
		c.Custody = strings.TrimSpace(raw.Custody)
	}
	if meta.IsDefined("spread_fee_bps") {
		if raw.SpreadFeeBps < 0 || raw.SpreadFeeBps > int(^uint16(0)) {
			return fmt.Errorf("config: spread_fee_bps %d out of range", raw.SpreadFeeBps)
		}
		c.SpreadFeeBps = uint16(raw.SpreadFeeBps)
	}
	if meta.IsDefined("plugin_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PluginTimeout))
		if err != nil {
			return fmt.Errorf("config: parse plugin_timeout: %w", err)
		}
		c.PluginTimeout = d
	}
	if meta.IsDefined("log_level") {
		c.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("metrics_namespace") {
		c.MetricsNamespace = strings.TrimSpace(raw.MetricsNamespace)
	}

	if meta.IsDefined("chain", "rpc_url") {
		c.Chain.RPCURL = strings.TrimSpace(raw.Chain.RPCURL)
	}
	if meta.IsDefined("chain", "chain_id") {
		c.Chain.ChainID = raw.Chain.ChainID
	}
	if meta.IsDefined("chain", "tokens") {
		c.Chain.Tokens = normalizeList(raw.Chain.Tokens)
	}

	if meta.IsDefined("nats", "url") {
		c.NATS.URL = strings.TrimSpace(raw.NATS.URL)
	}
	if meta.IsDefined("nats", "stream") {
		c.NATS.Stream = strings.TrimSpace(raw.NATS.Stream)
	}
	if meta.IsDefined("nats", "subject_prefix") {
		c.NATS.SubjectPrefix = strings.TrimSpace(raw.NATS.SubjectPrefix)
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Validate checks addresses, keys and bounds.
func (c Config) Validate() error {
	var errs []error

	owner, err := c.OwnerAddress()
	if err != nil {
		errs = append(errs, err)
	}
	if _, err := c.CustodyAddress(); err != nil {
		errs = append(errs, err)
	}
	if !fee.ValidRate(c.SpreadFeeBps) {
		errs = append(errs, fmt.Errorf("config: spread fee %d bps: %w", c.SpreadFeeBps, fiatbridge.ErrFeeTooHigh))
	}
	if c.PluginTimeout <= 0 {
		errs = append(errs, errors.New("config: plugin timeout must be positive"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SupportedTokens(); err != nil {
		errs = append(errs, err)
	}

	if c.Chain.RPCURL != "" {
		if c.Chain.ChainID <= 0 {
			errs = append(errs, errors.New("config: chain id is required with an rpc url"))
		}
		if c.Keys.Vault == "" {
			errs = append(errs, errors.New("config: VAULT_PRIVATE_KEY is required with an rpc url"))
		}
		if err := c.checkVaultCustody(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Keys.Fee != "" && err == nil {
		feeAddr, ferr := keyAddress(c.Keys.Fee)
		switch {
		case ferr != nil:
			errs = append(errs, fmt.Errorf("config: FEE_PRIVATE_KEY: %w", ferr))
		case feeAddr != owner:
			errs = append(errs, fmt.Errorf("config: fee key address %s differs from owner %s", feeAddr.Hex(), owner.Hex()))
		}
	}

	return errors.Join(errs...)
}

// checkVaultCustody rejects an explicit custody address that the vault key
// cannot sign for.
func (c Config) checkVaultCustody() error {
	if c.Custody == "" || c.Keys.Vault == "" {
		return nil
	}
	custody, err := parseAddress("custody", c.Custody)
	if err != nil {
		return nil
	}
	vault, err := keyAddress(c.Keys.Vault)
	if err != nil {
		return fmt.Errorf("config: VAULT_PRIVATE_KEY: %w", err)
	}
	if vault != custody {
		return fmt.Errorf("config: custody %s differs from vault key address %s", custody.Hex(), vault.Hex())
	}
	return nil
}

// OwnerAddress resolves the owner from Owner or the owner key.
func (c Config) OwnerAddress() (common.Address, error) {
	if c.Owner != "" {
		return parseAddress("owner", c.Owner)
	}
	if c.Keys.Owner != "" {
		addr, err := keyAddress(c.Keys.Owner)
		if err != nil {
			return common.Address{}, fmt.Errorf("config: MY_PRIVATE_KEY: %w", err)
		}
		return addr, nil
	}
	return common.Address{}, errors.New("config: owner is required (FIATBRIDGE_OWNER or MY_PRIVATE_KEY)")
}

// CustodyAddress resolves the custody account from Custody or the vault
// key. The zero address means the engine default (the owner).
func (c Config) CustodyAddress() (common.Address, error) {
	if c.Custody != "" {
		return parseAddress("custody", c.Custody)
	}
	if c.Keys.Vault != "" {
		addr, err := keyAddress(c.Keys.Vault)
		if err != nil {
			return common.Address{}, fmt.Errorf("config: VAULT_PRIVATE_KEY: %w", err)
		}
		return addr, nil
	}
	return common.Address{}, nil
}

// SupportedTokens parses the tokens listed under chain.tokens.
func (c Config) SupportedTokens() ([]common.Address, error) {
	out := make([]common.Address, 0, len(c.Chain.Tokens))
	for _, t := range c.Chain.Tokens {
		addr, err := parseAddress("token", t)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}

// Logger builds a text logger on stderr at the configured level.
func (c Config) Logger() *slog.Logger {
	lvl, err := c.Level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// EngineOptions maps the configuration to engine options. Call Validate
// first; invalid addresses are skipped here.
func (c Config) EngineOptions(logger *slog.Logger) []fiatbridge.Option {
	opts := []fiatbridge.Option{
		fiatbridge.WithSpreadFee(c.SpreadFeeBps),
		fiatbridge.WithPluginTimeout(c.PluginTimeout),
	}
	if logger != nil {
		opts = append(opts, fiatbridge.WithLogger(logger))
	}
	if custody, err := c.CustodyAddress(); err == nil && custody != (common.Address{}) {
		opts = append(opts, fiatbridge.WithCustody(custody))
	}
	return opts
}

// DialTokens connects the ERC-20 adapter using the vault key.
func (c Config) DialTokens(ctx context.Context, opts ...erc20.Option) (*erc20.Client, error) {
	if c.Chain.RPCURL == "" {
		return nil, errors.New("config: rpc url is not set")
	}
	return erc20.Dial(ctx, c.Chain.RPCURL, c.Keys.Vault, big.NewInt(c.Chain.ChainID), opts...)
}

func parseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("config: %s %q is not a hex address", field, s)
	}
	return common.HexToAddress(s), nil
}

func keyAddress(hexKey string) (common.Address, error) {
	key, err := parseKey(hexKey)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
}
