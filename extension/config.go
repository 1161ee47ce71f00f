package extension

import "time"

// Config holds the FiatBridge extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.fiatbridge" or "fiatbridge" keys).
type Config struct {
	// Owner is the hex address of the bridge administrator. Required.
	Owner string `json:"owner" mapstructure:"owner" yaml:"owner"`

	// Custody is the hex address of the escrow account (default: owner).
	Custody string `json:"custody" mapstructure:"custody" yaml:"custody"`

	// SpreadFeeBps is the fee rate seeded on first start (default: 100).
	SpreadFeeBps uint16 `json:"spread_fee_bps" mapstructure:"spread_fee_bps" yaml:"spread_fee_bps"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// SupportedTokens are added to the registry on start when missing.
	SupportedTokens []string `json:"supported_tokens" mapstructure:"supported_tokens" yaml:"supported_tokens"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SpreadFeeBps:  100,
		PluginTimeout: 5 * time.Second,
	}
}
