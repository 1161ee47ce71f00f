package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiatbridge"
	"github.com/xraph/fiatbridge/config"
)

// Well-known development keys.
const (
	key0 = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	key1 = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

var (
	addr0 = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	addr1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fiatbridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, uint16(100), cfg.SpreadFeeBps)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "fiatbridge.events", cfg.NATS.SubjectPrefix)
}

func TestLoad_FileOverlaysOnlyDefinedKeys(t *testing.T) {
	path := writeFile(t, `
owner = "0x00000000000000000000000000000000000000a1"
spread_fee_bps = 250
plugin_timeout = "2s"

[chain]
rpc_url = "http://localhost:8545"
chain_id = 31337
tokens = [" 0x0000000000000000000000000000000000000d01 ", ""]

[nats]
url = "nats://localhost:4222"
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0x00000000000000000000000000000000000000a1", cfg.Owner)
	assert.Equal(t, uint16(250), cfg.SpreadFeeBps)
	assert.Equal(t, 2*time.Second, cfg.PluginTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(31337), cfg.Chain.ChainID)
	assert.Equal(t, []string{"0x0000000000000000000000000000000000000d01"}, cfg.Chain.Tokens)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "FIATBRIDGE_EVENTS", cfg.NATS.Stream)

	// Explicit zero is honored.
	path = writeFile(t, "spread_fee_bps = 0\n")
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), cfg.SpreadFeeBps)
}

func TestLoad_FileErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "ownr = \"x\"\n", "unknown key"},
		{"bad duration", "plugin_timeout = \"soon\"\n", "plugin_timeout"},
		{"fee out of range", "spread_fee_bps = 70000\n", "out of range"},
		{"syntax", "owner = \n", "load"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "spread_fee_bps = 250\nlog_level = \"warn\"\n")
	t.Setenv("FIATBRIDGE_SPREAD_FEE_BPS", "300")
	t.Setenv("FIATBRIDGE_TOKENS", "0x0000000000000000000000000000000000000d01,0x0000000000000000000000000000000000000d02")
	t.Setenv("MY_PRIVATE_KEY", key0)
	t.Setenv("VAULT_PRIVATE_KEY", key1)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(300), cfg.SpreadFeeBps)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Len(t, cfg.Chain.Tokens, 2)
	assert.Equal(t, key0, cfg.Keys.Owner)

	owner, err := cfg.OwnerAddress()
	require.NoError(t, err)
	assert.Equal(t, addr0, owner)
	custody, err := cfg.CustodyAddress()
	require.NoError(t, err)
	assert.Equal(t, addr1, custody)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Owner = addr0.Hex()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing owner", func(c *config.Config) { c.Owner = "" }, "owner is required"},
		{"bad owner", func(c *config.Config) { c.Owner = "alice" }, "not a hex address"},
		{"bad custody", func(c *config.Config) { c.Custody = "0x12" }, "custody"},
		{"bad owner key", func(c *config.Config) { c.Owner = ""; c.Keys.Owner = "zz" }, "MY_PRIVATE_KEY"},
		{"zero timeout", func(c *config.Config) { c.PluginTimeout = 0 }, "plugin timeout"},
		{"bad level", func(c *config.Config) { c.LogLevel = "loud" }, "log level"},
		{"bad token", func(c *config.Config) { c.Chain.Tokens = []string{"usdc"} }, "token"},
		{"rpc without chain", func(c *config.Config) { c.Chain.RPCURL = "http://x"; c.Keys.Vault = key1 }, "chain id"},
		{"rpc without vault", func(c *config.Config) { c.Chain.RPCURL = "http://x"; c.Chain.ChainID = 1 }, "VAULT_PRIVATE_KEY"},
		{"fee key mismatch", func(c *config.Config) { c.Keys.Fee = key1 }, "differs from owner"},
		{"custody not vault", func(c *config.Config) {
			c.Chain.RPCURL = "http://x"
			c.Chain.ChainID = 1
			c.Keys.Vault = key1
			c.Custody = addr0.Hex()
		}, "differs from vault key address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := valid()
	cfg.Keys.Fee = key0
	require.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Chain.RPCURL = "http://x"
	cfg.Chain.ChainID = 1
	cfg.Keys.Vault = key1
	cfg.Custody = addr1.Hex()
	require.NoError(t, cfg.Validate())

	cfg.Chain.RPCURL = ""
	cfg.Custody = addr0.Hex()
	require.NoError(t, cfg.Validate(), "custody is only bound to the vault key when signing on chain")

	cfg = valid()
	cfg.SpreadFeeBps = 501
	require.ErrorIs(t, cfg.Validate(), fiatbridge.ErrFeeTooHigh)
}

func TestEngineOptionsAndLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Owner = addr0.Hex()
	cfg.LogLevel = "debug"

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
	assert.True(t, cfg.Logger().Enabled(t.Context(), slog.LevelDebug))

	assert.Len(t, cfg.EngineOptions(nil), 2)
	cfg.Custody = addr1.Hex()
	assert.Len(t, cfg.EngineOptions(slog.Default()), 4)

	_, err = cfg.DialTokens(t.Context())
	require.Error(t, err)
}
