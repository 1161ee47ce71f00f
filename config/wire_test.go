package config_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiatbridge"
	"github.com/xraph/fiatbridge/config"
	"github.com/xraph/fiatbridge/store/memory"
	"github.com/xraph/fiatbridge/token/memtoken"
	"github.com/xraph/fiatbridge/types"
)

var (
	usdcAddr = common.HexToAddress("0x0000000000000000000000000000000000000d01")
	daiAddr  = common.HexToAddress("0x0000000000000000000000000000000000000d02")
	userAddr = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

type recordingJetStream struct {
	mu       sync.Mutex
	streams  map[string]*nats.StreamConfig
	subjects []string
}

func (r *recordingJetStream) StreamInfo(stream string, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.streams[stream]
	if !ok {
		return nil, nats.ErrStreamNotFound
	}
	return &nats.StreamInfo{Config: *cfg}, nil
}

func (r *recordingJetStream) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams[cfg.Name] = cfg
	return &nats.StreamInfo{Config: *cfg}, nil
}

func (r *recordingJetStream) Publish(subj string, _ []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subj)
	return &nats.PubAck{Stream: "test", Sequence: uint64(len(r.subjects))}, nil
}

func TestOptions_WiresMetricsAndPublisher(t *testing.T) {
	cfg := config.Default()
	cfg.Owner = addr0.Hex()
	cfg.Custody = addr1.Hex()
	cfg.MetricsNamespace = "acme"
	cfg.NATS.Stream = "ACME_BRIDGE"
	cfg.NATS.SubjectPrefix = "acme.bridge"
	cfg.Chain.Tokens = []string{usdcAddr.Hex(), daiAddr.Hex()}
	require.NoError(t, cfg.Validate())

	js := &recordingJetStream{streams: make(map[string]*nats.StreamConfig)}
	reg := prometheus.NewRegistry()
	opts, err := cfg.Options(nil, config.WithJetStream(js), config.WithRegisterer(reg))
	require.NoError(t, err)

	bank := memtoken.NewBank(addr1)
	usdc := bank.Deploy(usdcAddr, "USDC", 0)
	bank.Deploy(daiAddr, "DAI", 0)
	usdc.Mint(userAddr, types.NewAmount(10_000))
	usdc.Approve(userAddr, addr1, types.NewAmount(10_000))

	ctx := context.Background()
	b := fiatbridge.New(memory.New(), addr0, bank, append(opts, fiatbridge.WithPluginTimeout(time.Second))...)
	require.NoError(t, b.Start(ctx))
	t.Cleanup(func() { _ = b.Stop() })

	assert.NotNil(t, b.Plugins().Get("natsbus"))
	assert.NotNil(t, b.Plugins().Get("observability-metrics"))
	assert.Contains(t, js.streams, "ACME_BRIDGE")
	assert.Equal(t, []string{"acme.bridge.>"}, js.streams["ACME_BRIDGE"].Subjects)

	require.NoError(t, cfg.Bootstrap(ctx, b))
	require.NoError(t, cfg.Bootstrap(ctx, b))
	tokens, err := b.SupportedTokens(ctx)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)

	_, err = b.GrantPermission(ctx, userAddr, usdcAddr, types.NewAmount(5000), 24*time.Hour)
	require.NoError(t, err)
	_, err = b.InitiateTransaction(ctx, userAddr, usdcAddr, types.NewAmount(1000), time.Hour)
	require.NoError(t, err)

	js.mu.Lock()
	subjects := append([]string(nil), js.subjects...)
	js.mu.Unlock()
	assert.Contains(t, subjects, "acme.bridge.TransactionInitiated")

	n, err := testutil.GatherAndCount(reg, "acme_fiatbridge_transaction_initiated_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOptions_NoNATSURLSkipsPublisher(t *testing.T) {
	cfg := config.Default()
	cfg.Owner = addr0.Hex()

	opts, err := cfg.Options(nil, config.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	assert.Len(t, opts, len(cfg.EngineOptions(nil))+1)

	b := fiatbridge.New(memory.New(), addr0, memtoken.NewBank(addr0), opts...)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop() })

	assert.Nil(t, b.Plugins().Get("natsbus"))
	assert.NotNil(t, b.Plugins().Get("observability-metrics"))
}

func TestOptions_BadNATSURL(t *testing.T) {
	cfg := config.Default()
	cfg.Owner = addr0.Hex()
	cfg.NATS.URL = "nats://127.0.0.1:1"

	_, err := cfg.Options(nil, config.WithRegisterer(prometheus.NewRegistry()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: nats")
}

func TestBootstrap_RequiresOwner(t *testing.T) {
	cfg := config.Default()
	cfg.Owner = addr0.Hex()
	cfg.Chain.Tokens = []string{usdcAddr.Hex()}

	b := fiatbridge.New(memory.New(), addr0, memtoken.NewBank(addr0))
	require.NoError(t, b.Start(context.Background()))

	cfg.Owner = addr1.Hex()
	err := cfg.Bootstrap(context.Background(), b)
	assert.ErrorIs(t, err, fiatbridge.ErrNotOwner)
}
