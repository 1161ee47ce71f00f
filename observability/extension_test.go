package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiatbridge"
	"github.com/xraph/fiatbridge/observability"
	"github.com/xraph/fiatbridge/store/memory"
	"github.com/xraph/fiatbridge/token/memtoken"
	"github.com/xraph/fiatbridge/types"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	custody = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	user    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	usdc    = common.HexToAddress("0x0000000000000000000000000000000000000d01")
)

func counterValue(t *testing.T, c observability.Counter) float64 {
	t.Helper()
	pc, ok := c.(prometheus.Counter)
	require.True(t, ok, "counter is not a prometheus.Counter")
	return testutil.ToFloat64(pc)
}

func sampleCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatalf("metric %q not registered", name)
	return 0
}

func TestMetricsExtension_CountsLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	ext := observability.NewMetricsExtension(observability.NewPrometheusFactory("", reg))

	bank := memtoken.NewBank(custody)
	tk := bank.Deploy(usdc, "USDC", 6)
	tk.Mint(user, types.NewAmount(10_000))
	tk.Approve(user, custody, types.NewAmount(10_000))

	clock := fiatbridge.NewManualClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	b := fiatbridge.New(memory.New(), owner, bank,
		fiatbridge.WithClock(clock),
		fiatbridge.WithCustody(custody),
		fiatbridge.WithSpreadFee(100),
		fiatbridge.WithPlugin(ext),
	)
	require.NoError(t, b.Start(ctx))

	require.NoError(t, b.AddSupportedToken(ctx, owner, usdc))
	_, err := b.GrantPermission(ctx, user, usdc, types.NewAmount(5000), time.Hour)
	require.NoError(t, err)

	a, err := b.InitiateTransaction(ctx, user, usdc, types.NewAmount(1000), time.Minute)
	require.NoError(t, err)
	c, err := b.InitiateTransaction(ctx, user, usdc, types.NewAmount(500), time.Hour)
	require.NoError(t, err)
	_, err = b.CompleteTransaction(ctx, owner, c.ID, types.NewAmount(100))
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = b.ClaimExpiredLock(ctx, user, a.ID)
	require.NoError(t, err)
	require.NoError(t, b.WithdrawFees(ctx, owner, usdc, types.NewAmount(15)))

	// Rejections.
	_, err = b.InitiateTransaction(ctx, user, usdc, types.NewAmount(0), time.Minute)
	require.ErrorIs(t, err, fiatbridge.ErrAmountMustBePositive)
	require.ErrorIs(t, b.Pause(ctx, user), fiatbridge.ErrNotOwner)
	tk.FailNext(errors.New("rpc down"))
	_, err = b.InitiateTransaction(ctx, user, usdc, types.NewAmount(10), time.Minute)
	require.ErrorIs(t, err, fiatbridge.ErrTransferFailed)

	require.NoError(t, b.Pause(ctx, owner))
	require.NoError(t, b.Unpause(ctx, owner))
	require.NoError(t, b.UpdateSpreadFee(ctx, owner, 50))
	require.NoError(t, b.RemoveSupportedToken(ctx, owner, usdc))

	assert.Equal(t, 1.0, counterValue(t, ext.PermissionsGranted))
	assert.Equal(t, 2.0, counterValue(t, ext.TransactionsInitiated))
	assert.Equal(t, 1.0, counterValue(t, ext.TransactionsCompleted))
	assert.Equal(t, 1.0, counterValue(t, ext.TransactionsRefunded))
	assert.Equal(t, 1.0, counterValue(t, ext.FeesWithdrawn))
	assert.Equal(t, 1.0, counterValue(t, ext.TokensAdded))
	assert.Equal(t, 1.0, counterValue(t, ext.TokensRemoved))
	assert.Equal(t, 1.0, counterValue(t, ext.SpreadFeeUpdates))
	assert.Equal(t, 2.0, counterValue(t, ext.PauseTransitions))
	assert.Equal(t, 1.0, counterValue(t, ext.OperationsRejected))
	assert.Equal(t, 1.0, counterValue(t, ext.AuthFailures))
	assert.Equal(t, 1.0, counterValue(t, ext.TransferFailures))

	assert.Equal(t, uint64(2), sampleCount(t, reg, "fiatbridge_transaction_locked_amount"))
	assert.Equal(t, uint64(2), sampleCount(t, reg, "fiatbridge_transaction_refund_amount"))
	assert.Equal(t, uint64(1), sampleCount(t, reg, "fiatbridge_transaction_spent_amount"))
}

func TestPrometheusFactory_ReusesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory("app", reg)

	c1 := f.Counter("fiatbridge.transaction.initiated")
	c2 := f.Counter("fiatbridge.transaction.initiated")
	c1.Inc()
	c2.Add(2)
	assert.Same(t, c1, c2)
	assert.Equal(t, 3.0, testutil.ToFloat64(c1.(prometheus.Counter)))

	h1 := f.Histogram("fiatbridge.transaction.fee_amount")
	h2 := f.Histogram("fiatbridge.transaction.fee_amount")
	assert.Same(t, h1, h2)

	n, err := testutil.GatherAndCount(reg, "app_fiatbridge_transaction_initiated_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
