package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiatbridge"
	audithook "github.com/xraph/fiatbridge/audit_hook"
	"github.com/xraph/fiatbridge/id"
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

type collector struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (c *collector) Record(_ context.Context, e *audithook.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Action
	}
	return out
}

func (c *collector) last() *audithook.AuditEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

func newBridge(t *testing.T, ext *audithook.Extension) (*fiatbridge.Bridge, *memtoken.Token, *fiatbridge.ManualClock) {
	t.Helper()
	ctx := context.Background()

	bank := memtoken.NewBank(custody)
	tk := bank.Deploy(usdc, "USDC", 6)
	tk.Mint(user, types.NewAmount(10_000))
	tk.Approve(user, custody, types.NewAmount(10_000))

	clock := fiatbridge.NewManualClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	b := fiatbridge.New(memory.New(), owner, bank,
		fiatbridge.WithClock(clock),
		fiatbridge.WithCustody(custody),
		fiatbridge.WithPlugin(ext),
	)
	require.NoError(t, b.Start(ctx))
	return b, tk, clock
}

func TestExtension_RecordsLifecycle(t *testing.T) {
	ctx := context.Background()
	rec := &collector{}
	b, _, clock := newBridge(t, audithook.New(rec))

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
	require.NoError(t, b.UpdateSpreadFee(ctx, owner, 50))
	require.NoError(t, b.Pause(ctx, owner))

	assert.Equal(t, []string{
		audithook.ActionTokenAdded,
		audithook.ActionPermissionGranted,
		audithook.ActionTransactionInitiated,
		audithook.ActionTransactionInitiated,
		audithook.ActionTransactionCompleted,
		audithook.ActionTransactionRefunded,
		audithook.ActionFeesWithdrawn,
		audithook.ActionSpreadFeeUpdated,
		audithook.ActionBridgePaused,
	}, rec.actions())

	paused := rec.last()
	assert.Equal(t, id.PrefixAudit, paused.ID.Prefix())
	assert.Equal(t, audithook.SeverityWarning, paused.Severity)
	assert.Equal(t, true, paused.Metadata["paused"])
}

func TestExtension_RecordsFailures(t *testing.T) {
	ctx := context.Background()
	rec := &collector{}
	b, tk, _ := newBridge(t, audithook.New(rec))
	require.NoError(t, b.AddSupportedToken(ctx, owner, usdc))
	_, err := b.GrantPermission(ctx, user, usdc, types.NewAmount(5000), time.Hour)
	require.NoError(t, err)

	_, err = b.InitiateTransaction(ctx, user, usdc, types.NewAmount(6000), time.Minute)
	require.ErrorIs(t, err, fiatbridge.ErrAmountExceedsLimit)

	rejected := rec.last()
	assert.Equal(t, audithook.ActionOperationRejected, rejected.Action)
	assert.Equal(t, audithook.OutcomeFailure, rejected.Outcome)
	assert.Equal(t, audithook.CategoryEscrow, rejected.Category)
	assert.Equal(t, "validation", rejected.Metadata["kind"])
	assert.Contains(t, rejected.Reason, "amount exceeds limit")

	tk.FailNext(errors.New("rpc down"))
	_, err = b.InitiateTransaction(ctx, user, usdc, types.NewAmount(100), time.Minute)
	require.Error(t, err)

	failed := rec.last()
	assert.Equal(t, audithook.ActionTransferFailed, failed.Action)
	assert.Equal(t, audithook.SeverityError, failed.Severity)
}

func TestExtension_EnabledActions(t *testing.T) {
	ctx := context.Background()
	rec := &collector{}
	b, _, _ := newBridge(t, audithook.New(rec, audithook.WithEnabledActions(audithook.ActionBridgePaused)))

	require.NoError(t, b.AddSupportedToken(ctx, owner, usdc))
	require.NoError(t, b.Pause(ctx, owner))
	require.NoError(t, b.Unpause(ctx, owner))

	assert.Equal(t, []string{audithook.ActionBridgePaused}, rec.actions())
}

func TestExtension_DisabledActions(t *testing.T) {
	ctx := context.Background()
	rec := &collector{}
	b, _, _ := newBridge(t, audithook.New(rec, audithook.WithDisabledActions(audithook.ActionTokenAdded)))

	require.NoError(t, b.AddSupportedToken(ctx, owner, usdc))
	require.NoError(t, b.Pause(ctx, owner))

	assert.Equal(t, []string{audithook.ActionBridgePaused}, rec.actions())
}

func TestExtension_RecorderErrorIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))

	assert.NoError(t, ext.OnPauseChanged(context.Background(), true))
}
