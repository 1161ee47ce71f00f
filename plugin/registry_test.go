package plugin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/plugin"
	"github.com/xraph/fiatbridge/transaction"
	"github.com/xraph/fiatbridge/types"
)

type recorder struct {
	name string

	mu     sync.Mutex
	calls  []string
	failOn string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) record(hook string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, hook)
	if hook == r.failOn {
		return errors.New("hook failed")
	}
	return nil
}

func (r *recorder) OnTransactionInitiated(context.Context, *transaction.Transaction) error {
	return r.record("initiated")
}

func (r *recorder) OnTransactionCompleted(context.Context, *transaction.Transaction, types.Amount) error {
	return r.record("completed")
}

func (r *recorder) OnEvent(context.Context, *event.Event) error {
	return r.record("event")
}

type slowPlugin struct{}

func (slowPlugin) Name() string { return "slow" }

func (slowPlugin) OnPauseChanged(ctx context.Context, _ bool) error {
	time.Sleep(200 * time.Millisecond)
	return nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&recorder{name: "a"}))
	require.Error(t, r.Register(&recorder{name: "a"}))
	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("a"))
	assert.Nil(t, r.Get("missing"))
}

func TestEmitDispatchesOnlyImplementedHooks(t *testing.T) {
	ctx := context.Background()
	r := plugin.NewRegistry()
	rec := &recorder{name: "rec"}
	require.NoError(t, r.Register(rec))

	r.EmitTransactionInitiated(ctx, &transaction.Transaction{})
	r.EmitTransactionCompleted(ctx, &transaction.Transaction{}, types.NewAmount(1))
	r.EmitTransactionRefunded(ctx, &transaction.Transaction{})
	r.EmitEvent(ctx, &event.Event{Type: event.Paused})
	r.EmitTokenSupportChanged(ctx, common.Address{}, true)

	assert.Equal(t, []string{"initiated", "completed", "event"}, rec.calls)
}

func TestEmitContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	r := plugin.NewRegistry()
	first := &recorder{name: "first", failOn: "event"}
	second := &recorder{name: "second"}
	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	r.EmitEvent(ctx, &event.Event{})

	assert.Equal(t, []string{"event"}, first.calls)
	assert.Equal(t, []string{"event"}, second.calls)
}

func TestEmitTimesOut(t *testing.T) {
	r := plugin.NewRegistry().WithTimeout(10 * time.Millisecond)
	require.NoError(t, r.Register(slowPlugin{}))

	start := time.Now()
	r.EmitPauseChanged(context.Background(), true)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}
