package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/fiatbridge/event"
	"github.com/xraph/fiatbridge/permission"
	"github.com/xraph/fiatbridge/transaction"
	"github.com/xraph/fiatbridge/types"
)

// DefaultTimeout bounds each hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages registered plugins and dispatches hooks to them.
// Hook lists are cached by type at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                 []OnInit
	onShutdown             []OnShutdown
	onPermissionGranted    []OnPermissionGranted
	onTransactionInitiated []OnTransactionInitiated
	onTransactionCompleted []OnTransactionCompleted
	onTransactionRefunded  []OnTransactionRefunded
	onFeesWithdrawn        []OnFeesWithdrawn
	onTokenSupportChanged  []OnTokenSupportChanged
	onSpreadFeeUpdated     []OnSpreadFeeUpdated
	onPauseChanged         []OnPauseChanged
	onEvent                []OnEvent
	onOperationFailed      []OnOperationFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin and caches the hooks it implements.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnPermissionGranted); ok {
		r.onPermissionGranted = append(r.onPermissionGranted, v)
	}
	if v, ok := p.(OnTransactionInitiated); ok {
		r.onTransactionInitiated = append(r.onTransactionInitiated, v)
	}
	if v, ok := p.(OnTransactionCompleted); ok {
		r.onTransactionCompleted = append(r.onTransactionCompleted, v)
	}
	if v, ok := p.(OnTransactionRefunded); ok {
		r.onTransactionRefunded = append(r.onTransactionRefunded, v)
	}
	if v, ok := p.(OnFeesWithdrawn); ok {
		r.onFeesWithdrawn = append(r.onFeesWithdrawn, v)
	}
	if v, ok := p.(OnTokenSupportChanged); ok {
		r.onTokenSupportChanged = append(r.onTokenSupportChanged, v)
	}
	if v, ok := p.(OnSpreadFeeUpdated); ok {
		r.onSpreadFeeUpdated = append(r.onSpreadFeeUpdated, v)
	}
	if v, ok := p.(OnPauseChanged); ok {
		r.onPauseChanged = append(r.onPauseChanged, v)
	}
	if v, ok := p.(OnEvent); ok {
		r.onEvent = append(r.onEvent, v)
	}
	if v, ok := p.(OnOperationFailed); ok {
		r.onOperationFailed = append(r.onOperationFailed, v)
	}

	r.logger.Debug("plugin registered", "plugin", p.Name())

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, bridge interface{}) {
	emit(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, bridge)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitPermissionGranted dispatches OnPermissionGranted.
func (r *Registry) EmitPermissionGranted(ctx context.Context, p *permission.Permission) {
	emit(ctx, r, "OnPermissionGranted", snapshot(r, &r.onPermissionGranted), func(h OnPermissionGranted) error {
		return h.OnPermissionGranted(ctx, p)
	})
}

// EmitTransactionInitiated dispatches OnTransactionInitiated.
func (r *Registry) EmitTransactionInitiated(ctx context.Context, tx *transaction.Transaction) {
	emit(ctx, r, "OnTransactionInitiated", snapshot(r, &r.onTransactionInitiated), func(h OnTransactionInitiated) error {
		return h.OnTransactionInitiated(ctx, tx)
	})
}

// EmitTransactionCompleted dispatches OnTransactionCompleted.
func (r *Registry) EmitTransactionCompleted(ctx context.Context, tx *transaction.Transaction, refund types.Amount) {
	emit(ctx, r, "OnTransactionCompleted", snapshot(r, &r.onTransactionCompleted), func(h OnTransactionCompleted) error {
		return h.OnTransactionCompleted(ctx, tx, refund)
	})
}

// EmitTransactionRefunded dispatches OnTransactionRefunded.
func (r *Registry) EmitTransactionRefunded(ctx context.Context, tx *transaction.Transaction) {
	emit(ctx, r, "OnTransactionRefunded", snapshot(r, &r.onTransactionRefunded), func(h OnTransactionRefunded) error {
		return h.OnTransactionRefunded(ctx, tx)
	})
}

// EmitFeesWithdrawn dispatches OnFeesWithdrawn.
func (r *Registry) EmitFeesWithdrawn(ctx context.Context, token, to common.Address, amount types.Amount) {
	emit(ctx, r, "OnFeesWithdrawn", snapshot(r, &r.onFeesWithdrawn), func(h OnFeesWithdrawn) error {
		return h.OnFeesWithdrawn(ctx, token, to, amount)
	})
}

// EmitTokenSupportChanged dispatches OnTokenSupportChanged.
func (r *Registry) EmitTokenSupportChanged(ctx context.Context, token common.Address, supported bool) {
	emit(ctx, r, "OnTokenSupportChanged", snapshot(r, &r.onTokenSupportChanged), func(h OnTokenSupportChanged) error {
		return h.OnTokenSupportChanged(ctx, token, supported)
	})
}

// EmitSpreadFeeUpdated dispatches OnSpreadFeeUpdated.
func (r *Registry) EmitSpreadFeeUpdated(ctx context.Context, oldBps, newBps uint16) {
	emit(ctx, r, "OnSpreadFeeUpdated", snapshot(r, &r.onSpreadFeeUpdated), func(h OnSpreadFeeUpdated) error {
		return h.OnSpreadFeeUpdated(ctx, oldBps, newBps)
	})
}

// EmitPauseChanged dispatches OnPauseChanged.
func (r *Registry) EmitPauseChanged(ctx context.Context, paused bool) {
	emit(ctx, r, "OnPauseChanged", snapshot(r, &r.onPauseChanged), func(h OnPauseChanged) error {
		return h.OnPauseChanged(ctx, paused)
	})
}

// EmitEvent dispatches OnEvent.
func (r *Registry) EmitEvent(ctx context.Context, e *event.Event) {
	emit(ctx, r, "OnEvent", snapshot(r, &r.onEvent), func(h OnEvent) error {
		return h.OnEvent(ctx, e)
	})
}

// EmitOperationFailed dispatches OnOperationFailed.
func (r *Registry) EmitOperationFailed(ctx context.Context, op string, opErr error) {
	emit(ctx, r, "OnOperationFailed", snapshot(r, &r.onOperationFailed), func(h OnOperationFailed) error {
		return h.OnOperationFailed(ctx, op, opErr)
	})
}

func snapshot[T Plugin](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// emit calls fn for each plugin. A failing plugin is logged and never
// interrupts the operation that triggered the hook.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, fn func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
