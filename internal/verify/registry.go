package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rob-kingsbury/ui-explorer/internal/expect"
	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// Registry holds the configured adapters, keyed by name, and manages their
// shared lifecycle: connect all at run start, capture around actions,
// disconnect at run end.
type Registry struct {
	adapters map[string]Adapter
	order    []string
	logger   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets a custom logger for the registry.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty adapter registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Register adds an adapter under its name. Registration order is preserved
// for deterministic connect and disconnect sequences.
func (r *Registry) Register(a Adapter) error {
	name := a.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateAdapter, name)
	}
	r.adapters[name] = a
	r.order = append(r.order, name)
	return nil
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.adapters)
}

// Names returns the adapter names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Lookup returns the adapter registered under the given name.
func (r *Registry) Lookup(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// Verifier adapts Lookup to the expectation engine's narrow interface.
func (r *Registry) Verifier(name string) (expect.Verifier, bool) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, false
	}
	return a, true
}

// ConnectAll connects every registered adapter, in registration order.
// The first failure aborts and returns: an adapter that cannot connect is
// an explicit misconfiguration that must fail the whole run, not produce a
// report full of vacuous verification failures.
func (r *Registry) ConnectAll(ctx context.Context) error {
	for _, name := range r.order {
		if err := r.adapters[name].Connect(ctx); err != nil {
			return fmt.Errorf("connect adapter %q: %w", name, err)
		}
		r.logger.Debug("adapter connected", "adapter", name)
	}
	return nil
}

// CaptureAll snapshots every adapter concurrently and returns the captures
// keyed by adapter name. Capture calls are read-only and independent, so
// they may overlap; the call returns only after every adapter finished, so
// the transition that depends on the snapshots never records early.
//
// A failed capture is logged and omitted from the result rather than
// failing the action: the expectation that needed it will report the
// missing snapshot on its own terms.
func (r *Registry) CaptureAll(ctx context.Context) map[string]model.AdapterSnapshot {
	if len(r.adapters) == 0 {
		return nil
	}

	var mu sync.Mutex
	snapshots := make(map[string]model.AdapterSnapshot, len(r.adapters))

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range r.order {
		a := r.adapters[name]
		g.Go(func() error {
			snap, err := a.CaptureState(ctx)
			if err != nil {
				r.logger.Warn("adapter capture failed", "adapter", a.Name(), "error", err)
				return nil // degrade, never abort the group
			}
			mu.Lock()
			snapshots[a.Name()] = snap
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers only ever return nil

	return snapshots
}

// DisconnectAll disconnects every adapter, in registration order.
// Best-effort: failures are logged and the remaining adapters still get
// their disconnect call.
func (r *Registry) DisconnectAll(ctx context.Context) {
	for _, name := range r.order {
		if err := r.adapters[name].Disconnect(ctx); err != nil {
			r.logger.Warn("adapter disconnect failed", "adapter", name, "error", err)
		}
	}
}
