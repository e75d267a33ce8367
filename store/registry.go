package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Options are handed to every driver factory.
type Options struct {
	// Logger receives driver logs. Nil means the global logger.
	Logger *zap.Logger
	// Materializer builds restored files. Nil means DefaultMaterializer.
	Materializer Materializer
}

// MaterializerOrDefault returns o.Materializer or DefaultMaterializer.
func (o Options) MaterializerOrDefault() Materializer {
	if o.Materializer != nil {
		return o.Materializer
	}
	return DefaultMaterializer
}

// Factory builds a driver bound to a settings accessor.
type Factory func(ctx context.Context, s Settings, opts Options) (Driver, error)

type registration struct {
	desc    Descriptor
	factory Factory
}

// Registry maps plugin names to backend types. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register adds a backend type. Registering the same plugin twice fails.
func (r *Registry) Register(desc Descriptor, factory Factory) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	if factory == nil {
		return fmt.Errorf("factory for plugin %s cannot be nil", desc.Plugin)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[desc.Plugin]; exists {
		return fmt.Errorf("plugin %s is already registered", desc.Plugin)
	}
	r.entries[desc.Plugin] = registration{desc: desc, factory: factory}
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(desc Descriptor, factory Factory) {
	if err := r.Register(desc, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor registered under plugin.
func (r *Registry) Lookup(plugin string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[plugin]
	return reg.desc, ok
}

// Descriptors lists registered backends ordered by tier, then plugin name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	descs := make([]Descriptor, 0, len(r.entries))
	for _, reg := range r.entries {
		descs = append(descs, reg.desc)
	}
	r.mu.RUnlock()

	sort.Slice(descs, func(i, j int) bool {
		if descs[i].StorageTier.Rank() != descs[j].StorageTier.Rank() {
			return descs[i].StorageTier.Rank() < descs[j].StorageTier.Rank()
		}
		return descs[i].Plugin < descs[j].Plugin
	})
	return descs
}

// Open builds the driver registered under plugin.
func (r *Registry) Open(ctx context.Context, plugin string, s Settings, opts Options) (Driver, error) {
	r.mu.RLock()
	reg, ok := r.entries[plugin]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown storage plugin: %s", plugin)
	}

	d, err := reg.factory(ctx, s, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", plugin, err)
	}
	if d.PluginName() != plugin {
		return nil, fmt.Errorf("factory for %s returned driver %s", plugin, d.PluginName())
	}
	return d, nil
}

// OpenEnabled builds every plugin whose "enabled" setting is not false, in
// Descriptors order. Plugins that fail to open are skipped and reported in
// the returned error.
func (r *Registry) OpenEnabled(ctx context.Context, s Settings, opts Options) ([]Driver, error) {
	var drivers []Driver
	var errs []error
	for _, desc := range r.Descriptors() {
		if !Enabled(s, desc.Plugin) {
			continue
		}
		d, err := r.Open(ctx, desc.Plugin, s, opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		drivers = append(drivers, d)
	}
	return drivers, errors.Join(errs...)
}
