package observability

import (
	"context"
	"sort"
	"sync"
)

// HealthProbe reports whether a dependency or subsystem is healthy.
type HealthProbe func(ctx context.Context) error

// HealthRegistry tracks named health probes and runs them on demand.
type HealthRegistry struct {
	mu     sync.Mutex
	probes map[string]HealthProbe
}

// NewHealthRegistry returns an empty registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{probes: make(map[string]HealthProbe)}
}

// Register adds or replaces a named probe.
func (r *HealthRegistry) Register(name string, probe HealthProbe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes[name] = probe
}

// Unregister removes a named probe.
func (r *HealthRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.probes, name)
}

// CheckAll runs every registered probe and returns the error (nil on
// success) for each, keyed by probe name.
func (r *HealthRegistry) CheckAll(ctx context.Context) map[string]error {
	r.mu.Lock()
	names := make([]string, 0, len(r.probes))
	probes := make(map[string]HealthProbe, len(r.probes))
	for name, p := range r.probes {
		names = append(names, name)
		probes[name] = p
	}
	r.mu.Unlock()

	sort.Strings(names)
	results := make(map[string]error, len(names))
	for _, name := range names {
		results[name] = probes[name](ctx)
	}
	return results
}

// Healthy reports whether every registered probe currently passes.
func (r *HealthRegistry) Healthy(ctx context.Context) bool {
	for _, err := range r.CheckAll(ctx) {
		if err != nil {
			return false
		}
	}
	return true
}
