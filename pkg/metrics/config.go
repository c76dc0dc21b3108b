package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Labels are attached as constant labels to every metric. They take
	// effect when the Registry above is first resolved; later Resolve calls
	// for the same Registerer reuse the existing collectors.
	Labels prometheus.Labels
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Registry: prometheus.DefaultRegisterer,
		Labels:   nil,
	}
}

var (
	resolvedMu sync.Mutex
	resolved   = make(map[prometheus.Registerer]*Registry)
)

// Resolve returns the Registry to record against for this config, or nil
// when metrics are disabled. A custom Registerer gets its own Registry so
// collectors are not double-registered against the default one. Each
// Registerer is resolved at most once; components sharing a config share
// the resulting collectors.
func (c Config) Resolve() *Registry {
	if !c.Enabled {
		return nil
	}
	if c.Registry == nil || c.Registry == prometheus.DefaultRegisterer {
		return DefaultRegistry
	}
	resolvedMu.Lock()
	defer resolvedMu.Unlock()
	if r, ok := resolved[c.Registry]; ok {
		return r
	}
	reg := c.Registry
	if len(c.Labels) > 0 {
		reg = prometheus.WrapRegistererWith(c.Labels, reg)
	}
	r := NewRegistry(reg)
	resolved[c.Registry] = r
	return r
}
