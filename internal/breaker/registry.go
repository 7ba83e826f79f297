package breaker

import "sync"

// Registry holds one Breaker per downstream, looked up by downstream name.
// It is constructed once at startup from the configured per-downstream
// thresholds and threaded explicitly into the proxy engine.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	defaults Config
}

// NewRegistry creates a Registry. defaults are used for any downstream not
// given an explicit Config via WithDownstream.
func NewRegistry(defaults Config) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		defaults: defaults,
	}
}

// WithDownstream registers an explicit Config for a downstream, overriding
// the registry defaults. Must be called before the first Get for that
// downstream to take effect.
func (r *Registry) WithDownstream(downstream string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers[downstream] = New(downstream, cfg)
}

// Get returns the Breaker for downstream, creating one with the registry
// defaults on first access.
func (r *Registry) Get(downstream string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[downstream]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[downstream]; ok {
		return b
	}
	b = New(downstream, r.defaults)
	r.breakers[downstream] = b
	return b
}
