package clock

import (
	"fmt"
	"sync"
)

// Registry owns the clock handles of a platform.
type Registry struct {
	lock   sync.RWMutex
	clks   []*Clk
	byName map[string]*Clk
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Clk)}
}

// Register adds clocks to the registry. Names must be unique.
func (r *Registry) Register(clks ...*Clk) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, c := range clks {
		if _, found := r.byName[c.Name()]; found {
			return fmt.Errorf("clock %s already registered", c.Name())
		}

		r.byName[c.Name()] = c
		r.clks = append(r.clks, c)
	}

	return nil
}

// Lookup finds a clock by name.
func (r *Registry) Lookup(name string) (*Clk, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	c, ok := r.byName[name]

	return c, ok
}

// Clocks returns the registered clocks in registration order.
func (r *Registry) Clocks() []*Clk {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return append([]*Clk(nil), r.clks...)
}

// HandoffAll runs the handoff of every clock once, in registration order.
func (r *Registry) HandoffAll() map[string]HandoffState {
	states := make(map[string]HandoffState)
	for _, c := range r.Clocks() {
		states[c.Name()] = c.Handoff()
	}

	return states
}
