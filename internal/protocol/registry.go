package protocol

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps protocol names to implementations. The built-in
// protocols register themselves at init; the CLI resolves names
// through the default registry.
type Registry struct {
	mu        sync.RWMutex
	protocols map[string]Protocol
}

func NewRegistry() *Registry {
	return &Registry{protocols: make(map[string]Protocol)}
}

// Register adds a protocol. Registering the same name twice panics;
// duplicate registration is a programming error caught at startup.
func (r *Registry) Register(p Protocol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Name()
	if _, dup := r.protocols[name]; dup {
		panic(fmt.Sprintf("protocol %q registered twice", name))
	}
	r.protocols[name] = p
}

// Get resolves a protocol by name.
func (r *Registry) Get(name string) (Protocol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.protocols[name]
	if !ok {
		return nil, fmt.Errorf("unknown protocol %q (have: %v)", name, r.names())
	}
	return p, nil
}

// Names returns registered protocol names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	out := make([]string, 0, len(r.protocols))
	for name := range r.protocols {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Default is the process-wide registry the built-in protocols
// register into.
var Default = NewRegistry()
