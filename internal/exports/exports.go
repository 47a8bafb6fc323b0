// Package exports assembles named handler packs into the export table
// of a connector.
package exports

import (
	"fmt"
	"sync"

	"github.com/danmuck/bridgectl/internal/bridge"
)

// Pack contributes a named set of export handlers.
type Pack interface {
	Name() string
	Exports() map[string]bridge.Handler
}

// Registry collects packs for one process. It starts empty and is owned
// by the process's top-level wiring.
type Registry struct {
	mu    sync.RWMutex
	packs map[string]Pack
}

func NewRegistry() *Registry {
	return &Registry{packs: make(map[string]Pack)}
}

func (r *Registry) Register(p Pack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packs[p.Name()] = p
}

func (r *Registry) Get(name string) (Pack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packs[name]
	return p, ok
}

// Table merges every registered pack into one export table. Two packs
// exporting the same function name is a wiring error.
func (r *Registry) Table() (map[string]bridge.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bridge.Handler)
	for packName, p := range r.packs {
		for name, handler := range p.Exports() {
			if _, exists := out[name]; exists {
				return nil, fmt.Errorf("exports: duplicate export %q from pack %q", name, packName)
			}
			out[name] = handler
		}
	}
	return out, nil
}
