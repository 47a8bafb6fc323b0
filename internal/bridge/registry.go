package bridge

import (
	"strings"
	"sync"
)

// ReservedPrefix marks connector IDs and export names set aside for the
// platform itself. Third parties must namespace their own IDs; the core
// does not enforce the convention.
const ReservedPrefix = "bridge."

// Registry is the process-wide connector table for one bridge session.
// It starts empty and is owned by whoever wires the bridge; there is no
// package-level instance.
type Registry struct {
	mu         sync.Mutex
	connectors map[string]*Connector
}

func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]*Connector)}
}

// Register claims id for c. The second of two concurrent attempts for
// the same id observes ErrDuplicateConnector.
func (r *Registry) Register(id string, c *Connector) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidConnectorID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.connectors[id]; exists {
		return ErrDuplicateConnector
	}
	r.connectors[id] = c
	return nil
}

func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connectors, id)
}

func (r *Registry) Lookup(id string) (*Connector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connectors[id]
	return c, ok
}

// All returns a snapshot of the registered connectors.
func (r *Registry) All() []*Connector {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Connector, 0, len(r.connectors))
	for _, c := range r.connectors {
		out = append(out, c)
	}
	return out
}
