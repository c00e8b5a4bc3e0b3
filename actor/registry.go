package actor

import "sync"

// Registry is the process-wide name lookup the engine consumes as a
// collaborator rather than reaching for a global (spec §9 design notes:
// "Process-wide registry and delayed scheduler. Passed in as interfaces;
// the core never reaches for globals."). Engine delegates every
// name<->id binding to whatever Registry it was constructed with.
type Registry interface {
	// Register binds name to id. Registering an empty name is a no-op.
	Register(id ActorID, name string)
	// Unregister removes whatever binding id holds, if any.
	Unregister(id ActorID)
	// Lookup resolves name to the id last registered under it.
	Lookup(name string) (ActorID, bool)
}

// InProcessRegistry is the default Registry: a plain mutex-protected map,
// good for a single Engine in a single process. package group's
// SQLGroup/LocalGroup cover the cluster-wide and durable membership
// cases; a multi-process deployment of this engine would plug in an
// equivalent Registry backed by the same storage.
type InProcessRegistry struct {
	mu     sync.RWMutex
	byName map[string]ActorID
	byID   map[ActorID]string
}

// NewInProcessRegistry creates a new, empty in-process registry.
func NewInProcessRegistry() *InProcessRegistry {
	return &InProcessRegistry{
		byName: make(map[string]ActorID),
		byID:   make(map[ActorID]string),
	}
}

// Register implements Registry.
func (r *InProcessRegistry) Register(id ActorID, name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byID[id]; ok && old != name && r.byName[old] == id {
		delete(r.byName, old)
	}
	r.byName[name] = id
	r.byID[id] = name
}

// Unregister implements Registry.
func (r *InProcessRegistry) Unregister(id ActorID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name, ok := r.byID[id]; ok {
		delete(r.byName, name)
		delete(r.byID, id)
	}
}

// Lookup implements Registry.
func (r *InProcessRegistry) Lookup(name string) (ActorID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Snapshot returns a point-in-time copy of every name currently bound,
// keyed by id, for diagnostic tooling that wants to walk every registered
// actor without holding the registry lock.
func (r *InProcessRegistry) Snapshot() map[ActorID]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ActorID]string, len(r.byID))
	for id, name := range r.byID {
		out[id] = name
	}
	return out
}
