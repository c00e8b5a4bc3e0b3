// Package group gives spec.md §6's Group collaborator (subscribe/
// unsubscribe/broadcast, deliberately kept out of the core) its concrete
// homes: an in-process LocalGroup for single-Engine use, and a
// database/sql-backed SQLGroup for deployments that need group membership
// to survive past one process.
package group

import (
	"sync"

	"github.com/deqinio/actorcore/actor"
)

// LocalGroup is a thin mutex-protected membership set, in the teacher's
// Registry style (actor/registry.go), and the default GroupProvider for
// single-process use. It is functionally identical to the Engine's own
// built-in default — this package exports the type so application code
// can hold a reference to one group's membership independently of any
// particular Engine's internal default.
type LocalGroup struct {
	mu      sync.RWMutex
	members map[string]map[actor.ActorID]*actor.Ref
}

// NewLocalGroup creates an empty LocalGroup.
func NewLocalGroup() *LocalGroup {
	return &LocalGroup{members: make(map[string]map[actor.ActorID]*actor.Ref)}
}

// Join implements actor.GroupProvider.
func (g *LocalGroup) Join(name string, member *actor.Ref) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.members[name]
	if !ok {
		m = make(map[actor.ActorID]*actor.Ref)
		g.members[name] = m
	}
	m[member.ID()] = member
	return nil
}

// Leave implements actor.GroupProvider.
func (g *LocalGroup) Leave(name string, member *actor.Ref) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.members[name]; ok {
		delete(m, member.ID())
	}
	return nil
}

// Members implements actor.GroupProvider.
func (g *LocalGroup) Members(name string) []*actor.Ref {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m := g.members[name]
	out := make([]*actor.Ref, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	return out
}
