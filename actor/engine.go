package actor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/deqinio/actorcore/mailbox"
)

// GroupProvider backs JoinGroup/LeaveGroup/Publish (spec §3 "group
// membership"). The engine ships a trivial in-process implementation;
// package group's LocalGroup/SQLGroup satisfy the same shape for
// cluster-wide or durable membership.
type GroupProvider interface {
	Join(group string, member *Ref) error
	Leave(group string, member *Ref) error
	Members(group string) []*Ref
}

// Engine is the actor runtime container (spec §3/§5): it owns the control
// block table, the pluggable Scheduler, the pluggable Registry, and group
// membership, and is the only thing that ever touches more than one
// actor's state at a time.
type Engine struct {
	mu     sync.RWMutex
	actors map[ActorID]*ControlBlock

	scheduler Scheduler
	groups    GroupProvider
	registry  Registry
	metrics   *Metrics

	detachedMu sync.Mutex
	detached   map[ActorID]*detachedDriver

	breakerMu sync.Mutex
	breakers  map[ActorID]*CircuitBreaker

	// maxCredit/lowWatermark are the flow-control defaults every new
	// control block is built with (spec.md §3's max_credit/low_watermark).
	// Reconfigure lets an external config loader retune them for actors
	// spawned from that point on.
	maxCredit    atomic.Uint64
	lowWatermark atomic.Uint64
}

// NewEngine constructs an Engine bound to the given Scheduler. A nil
// groups provider falls back to an in-process-only implementation; a nil
// registry falls back to a fresh InProcessRegistry (spec §9 "the core
// never reaches for globals" — every Engine gets its own, not a package
// global).
func NewEngine(scheduler Scheduler, groups GroupProvider, registry Registry) *Engine {
	if groups == nil {
		groups = newInProcessGroups()
	}
	if registry == nil {
		registry = NewInProcessRegistry()
	}
	e := &Engine{
		actors:    make(map[ActorID]*ControlBlock),
		scheduler: scheduler,
		groups:    groups,
		registry:  registry,
		detached:  make(map[ActorID]*detachedDriver),
		breakers:  make(map[ActorID]*CircuitBreaker),
	}
	e.maxCredit.Store(defaultMaxCredit)
	e.lowWatermark.Store(defaultLowWatermark)
	return e
}

// Reconfigure retunes the flow-control defaults used by every control
// block spawned from this point on; actors already running keep whatever
// values they were built with. Zero values leave the corresponding knob
// unchanged.
func (e *Engine) Reconfigure(maxCredit, lowWatermark uint64) {
	if maxCredit > 0 {
		e.maxCredit.Store(maxCredit)
	}
	if lowWatermark > 0 {
		e.lowWatermark.Store(lowWatermark)
	}
}

// flowDefaults reports the flow-control defaults currently in effect.
func (e *Engine) flowDefaults() (maxCredit, lowWatermark uint64) {
	return e.maxCredit.Load(), e.lowWatermark.Load()
}

// Spawn creates a new control block running initial as its first behavior.
// A nonempty name registers it for Lookup; detached runs it on its own
// goroutine instead of the shared scheduler (spec §4.5).
func (e *Engine) Spawn(name string, initial *Behavior, opts mailbox.Options, detached bool) (*Ref, error) {
	id := NewActorID()
	cb := newControlBlock(e, id, name, opts)
	if initial != nil {
		cb.behaviors.push(initial)
		cb.rearmIdleTimeout(initial)
	}
	e.mu.Lock()
	if name != "" {
		if _, exists := e.registry.Lookup(name); exists {
			e.mu.Unlock()
			return nil, ErrActorNotFound
		}
		e.registry.Register(id, name)
	}
	e.actors[id] = cb
	e.mu.Unlock()

	if !detached {
		// Seed the blocked->unblocked transition Enqueue relies on to signal
		// "reschedule me" (spec §5 "Rescheduling"). A detached actor drives
		// itself off mbox.Wait() instead and must never be handed to the
		// shared Scheduler, so its mailbox is left unblocked permanently.
		// TryBlock reports false when opts.Seed already populated the
		// mailbox (a replayed persistence backlog) — that backlog needs
		// scheduling immediately rather than waiting on a future Enqueue.
		if !cb.mbox.TryBlock() {
			e.scheduler.Schedule(cb)
		}
	}

	if detached {
		d := newDetachedDriver(cb)
		e.detachedMu.Lock()
		e.detached[id] = d
		e.detachedMu.Unlock()
		d.Start()
	}
	return cb.Ref(), nil
}

// Lookup resolves a registered name to a Ref.
func (e *Engine) Lookup(name string) (*Ref, bool) {
	id, ok := e.registry.Lookup(name)
	if !ok {
		return nil, false
	}
	return e.refFor(id)
}

func (e *Engine) refFor(id ActorID) (*Ref, bool) {
	e.mu.RLock()
	cb, ok := e.actors[id]
	e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return cb.Ref(), true
}

func (e *Engine) lookupBlock(id ActorID) (*ControlBlock, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cb, ok := e.actors[id]
	return cb, ok
}

// tell is the one-way send path used by Ref.Tell: build an envelope from
// scratch and hand it to deliver.
func (e *Engine) tell(from, target *Ref, msg any, opts SendOptions) error {
	id := MessageID(0)
	if opts.HighPriority {
		id = id.WithHighPriority()
	}
	if opts.FlowControlled {
		id = id.WithFlowControlled()
	}
	env := Envelope{Payload: msg, Sender: from, ID: id}
	return e.deliver(target, env)
}

// deliver enqueues an already-built envelope on target's mailbox and
// reschedules it if needed. This is the single choke point every send
// path (Tell, Respond, Delegate, system messages, bounces) funnels
// through.
func (e *Engine) deliver(target *Ref, env Envelope) error {
	if target == nil {
		return ErrActorNotFound
	}
	cb, ok := e.lookupBlock(target.ID())
	if !ok {
		return ErrActorNotFound
	}
	menv := mailbox.Envelope{Payload: env, Meta: env.ID}
	if env.ID.IsHighPriority() {
		menv.Priority = mailbox.High
	}
	unblocked, err := cb.mbox.Enqueue(menv)
	if err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.IncOut()
	}
	if unblocked {
		e.scheduler.Schedule(cb)
	}
	return nil
}

// scheduleTimeout arranges for a sysTimeout envelope carrying gen to land
// back on target's own mailbox after d elapses (spec §4.3 "Timeouts").
func (e *Engine) scheduleTimeout(target *Ref, d time.Duration, gen uint32) {
	e.scheduler.ScheduleAfter(d, func() {
		env := Envelope{Payload: sysTimeout{Generation: gen}, Sender: target}
		_ = e.deliver(target, env)
	})
}

// terminate runs cleanup for cb exactly once, invoked by ControlBlock.fail.
func (e *Engine) terminate(cb *ControlBlock, reason error) {
	cb.cleanup(reason)
	e.detachedMu.Lock()
	d, ok := e.detached[cb.id]
	e.detachedMu.Unlock()
	if ok {
		go d.WaitExited()
	}
}

// unregister removes a terminated control block from the registry.
func (e *Engine) unregister(id ActorID) {
	e.mu.Lock()
	delete(e.actors, id)
	e.mu.Unlock()
	e.registry.Unregister(id)
	e.detachedMu.Lock()
	delete(e.detached, id)
	e.detachedMu.Unlock()
}

// Registry exposes the Engine's name registry.
func (e *Engine) Registry() Registry { return e.registry }

// RefByID resolves a raw ActorID to a Ref, for collaborators (package
// group's SQLGroup, package transport) that only have an id to go on —
// e.g. one read back out of a database row.
func (e *Engine) RefByID(id ActorID) (*Ref, bool) { return e.refFor(id) }

// breakerFor returns the circuit breaker guarding Ask calls targeting id,
// creating one with the default threshold/openFor (50 failures, 30s) on
// first use. Every target gets its own breaker, so one failing actor can't
// trip requests bound for any other (spec §7's fault-isolation boundary,
// applied to the synchronous Ask path the way the teacher gated its own
// Ask behind a per-target breaker).
func (e *Engine) breakerFor(id ActorID) *CircuitBreaker {
	e.breakerMu.Lock()
	defer e.breakerMu.Unlock()
	b, ok := e.breakers[id]
	if !ok {
		b = NewCircuitBreaker(50, 30*time.Second)
		e.breakers[id] = b
	}
	return b
}

func (e *Engine) joinGroup(name string, member *Ref) error { return e.groups.Join(name, member) }
func (e *Engine) leaveGroup(name string, member *Ref) error { return e.groups.Leave(name, member) }

// Publish delivers msg to every current member of group.
func (e *Engine) Publish(group string, from *Ref, msg any, opts SendOptions) {
	for _, m := range e.groups.Members(group) {
		_ = e.tell(from, m, msg, opts)
	}
}

// Close shuts down the scheduler backing this engine.
func (e *Engine) Close() error { return e.scheduler.Close() }

// inProcessGroups is the default GroupProvider: plain map, no persistence
// or cross-process fan-out (spec §3's "group membership" minus the
// cluster/durable cases, which package group's SQL-backed implementation
// covers).
type inProcessGroups struct {
	mu      sync.RWMutex
	members map[string]map[ActorID]*Ref
}

func newInProcessGroups() *inProcessGroups {
	return &inProcessGroups{members: make(map[string]map[ActorID]*Ref)}
}

func (g *inProcessGroups) Join(group string, member *Ref) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.members[group]
	if !ok {
		m = make(map[ActorID]*Ref)
		g.members[group] = m
	}
	m[member.ID()] = member
	return nil
}

func (g *inProcessGroups) Leave(group string, member *Ref) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if m, ok := g.members[group]; ok {
		delete(m, member.ID())
	}
	return nil
}

func (g *inProcessGroups) Members(group string) []*Ref {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m := g.members[group]
	out := make([]*Ref, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	return out
}
