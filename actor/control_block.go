package actor

import (
	"sync"
	"sync/atomic"

	"github.com/deqinio/actorcore/mailbox"
)

// lifecycleState is the coarse run state of a control block (spec §4.7).
type lifecycleState uint8

const (
	stateRunning lifecycleState = iota
	stateTerminating
	stateTerminated
)

// ControlBlock is the actor control block described in spec §3: identity,
// mailbox, behavior stack, pending-response table, timeout tracker, credit
// state and link/monitor bookkeeping, all owned by exactly one goroutine
// at a time (the resumable driver or the detached driver — never both).
type ControlBlock struct {
	id     ActorID
	name   string
	engine *Engine
	refs   *refCounts

	mbox *mailbox.Mailbox

	mu        sync.Mutex // guards behaviors/pending/timeout/flow/links below
	behaviors behaviorStack
	pending   *pendingTable
	timeout   timeoutTracker
	flow      *flowControl

	monitors map[ActorID]*Ref
	links    map[ActorID]*Ref
	groups   map[string]struct{}

	state      atomic.Uint32 // lifecycleState
	exitReason atomic.Value  // error
}

func newControlBlock(engine *Engine, id ActorID, name string, opts mailbox.Options) *ControlBlock {
	maxCredit, lowWatermark := engine.flowDefaults()
	cb := &ControlBlock{
		id:      id,
		name:    name,
		engine:  engine,
		refs:    newRefCounts(),
		mbox:    mailbox.New(opts),
		pending: newPendingTable(),
		flow:    newFlowControl(maxCredit, lowWatermark),

		monitors: make(map[ActorID]*Ref),
		links:    make(map[ActorID]*Ref),
		groups:   make(map[string]struct{}),
	}
	return cb
}

const (
	defaultMaxCredit    = 256
	defaultLowWatermark = 32
)

// Ref returns a new strong Ref to this control block.
func (cb *ControlBlock) Ref() *Ref {
	cb.refs.acquireStrong()
	return &Ref{id: cb.id, engine: cb.engine}
}

// weakRef returns an address-only Ref without affecting the strong count.
func (cb *ControlBlock) weakRef() *Ref {
	return &Ref{id: cb.id, engine: cb.engine}
}

func (cb *ControlBlock) isAlive() bool {
	return lifecycleState(cb.state.Load()) == stateRunning
}

// doBecome implements spec §4.2: push a new behavior, optionally replacing
// (discarding) the current top instead of stacking on top of it. The
// mailbox cache is retried immediately after so skipped envelopes get a
// chance under the new behavior (handled by the resumable driver after
// this call returns; doBecome itself only mutates the stack).
func (cb *ControlBlock) doBecome(b *Behavior, discardOld bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if discardOld && !cb.behaviors.empty() {
		cb.behaviors.pop()
	}
	cb.behaviors.push(b)
	cb.rearmIdleTimeout(b)
}

func (cb *ControlBlock) rearmIdleTimeout(b *Behavior) {
	cb.timeout.disarm()
	if b != nil && b.idleTimeout > 0 {
		gen := cb.timeout.arm(b.idleTimeout)
		cb.engine.scheduleTimeout(cb.weakRef(), b.idleTimeout, gen)
	}
}

// currentBehavior returns the active behavior, or nil if the stack is
// empty (an actor with nothing left to do but drain system messages).
func (cb *ControlBlock) currentBehavior() *Behavior {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.behaviors.top()
}

// priorityAware reports whether the active behavior wants priority-ordered
// mailbox extraction.
func (cb *ControlBlock) priorityAware() bool {
	b := cb.currentBehavior()
	return b != nil && b.priorityAware
}

func (cb *ControlBlock) setExitReason(err error) {
	cb.exitReason.Store(exitBox{err})
}

func (cb *ControlBlock) getExitReason() error {
	v, _ := cb.exitReason.Load().(exitBox)
	return v.err
}

// exitBox wraps an error so a nil error can still be stored in an
// atomic.Value (which rejects untyped nil).
type exitBox struct{ err error }
