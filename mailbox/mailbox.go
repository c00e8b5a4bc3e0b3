// Package mailbox implements the multi-producer/single-consumer envelope
// queue used by every actor control block: a lock-free arrival-order queue
// feeding a two-segment cache that materializes priority ordering and holds
// messages a behavior has skipped for later reconsideration.
package mailbox

import "errors"

// ErrClosed is returned by Enqueue once the mailbox has been closed.
var ErrClosed = errors.New("mailbox closed")

// Priority controls materialization order within next_message. Envelopes of
// equal priority are delivered in arrival order.
type Priority uint8

const (
	// Low is the default priority channel.
	Low Priority = iota
	// High overtakes Low envelopes at dequeue time only; it does not
	// reorder anything already queued ahead of it.
	High
)

// Envelope is the unit of exchange carried by the mailbox. The dispatch
// pipeline (package actor) attaches its own routing metadata to Meta.
type Envelope struct {
	Priority Priority
	Payload  any
	Meta     any
}

// Options configures a new Mailbox.
type Options struct {
	// Capacity is the per-segment capacity of the underlying lock-free
	// queue. Defaults to 4096.
	Capacity uint64
	// MaxSegments bounds how many segments the queue may grow to before
	// Enqueue reports the mailbox full. Defaults to 64 (unbounded for all
	// practical purposes; segments are cheap and reclaimed as they drain).
	MaxSegments uint64

	// EncodeForPersist, if non-nil, is consulted on every Enqueue to decide
	// whether (and how) an envelope should be durably recorded before it
	// becomes visible to the actor. Returning ok=false (the default for
	// anything EncodeForPersist declines, e.g. an envelope whose payload
	// carries an unencodable Ref) skips persistence for that envelope. The
	// wire format is deliberately left to the caller — package persistence
	// and a Serializer own that choice, not the mailbox.
	EncodeForPersist func(Envelope) (data []byte, ok bool)
	// Persist, if non-nil, is called with the encoded form of every
	// envelope EncodeForPersist accepts, before that envelope is enqueued.
	// A non-nil error fails the Enqueue call outright, matching
	// write-ahead semantics: nothing becomes visible to the actor unless
	// it was first durably recorded.
	Persist func([]byte) error

	// Seed pre-loads envelopes into the raw queue at construction, ahead
	// of anything Enqueue will ever add — e.g. a backlog decoded back out
	// of package persistence's write-ahead log when an actor is restarted.
	// Seeded envelopes bypass EncodeForPersist/Persist; they were already
	// durable once, and re-persisting them on replay would duplicate the
	// record on the next crash.
	Seed []Envelope
}

// Mailbox is a single actor's inbox: a lock-free MPSC queue in strict
// arrival order, plus a two-segment cache consumed only by the owning
// actor (so the cache itself needs no synchronization).
type Mailbox struct {
	raw *SegmentedQueue[Envelope]

	blocked chan struct{} // replaced on every successful try_block
	notify  chan struct{}
	closed  chan struct{}

	cache cache

	encode  func(Envelope) ([]byte, bool)
	persist func([]byte) error
}

// New constructs a Mailbox with the given options.
func New(opts Options) *Mailbox {
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = 4096
	}
	ms := opts.MaxSegments
	if ms == 0 {
		ms = 64
	}
	m := &Mailbox{
		raw:     NewSegmentedQueue[Envelope](capacity, ms),
		notify:  make(chan struct{}, 1),
		closed:  make(chan struct{}),
		encode:  opts.EncodeForPersist,
		persist: opts.Persist,
	}
	for _, env := range opts.Seed {
		m.raw.Enqueue(&env)
	}
	if len(opts.Seed) > 0 {
		select {
		case m.notify <- struct{}{}:
		default:
		}
	}
	return m
}

// Closed reports (via channel close) that the mailbox has been closed.
func (m *Mailbox) Closed() <-chan struct{} { return m.closed }

// IsClosed reports whether Close has already run.
func (m *Mailbox) IsClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// Enqueue pushes an envelope. It reports unblocked=true when the mailbox
// transitioned from empty-and-blocked to nonempty, which is the caller's
// signal to reschedule the actor (spec §4.1, §5 "Rescheduling").
func (m *Mailbox) Enqueue(env Envelope) (unblocked bool, err error) {
	if m.IsClosed() {
		return false, ErrClosed
	}
	if m.persist != nil && m.encode != nil {
		if data, ok := m.encode(env); ok {
			if err := m.persist(data); err != nil {
				return false, err
			}
		}
	}
	if !m.raw.Enqueue(&env) {
		return false, errors.New("mailbox full")
	}
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return m.clearBlocked(), nil
}

// TryBlock atomically marks the mailbox blocked iff nothing is left to
// dispatch (raw queue and the cache's first segment both empty), returning
// whether the transition succeeded. Envelopes parked in the second (skip)
// segment do not prevent blocking: they wait for a behavior change, not for
// another resume. A wakeup token left behind by an earlier Enqueue is
// discarded. A later Enqueue unblocks it.
func (m *Mailbox) TryBlock() bool {
	if len(m.cache.first) > 0 || m.raw.ApproxLen() > 0 {
		return false
	}
	select {
	case <-m.notify:
	default:
	}
	if m.blocked != nil {
		select {
		case <-m.blocked:
		default:
			return false
		}
	}
	m.blocked = make(chan struct{})
	return true
}

func (m *Mailbox) clearBlocked() bool {
	if m.blocked == nil {
		return false
	}
	select {
	case <-m.blocked:
		return false
	default:
		close(m.blocked)
		return true
	}
}

// Wait blocks the caller until a message arrives or the mailbox closes.
// Used by the detached/blocking driver; cooperative drivers use TryBlock
// plus external rescheduling instead.
func (m *Mailbox) Wait() bool {
	select {
	case <-m.notify:
		return true
	case <-m.closed:
		return false
	}
}

// Close is idempotent. Every envelope still queued (raw queue plus both
// cache segments) is handed to bouncer so the caller can fail pending
// requests; bouncer may be nil to simply drop them.
func (m *Mailbox) Close(bouncer func(Envelope)) {
	if m.IsClosed() {
		return
	}
	close(m.closed)
	for {
		env, ok := m.raw.Dequeue()
		if !ok {
			break
		}
		if bouncer != nil {
			bouncer(*env)
		}
	}
	for _, env := range m.cache.drainAll() {
		if bouncer != nil {
			bouncer(env)
		}
	}
}

// Len reports the approximate number of envelopes still waiting, counting
// both the raw queue and the cache.
func (m *Mailbox) Len() int64 {
	return int64(m.raw.ApproxLen()) + int64(m.cache.len())
}

// NextMessage implements spec §4.1's priority-aware dequeue. When
// priorityAware is true, every currently queued raw envelope is drained
// into the cache's first segment, partitioned so all High-priority
// envelopes precede Low ones while preserving arrival order within each
// class, and the head of that segment is returned. Non-priority-aware
// actors first take whatever the first segment still holds, then dequeue
// the raw queue directly, in strict arrival order.
func (m *Mailbox) NextMessage(priorityAware bool) (Envelope, bool) {
	if env, ok := m.cache.popFirst(); ok {
		return env, true
	}
	if !priorityAware {
		if env, ok := m.raw.Dequeue(); ok {
			return *env, true
		}
		return Envelope{}, false
	}
	drained := m.drainRaw()
	if len(drained) == 0 {
		return Envelope{}, false
	}
	m.cache.fillFirst(drained)
	return m.cache.popFirst()
}

func (m *Mailbox) drainRaw() []Envelope {
	var out []Envelope
	for {
		env, ok := m.raw.Dequeue()
		if !ok {
			return out
		}
		out = append(out, *env)
	}
}

// PushSkip moves an envelope a handler declined into the cache's second
// segment, preserving arrival order within its priority class (spec §4.1
// "Cache skip policy").
func (m *Mailbox) PushSkip(env Envelope) { m.cache.pushSecond(env) }

// RetrySkipped scans the second segment in order, invoking try for each
// envelope. Envelopes try reports as still unconsumed are restored to the
// cache (at the correct partition position) for the next retry pass; this
// implements spec §4.1/§4.4's invoke_from_cache.
func (m *Mailbox) RetrySkipped(try func(Envelope) bool) {
	pending := m.cache.drainSecond()
	for _, env := range pending {
		if !try(env) {
			m.cache.pushSecond(env)
		}
	}
}
