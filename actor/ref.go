package actor

import "sync/atomic"

// Ref is an address-only handle to an actor: it carries just enough to
// route a message (an id and the engine that can resolve it), mirroring
// spec §3's "weak refcount for address-only references". A Ref can
// outlive the actor body it names; sending to a dead actor's Ref simply
// fails to resolve.
type Ref struct {
	id     ActorID
	engine *Engine
}

// ID returns the referenced actor's id.
func (r *Ref) ID() ActorID { return r.id }

// Tell sends a one-way message to the referenced actor, using from as the
// sender recorded on the envelope (may be nil for anonymous sends).
func (r *Ref) Tell(from *Ref, msg any, opts SendOptions) error {
	if r == nil || r.engine == nil {
		return ErrActorNotFound
	}
	return r.engine.tell(from, r, msg, opts)
}

// refCounts implements the strong/weak liveness bookkeeping from spec §3:
// the control block survives (stays registered, resolvable by id) until
// the weak count reaches zero; the actor body — its mailbox, goroutine and
// handlers — is torn down once the strong count reaches zero.
type refCounts struct {
	strong atomic.Int64
	weak   atomic.Int64
}

func newRefCounts() *refCounts {
	rc := &refCounts{}
	rc.strong.Store(1)
	rc.weak.Store(1)
	return rc
}

// acquireStrong records a new strong holder and reports the updated count.
func (rc *refCounts) acquireStrong() int64 { return rc.strong.Add(1) }

// releaseStrong drops a strong holder, returning true exactly once, the
// moment the count reaches zero (the actor body should be torn down).
func (rc *refCounts) releaseStrong() bool { return rc.strong.Add(-1) == 0 }

func (rc *refCounts) acquireWeak() int64 { return rc.weak.Add(1) }

// releaseWeak drops a weak holder, returning true exactly once, the moment
// the count reaches zero (the control block can be forgotten entirely).
func (rc *refCounts) releaseWeak() bool { return rc.weak.Add(-1) == 0 }
