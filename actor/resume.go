package actor

import "github.com/deqinio/actorcore/mailbox"

// defaultThroughput bounds how many envelopes a single resume() call will
// process before yielding the goroutine back to the scheduler, preventing
// one busy actor from starving its pool-mates (spec §4.4 "throughput
// budget").
const defaultThroughput = 32

// Resume is the exported entry point a Scheduler implementation calls to
// give this control block its turn: it runs resume with the caller's
// throughput budget and reports whether there is more work left to do.
func (cb *ControlBlock) Resume(throughput int) (reschedule bool) {
	return cb.resume(throughput)
}

// resume implements spec §4.4/§5: drain up to throughput envelopes from
// the mailbox, running each through execEvent, retrying the skip cache
// after any behavior change, and returning whether the control block
// should be rescheduled (there is more work than the budget allowed).
func (cb *ControlBlock) resume(throughput int) (reschedule bool) {
	if throughput <= 0 {
		throughput = defaultThroughput
	}
	for processed := 0; processed < throughput; processed++ {
		if !cb.isAlive() {
			return false
		}
		before := cb.currentBehavior()

		menv, ok := cb.mbox.NextMessage(cb.priorityAware())
		if !ok {
			// Re-arm the blocked state so the next Enqueue reports a real
			// blocked->unblocked transition and reschedules us (spec §4.4's
			// awaiting-message outcome, §5 "Rescheduling"). TryBlock fails
			// only while undispatched envelopes remain (a concurrent Enqueue
			// raced ahead of us), and then we ask to be rescheduled;
			// envelopes parked in the skip cache do not count as work.
			return !cb.mbox.TryBlock()
		}
		if !cb.execEvent(menv) {
			return false
		}

		if after := cb.currentBehavior(); after != before {
			cb.retrySkipped()
		}
	}
	if cb.mbox.Len() > 0 {
		return true
	}
	// Throughput ran out on exactly the last queued envelope: the mailbox
	// looks drained, so re-arm blocked the same way the empty-mailbox exit
	// above does, rather than leaving it permanently unblocked.
	return !cb.mbox.TryBlock()
}

// retrySkipped re-offers every cached envelope to the (now possibly new)
// behavior, draining the second cache segment once (spec §4.4
// invoke_from_cache: a single pass per become, not a fixed-point loop —
// envelopes still declined stay cached for the next behavior change).
func (cb *ControlBlock) retrySkipped() {
	cb.mbox.RetrySkipped(func(menv mailbox.Envelope) bool {
		if !cb.isAlive() {
			return true
		}
		consumed, alive := cb.execCached(menv)
		if !alive {
			return true
		}
		return consumed
	})
}
