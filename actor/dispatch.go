package actor

import "github.com/deqinio/actorcore/mailbox"

// classify implements spec §4.3's envelope classification: every envelope
// pulled off the mailbox is sorted into exactly one of five buckets before
// a single line of user code runs.
func classify(cb *ControlBlock, env Envelope) envelopeClass {
	if env.ID.IsResponse() {
		return classResponse
	}
	switch p := env.Payload.(type) {
	case sysTimeout:
		if cb.timeoutIsLive(p.Generation) {
			return classActiveTimeout
		}
		return classExpiredTimeout
	case sysInfoRequest, sysAddSource, sysDelSource, sysGetCredit, ExitMsg, DownMsg, ErrorMsg:
		return classSystemMessage
	default:
		return classOrdinary
	}
}

func (cb *ControlBlock) timeoutIsLive(gen uint32) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.timeout.isLive(gen)
}

// execEvent runs exactly one envelope pulled directly off the mailbox
// through the classification pipeline and applies its outcome, returning
// false once the actor has decided to terminate (spec §4.3/§4.4
// exec_single_event). A skip result re-queues the envelope into the
// mailbox's cache for later reconsideration.
func (cb *ControlBlock) execEvent(menv mailbox.Envelope) (alive bool) {
	if cb.engine.metrics != nil {
		cb.engine.metrics.IncIn()
	}
	consumed, alive := cb.execCached(menv)
	if !consumed && menv.Payload != nil {
		cb.mbox.PushSkip(menv)
	}
	return alive
}

// execCached runs one envelope through the pipeline without touching the
// mailbox cache itself; the caller (execEvent for a fresh dequeue,
// RetrySkipped's callback for a cached retry) decides what to do when
// consumed is false.
func (cb *ControlBlock) execCached(menv mailbox.Envelope) (consumed, alive bool) {
	env, ok := menv.Payload.(Envelope)
	if !ok {
		// A malformed mailbox entry is a bug in the engine, not the actor's
		// to silently drop (spec §9 resolved open question).
		cb.fail(ErrUnhandledException)
		return true, false
	}

	switch classify(cb, env) {
	case classResponse:
		return cb.handleResponse(env)
	case classSystemMessage:
		return cb.handleSystemMessage(env)
	case classActiveTimeout:
		return cb.handleActiveTimeout(env)
	case classExpiredTimeout:
		return true, cb.isAlive()
	default:
		return cb.handleOrdinary(env)
	}
}

func (cb *ControlBlock) handleOrdinary(env Envelope) (consumed, alive bool) {
	b := cb.currentBehavior()
	if b == nil {
		cb.fail(ErrUnexpectedMessage)
		return true, false
	}
	ctx := &Context{engine: cb.engine, self: cb, sender: env.Sender, id: env.ID, stages: env.Stages}
	res := b.dispatch(ctx, env.Payload)
	return cb.applyResult(res)
}

func (cb *ControlBlock) handleResponse(env Envelope) (consumed, alive bool) {
	cb.mu.Lock()
	entry, ok := cb.pending.resolve(env.ID)
	cb.mu.Unlock()
	if !ok {
		// No one is waiting for this response anymore (already timed out);
		// this is not an error, just a stale answer.
		return true, cb.isAlive()
	}
	rp, _ := env.Payload.(responsePayload)
	ctx := &Context{engine: cb.engine, self: cb, sender: env.Sender, id: env.ID}
	res := entry.onValue(ctx, rp.Value, rp.Err)
	return cb.applyResult(res)
}

func (cb *ControlBlock) handleActiveTimeout(env Envelope) (consumed, alive bool) {
	t := env.Payload.(sysTimeout)
	cb.mu.Lock()
	entry, ok := cb.pending.expireByGeneration(t.Generation)
	cb.mu.Unlock()
	if ok {
		ctx := &Context{engine: cb.engine, self: cb}
		res := entry.onValue(ctx, nil, ErrRequestTimeout)
		return cb.applyResult(res)
	}

	b := cb.currentBehavior()
	if b != nil && b.onIdle != nil {
		ctx := &Context{engine: cb.engine, self: cb}
		b.onIdle(ctx)
	}
	return true, cb.isAlive()
}

func (cb *ControlBlock) handleSystemMessage(env Envelope) (consumed, alive bool) {
	switch p := env.Payload.(type) {
	case sysInfoRequest:
		ctx := &Context{engine: cb.engine, self: cb, sender: env.Sender, id: env.ID}
		ctx.Respond(sysInfoReply{ID: cb.id, Name: cb.name}, nil)
		return true, true
	case sysAddSource:
		if env.Sender != nil {
			cb.mu.Lock()
			cb.flow.addSource(env.Sender)
			cb.mu.Unlock()
		}
		return true, true
	case sysDelSource:
		cb.mu.Lock()
		cb.flow.delSource(p.Source)
		cb.mu.Unlock()
		return true, true
	case sysGetCredit:
		if env.Sender != nil {
			cb.mu.Lock()
			cb.flow.onCreditGranted(env.Sender, p.N)
			cb.mu.Unlock()
		}
		return true, true
	case ExitMsg:
		if p.Reason == ErrKilled {
			cb.fail(ErrKilled)
			return true, false
		}
		return cb.handleOrdinary(env)
	case DownMsg, ErrorMsg:
		return cb.handleOrdinary(env)
	default:
		return true, cb.isAlive()
	}
}

// applyResult interprets a handler's HandlerResult (spec §4.3): a value
// and none both consume the envelope without sending anything (a value is
// not turned into a reply, and none runs no default handler and raises no
// ErrUnexpectedMessage); an error tears the actor down; skip leaves the
// envelope unconsumed for the caller to re-queue.
func (cb *ControlBlock) applyResult(res HandlerResult) (consumed, alive bool) {
	switch res.Kind {
	case resultValue, resultNone:
		return true, cb.isAlive()
	case resultError:
		cb.fail(res.Err)
		return true, false
	case resultSkip:
		return false, cb.isAlive()
	default:
		return true, cb.isAlive()
	}
}

// fail tears the control block down with reason err, notifying monitors
// and linked peers (spec §4.7).
func (cb *ControlBlock) fail(err error) {
	if !cb.state.CompareAndSwap(uint32(stateRunning), uint32(stateTerminating)) {
		return
	}
	cb.setExitReason(err)
	cb.engine.terminate(cb, err)
}
