package actor

import (
	"time"

	"github.com/deqinio/actorcore/mailbox"
)

// Await sends msg to target and registers fn at the top of the awaited
// stack (spec §3/§4.3): an arriving response is matched against that top
// entry before the multiplexed table. Nothing is held back while the
// response is outstanding; ordinary messages and other responses keep
// being dispatched. Must be called from within a handler running on cb's
// own goroutine.
func (c *Context) Await(target *Ref, msg any, opts AskOptions, fn ResponseFunc) error {
	return c.self.request(c.engine, target, msg, opts, true, fn)
}

// Then sends msg to target and registers fn in the multiplexed table
// (spec §3/§4.3): the response is handled whenever it arrives, interleaved
// with ordinary mailbox traffic.
func (c *Context) Then(target *Ref, msg any, opts AskOptions, fn ResponseFunc) error {
	return c.self.request(c.engine, target, msg, opts, false, fn)
}

// request is the shared implementation behind Await/Then: allocate a
// request id, arm a single-shot timeout scoped to this request's own
// generation, register the pending entry, and send.
func (cb *ControlBlock) request(engine *Engine, target *Ref, msg any, opts AskOptions, awaited bool, fn ResponseFunc) error {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultAskTimeout
	}
	id := NewRequestID()
	if opts.HighPriority {
		id = id.WithHighPriority()
	}

	cb.mu.Lock()
	gen := cb.timeout.arm(timeout)
	if awaited {
		cb.pending.awaitResponse(id, fn, time.Now().Add(timeout), gen)
	} else {
		cb.pending.thenResponse(id, fn, time.Now().Add(timeout), gen)
	}
	cb.mu.Unlock()
	engine.scheduleTimeout(cb.weakRef(), timeout, gen)

	env := Envelope{Payload: msg, Sender: cb.weakRef(), ID: id}
	return engine.deliver(target, env)
}

// askResult is what the blocking Ask helper below pushes back to its
// caller through a channel.
type askResult struct {
	value any
	err   error
}

// Ask is the synchronous request/response entry point for callers that
// are not themselves running inside a control block (tests, CLI tools,
// bridges from other goroutines) — the equivalent of CAF's scoped_actor.
// It spawns a throwaway detached actor whose sole purpose is to relay the
// one response it is waiting for back over a channel, then tears itself
// down.
func Ask(engine *Engine, target *Ref, msg any, opts AskOptions) (any, error) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultAskTimeout
	}

	var breaker *CircuitBreaker
	if target != nil {
		breaker = engine.breakerFor(target.ID())
		if !breaker.Allow(time.Now()) {
			return nil, ErrCircuitOpen
		}
	}

	resultCh := make(chan askResult, 1)

	b := NewBehavior().OnAny(func(ctx *Context, m any) HandlerResult {
		resultCh <- askResult{value: m}
		ctx.self.doQuitAsync()
		return Value(nil)
	})

	ref, err := engine.Spawn("", b, mailbox.Options{}, true)
	if err != nil {
		return nil, err
	}
	guard, _ := engine.lookupBlock(ref.ID())

	onValue := func(ctx *Context, value any, rerr error) HandlerResult {
		resultCh <- askResult{value: value, err: rerr}
		ctx.self.doQuitAsync()
		return Value(nil)
	}
	if err := guard.request(engine, target, msg, AskOptions{Timeout: timeout, HighPriority: opts.HighPriority}, true, onValue); err != nil {
		return nil, err
	}

	select {
	case res := <-resultCh:
		if breaker != nil {
			if res.err != nil {
				breaker.OnFailure(time.Now())
			} else {
				breaker.OnSuccess()
			}
		}
		return res.value, res.err
	case <-time.After(timeout + time.Second):
		if breaker != nil {
			breaker.OnFailure(time.Now())
		}
		return nil, ErrRequestTimeout
	}
}

// doQuitAsync requests termination without blocking the calling handler.
func (cb *ControlBlock) doQuitAsync() { cb.Quit(ErrUserExit) }
