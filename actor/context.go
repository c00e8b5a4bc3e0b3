package actor

// Context is handed to every handler invocation. It exposes the receiving
// actor, the sender (if any), and the in-flight message id so a handler
// can reply, delegate, or inspect priority/flow-control flags.
type Context struct {
	engine *Engine
	self   *ControlBlock
	sender *Ref
	id     MessageID
	stages []*Ref
}

// Self returns a Ref to the actor currently handling the message.
func (c *Context) Self() *Ref { return c.self.Ref() }

// Sender returns the sender recorded on the current envelope, or nil for
// anonymous sends.
func (c *Context) Sender() *Ref { return c.sender }

// MessageID returns the current envelope's id (zero if this is not part
// of a request/response exchange).
func (c *Context) MessageID() MessageID { return c.id }

// Become installs a new behavior, optionally discarding the current one
// first (spec §4.2 do_become).
func (c *Context) Become(b *Behavior, discardOld bool) {
	c.self.doBecome(b, discardOld)
}

// Respond answers the in-flight request. If there are forwarding stages
// recorded on the envelope (a delegated request), the response is routed
// to the next stage instead of the original sender. Respond is a no-op
// outside of request handling (id is invalid) or when the sender is
// unknown.
func (c *Context) Respond(value any, err error) {
	if !c.id.Valid() || c.sender == nil {
		return
	}
	respID := c.id.AsResponse()
	target := c.sender
	stages := c.stages
	if len(stages) > 0 {
		target = stages[0]
		stages = stages[1:]
	}
	env := Envelope{
		Payload: responsePayload{Value: value, Err: err},
		Sender:  c.self.Ref(),
		ID:      respID.WithHighPriority(),
		Stages:  stages,
	}
	_ = c.engine.deliver(target, env)
}

// Delegate forwards the in-flight request to target, appending this actor
// to the forwarding chain so the eventual response bounces back through
// this actor first (spec §3 "forwarding stages").
func (c *Context) Delegate(target *Ref, msg any) error {
	if !c.id.Valid() {
		return ErrActorNotFound
	}
	stages := append(append([]*Ref{}, c.stages...), c.self.Ref())
	env := Envelope{
		Payload: msg,
		Sender:  c.sender,
		ID:      c.id,
		Stages:  stages,
	}
	return c.engine.deliver(target, env)
}

// responsePayload wraps a handler's reply value/error for routing through
// the pending-response table at the receiving end.
type responsePayload struct {
	Value any
	Err   error
}
