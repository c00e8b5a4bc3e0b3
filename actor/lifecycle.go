package actor

import "github.com/deqinio/actorcore/mailbox"

// Monitor registers watcher to receive a DownMsg when cb terminates (spec
// §4.7 "monitor/demonitor"). Idempotent: monitoring twice has the effect
// of monitoring once. If cb has already terminated, the DownMsg is sent
// immediately instead of being lost.
func (cb *ControlBlock) Monitor(watcher *Ref) {
	if !cb.isAlive() {
		watcher.Tell(cb.weakRef(), DownMsg{Source: cb.weakRef(), Reason: cb.getExitReason()}, SendOptions{})
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.monitors[watcher.ID()] = watcher
}

// Demonitor is idempotent: removing a watcher that was never registered
// (or already removed) is a no-op.
func (cb *ControlBlock) Demonitor(watcher *Ref) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	delete(cb.monitors, watcher.ID())
}

// Link establishes a bidirectional exit-propagation relationship: if
// either side terminates, the other receives an ExitMsg (spec §4.7
// "link/unlink"). Callers are expected to call Link on both ends, mirroring
// the teacher's symmetric linking convention.
func (cb *ControlBlock) Link(peer *Ref) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.links[peer.ID()] = peer
}

// Unlink is idempotent.
func (cb *ControlBlock) Unlink(peer *Ref) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	delete(cb.links, peer.ID())
}

// JoinGroup adds cb's membership to the named group via the engine's group
// provider (spec §3 "group membership"). Idempotent.
func (cb *ControlBlock) JoinGroup(name string) error {
	cb.mu.Lock()
	_, already := cb.groups[name]
	cb.mu.Unlock()
	if already {
		return nil
	}
	if err := cb.engine.joinGroup(name, cb.weakRef()); err != nil {
		return err
	}
	cb.mu.Lock()
	cb.groups[name] = struct{}{}
	cb.mu.Unlock()
	return nil
}

// LeaveGroup is idempotent.
func (cb *ControlBlock) LeaveGroup(name string) error {
	cb.mu.Lock()
	_, member := cb.groups[name]
	cb.mu.Unlock()
	if !member {
		return nil
	}
	if err := cb.engine.leaveGroup(name, cb.weakRef()); err != nil {
		return err
	}
	cb.mu.Lock()
	delete(cb.groups, name)
	cb.mu.Unlock()
	return nil
}

// Quit terminates the actor with reason (ErrUserExit when reason is nil);
// no exit handler is consulted. Idempotent: quitting an already-terminating
// actor has no further effect.
func (cb *ControlBlock) Quit(reason error) {
	if reason == nil {
		reason = ErrUserExit
	}
	cb.fail(reason)
}

// cleanup runs exactly once per control block, releasing groups, notifying
// monitors and linked peers, and closing the mailbox so any sender still
// queued behind it fails fast (spec §4.7 "cleanup").
func (cb *ControlBlock) cleanup(reason error) {
	cb.mu.Lock()
	groups := make([]string, 0, len(cb.groups))
	for g := range cb.groups {
		groups = append(groups, g)
	}
	monitors := make([]*Ref, 0, len(cb.monitors))
	for _, r := range cb.monitors {
		monitors = append(monitors, r)
	}
	links := make([]*Ref, 0, len(cb.links))
	for _, r := range cb.links {
		links = append(links, r)
	}
	cb.mu.Unlock()

	for _, g := range groups {
		_ = cb.engine.leaveGroup(g, cb.weakRef())
	}
	self := cb.weakRef()
	for _, m := range monitors {
		m.Tell(self, DownMsg{Source: self, Reason: reason}, SendOptions{})
	}
	for _, l := range links {
		l.Tell(self, ExitMsg{Source: self, Reason: reason}, SendOptions{})
	}

	cb.mbox.Close(func(env mailbox.Envelope) {
		cb.bounce(env, reason)
	})
	cb.state.Store(uint32(stateTerminated))
	cb.engine.unregister(cb.id)
}

// bounce fails a sender whose request was still queued when the mailbox
// closed (spec §4.7 "bounced requests").
func (cb *ControlBlock) bounce(env mailbox.Envelope, reason error) {
	aenv, ok := env.Payload.(Envelope)
	if !ok || aenv.Sender == nil || !aenv.ID.Valid() || aenv.ID.IsResponse() {
		return
	}
	resp := Envelope{
		Payload: responsePayload{Err: ErrQueueClosed},
		Sender:  cb.weakRef(),
		ID:      aenv.ID.AsResponse().WithHighPriority(),
	}
	_ = cb.engine.deliver(aenv.Sender, resp)
}
