package actor

import "sync"

// detachedDriver runs one control block on its own private goroutine
// instead of a shared pool slot (spec §4.5 "detached actors"): it blocks
// on the mailbox directly rather than yielding after a throughput budget,
// trading pool fairness for a dedicated thread of execution. A condition
// variable lets WaitExited observe the exact moment the goroutine has
// actually exited, rather than merely having been asked to.
type detachedDriver struct {
	cb *ControlBlock

	mu      sync.Mutex
	cond    *sync.Cond
	exited  bool
	started bool
}

func newDetachedDriver(cb *ControlBlock) *detachedDriver {
	d := &detachedDriver{cb: cb}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Start launches the private goroutine. Safe to call once.
func (d *detachedDriver) Start() {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()
	go d.run()
}

func (d *detachedDriver) run() {
	defer d.markExited()
	for {
		if !d.cb.isAlive() {
			return
		}
		menv, ok := d.cb.mbox.NextMessage(d.cb.priorityAware())
		if !ok {
			if !d.cb.mbox.Wait() {
				return // mailbox closed with nothing left
			}
			continue
		}
		before := d.cb.currentBehavior()
		if !d.cb.execEvent(menv) {
			return
		}
		if after := d.cb.currentBehavior(); after != before {
			d.cb.retrySkipped()
		}
	}
}

func (d *detachedDriver) markExited() {
	d.mu.Lock()
	d.exited = true
	d.cond.Broadcast()
	d.mu.Unlock()
}

// WaitExited blocks until the private goroutine has returned.
// Engine.terminate calls it on a goroutine of its own, so teardown does
// not wait for the detached goroutine to exit.
func (d *detachedDriver) WaitExited() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for !d.exited {
		d.cond.Wait()
	}
}
