package actor

import "time"

// SendOptions tunes a single Tell/Ask call.
type SendOptions struct {
	// HighPriority requests High mailbox priority for this envelope.
	HighPriority bool
	// FlowControlled marks this send as part of a credit-governed stream.
	FlowControlled bool
}

// AskOptions tunes a request/response exchange.
type AskOptions struct {
	Timeout      time.Duration
	HighPriority bool
}

// defaultAskTimeout is used when AskOptions.Timeout is zero.
const defaultAskTimeout = 5 * time.Second

// Scheduler is the pluggable execution strategy consumed by the engine
// (spec §4.4/§5): it owns the worker pool, deciding when and on which
// goroutine a runnable control block's resume() actually executes.
type Scheduler interface {
	// Schedule enqueues cb for a resume() pass. Called whenever a mailbox
	// transitions from empty-and-blocked to nonempty.
	Schedule(cb *ControlBlock)
	// ScheduleAfter arranges for fn to run once, after d has elapsed.
	ScheduleAfter(d time.Duration, fn func())
	// Close shuts the scheduler down, waiting for in-flight resume() calls
	// to finish.
	Close() error
}
