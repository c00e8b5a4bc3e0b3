package actor

import (
	"reflect"
	"time"
)

// resultKind distinguishes the four outcomes a handler can produce (spec
// §4.3 "its return is visited as one of: a value/message ..., an error,
// none (no match), or skip").
type resultKind uint8

const (
	resultValue resultKind = iota
	resultError
	resultNone
	resultSkip
)

// HandlerResult is what a case function or a behavior's dispatch returns.
type HandlerResult struct {
	Kind  resultKind
	Value any
	Err   error
}

// Value builds a HandlerResult that marks the message as handled. v is not
// sent anywhere: answering a request is done with Context.Respond.
func Value(v any) HandlerResult { return HandlerResult{Kind: resultValue, Value: v} }

// Fail builds a HandlerResult that reports err.
func Fail(err error) HandlerResult { return HandlerResult{Kind: resultError, Err: err} }

// NoMatch builds a HandlerResult meaning "this case does not apply".
func NoMatch() HandlerResult { return HandlerResult{Kind: resultNone} }

// Skip builds a HandlerResult meaning "cache this envelope and try again
// once the behavior changes".
func Skip() HandlerResult { return HandlerResult{Kind: resultSkip} }

// CaseFunc handles one matched message type.
type CaseFunc func(ctx *Context, msg any) HandlerResult

// ResponseFunc handles a response to a previously sent request. err is
// non-nil for ErrUnexpectedResponse/ErrRequestTimeout deliveries.
type ResponseFunc func(ctx *Context, value any, err error) HandlerResult

// Behavior is one entry of the behavior stack (spec §3 "Behavior stack"):
// an ordered set of type-matched cases, an optional default fallback, and
// an optional idle timeout with its callback.
type Behavior struct {
	cases       []behaviorCase
	idleTimeout time.Duration // 0 means "no timeout"
	onIdle      func(ctx *Context)
	// priorityAware marks actors that want High-priority envelopes
	// materialized ahead of Low ones at dequeue time.
	priorityAware bool
}

type behaviorCase struct {
	typ reflect.Type // nil matches any message not matched by an earlier case
	fn  CaseFunc
}

// NewBehavior returns an empty Behavior. Cases are added in order with On
// (matched by the message's concrete type) and OnAny (a catch-all for
// whatever no earlier case claimed).
func NewBehavior() *Behavior { return &Behavior{} }

// On registers a case matching any message whose concrete type equals the
// type of sample.
func (b *Behavior) On(sample any, fn CaseFunc) *Behavior {
	b.cases = append(b.cases, behaviorCase{typ: reflect.TypeOf(sample), fn: fn})
	return b
}

// OnAny registers a catch-all case, matching whatever no earlier case
// claimed.
func (b *Behavior) OnAny(fn CaseFunc) *Behavior {
	b.cases = append(b.cases, behaviorCase{typ: nil, fn: fn})
	return b
}

// WithIdleTimeout attaches an idle timeout and the callback to run when it
// fires while still the active behavior (spec §4.3 "Timeouts").
func (b *Behavior) WithIdleTimeout(d time.Duration, onIdle func(ctx *Context)) *Behavior {
	b.idleTimeout = d
	b.onIdle = onIdle
	return b
}

// PriorityAware marks this behavior's actor as wanting priority-aware
// mailbox extraction (spec §4.1).
func (b *Behavior) PriorityAware() *Behavior {
	b.priorityAware = true
	return b
}

// dispatch tries each case in order against msg's concrete type, returning
// the first non-none result. No match at all yields resultNone.
func (b *Behavior) dispatch(ctx *Context, msg any) HandlerResult {
	mt := reflect.TypeOf(msg)
	for _, c := range b.cases {
		if c.typ != nil && c.typ != mt {
			continue
		}
		res := c.fn(ctx, msg)
		if res.Kind != resultNone {
			return res
		}
		if c.typ == nil {
			// catch-all already ran and declined; nothing else to try.
			break
		}
	}
	return HandlerResult{Kind: resultNone}
}

// behaviorStack is the LIFO described in spec §3/§4.2.
type behaviorStack struct {
	entries []*Behavior
}

func (s *behaviorStack) empty() bool { return len(s.entries) == 0 }

func (s *behaviorStack) top() *Behavior {
	if s.empty() {
		return nil
	}
	return s.entries[len(s.entries)-1]
}

func (s *behaviorStack) push(b *Behavior) { s.entries = append(s.entries, b) }

func (s *behaviorStack) pop() {
	if s.empty() {
		return
	}
	s.entries = s.entries[:len(s.entries)-1]
}
