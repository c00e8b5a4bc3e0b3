package actor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/deqinio/actorcore/mailbox"
)

// futureResult stores the value a Future completed with.
type futureResult[T any] struct {
	v T
}

// Future is a minimal, dependency-free promise: it completes exactly
// once, supports both callback registration and blocking wait, and backs
// the non-blocking half of Ask for callers that want to keep working
// while a response is outstanding.
type Future[T any] struct {
	ch     chan T
	done   atomic.Bool
	result atomic.Value

	cbMu      sync.Mutex
	callbacks []func(T)
}

// newFuture creates a new, incomplete Future.
func newFuture[T any]() *Future[T] {
	return &Future[T]{ch: make(chan T, 1)}
}

// complete resolves the Future with v. A second call is a no-op.
func (f *Future[T]) complete(v T) {
	if f.done.Swap(true) {
		return
	}
	f.result.Store(&futureResult[T]{v: v})
	f.ch <- v
	close(f.ch)
	f.cbMu.Lock()
	cbs := append([]func(T){}, f.callbacks...)
	f.callbacks = nil
	f.cbMu.Unlock()
	for _, cb := range cbs {
		cb(v)
	}
}

// OnComplete registers cb to run when the Future completes. If it has
// already completed, cb runs immediately on the calling goroutine.
func (f *Future[T]) OnComplete(cb func(T)) {
	if f.done.Load() {
		r, _ := f.result.Load().(*futureResult[T])
		if r != nil {
			cb(r.v)
		}
		return
	}
	f.cbMu.Lock()
	f.callbacks = append(f.callbacks, cb)
	f.cbMu.Unlock()
}

// Await blocks until the Future completes or timeout elapses (timeout<=0
// waits indefinitely), reporting ok=false on timeout.
func (f *Future[T]) Await(timeout time.Duration) (v T, ok bool) {
	var zero T
	if f.done.Load() {
		r, _ := f.result.Load().(*futureResult[T])
		if r == nil {
			return zero, false
		}
		return r.v, true
	}
	if timeout <= 0 {
		v, ok := <-f.ch
		return v, ok
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v, ok := <-f.ch:
		return v, ok
	case <-timer.C:
		return zero, false
	}
}

// Then maps a completed Future[A] into a Future[B] via fn, letting async
// request/response chains compose.
func Then[A any, B any](fa *Future[A], fn func(A) B) *Future[B] {
	fb := newFuture[B]()
	fa.OnComplete(func(a A) { fb.complete(fn(a)) })
	return fb
}

// All waits for every input Future to complete and returns their results
// in input order. An empty input list completes immediately with nil.
func All[T any](fs ...*Future[T]) *Future[[]T] {
	out := newFuture[[]T]()
	if len(fs) == 0 {
		out.complete(nil)
		return out
	}
	var (
		mu   sync.Mutex
		left = int32(len(fs))
		vals = make([]T, len(fs))
	)
	for i, f := range fs {
		i, f := i, f
		f.OnComplete(func(v T) {
			mu.Lock()
			vals[i] = v
			mu.Unlock()
			if atomic.AddInt32(&left, -1) == 0 {
				out.complete(vals)
			}
		})
	}
	return out
}

// AskAsync is the non-blocking counterpart to Ask: it returns a Future
// that completes the moment the response (or timeout) arrives, instead of
// blocking the calling goroutine.
func AskAsync(engine *Engine, target *Ref, msg any, opts AskOptions) *Future[askResult] {
	f := newFuture[askResult]()
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultAskTimeout
	}

	b := NewBehavior()
	ref, err := engine.Spawn("", b, mailbox.Options{}, true)
	if err != nil {
		f.complete(askResult{err: err})
		return f
	}
	guard, _ := engine.lookupBlock(ref.ID())

	onValue := func(ctx *Context, value any, rerr error) HandlerResult {
		f.complete(askResult{value: value, err: rerr})
		ctx.self.doQuitAsync()
		return Value(nil)
	}
	if err := guard.request(engine, target, msg, AskOptions{Timeout: timeout, HighPriority: opts.HighPriority}, true, onValue); err != nil {
		f.complete(askResult{err: err})
		guard.doQuitAsync()
	}
	return f
}
