// Package workerpool implements actor.Scheduler on top of a fixed group of
// goroutines managed by golang.org/x/sync/errgroup, giving every engine a
// bounded-fan-out execution strategy for resumable control blocks.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deqinio/actorcore/actor"
)

// throughput is the per-resume() envelope budget handed to every control
// block this pool runs. It starts at 32 and can be retuned at runtime by
// SetThroughput, e.g. from config.Watch's hot-reload loop.
var throughput atomic.Int64

func init() { throughput.Store(32) }

// SetThroughput overrides the per-resume() budget for every subsequent
// runOnce call. Values <= 0 are ignored.
func SetThroughput(n int) {
	if n > 0 {
		throughput.Store(int64(n))
	}
}

// CurrentThroughput returns the budget currently in effect.
func CurrentThroughput() int { return int(throughput.Load()) }

// Pool is a fixed-size worker pool: Size goroutines pull runnable control
// blocks off a shared job queue and call resume() on them, re-enqueueing
// any block that still has work left after its throughput budget runs out.
type Pool struct {
	jobs   chan *actor.ControlBlock
	group  *errgroup.Group
	cancel context.CancelFunc

	timersMu sync.Mutex
	timers   []*time.Timer
}

// New starts a Pool with size worker goroutines. size defaults to 1 if
// given as zero or negative.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	p := &Pool{
		jobs:   make(chan *actor.ControlBlock, size*4),
		group:  g,
		cancel: cancel,
	}
	for i := 0; i < size; i++ {
		g.Go(func() error {
			return p.worker(ctx)
		})
	}
	return p
}

func (p *Pool) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cb, ok := <-p.jobs:
			if !ok {
				return nil
			}
			p.runOnce(cb)
		}
	}
}

func (p *Pool) runOnce(cb *actor.ControlBlock) {
	if cb.Resume(CurrentThroughput()) {
		p.Schedule(cb)
	}
}

// Schedule implements actor.Scheduler.
func (p *Pool) Schedule(cb *actor.ControlBlock) {
	select {
	case p.jobs <- cb:
	default:
		// Job queue is momentarily full; spawn a short-lived goroutine
		// rather than dropping work or blocking the caller (which may
		// itself be a pool worker mid-delivery).
		go func() { p.jobs <- cb }()
	}
}

// ScheduleAfter implements actor.Scheduler using a plain time.Timer.
func (p *Pool) ScheduleAfter(d time.Duration, fn func()) {
	t := time.AfterFunc(d, fn)
	p.timersMu.Lock()
	p.timers = append(p.timers, t)
	p.timersMu.Unlock()
}

// Close stops accepting new jobs, cancels outstanding timers, and waits
// for every worker goroutine to drain.
func (p *Pool) Close() error {
	p.cancel()
	close(p.jobs)
	p.timersMu.Lock()
	for _, t := range p.timers {
		t.Stop()
	}
	p.timersMu.Unlock()
	return p.group.Wait()
}
