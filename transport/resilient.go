package transport

import (
	"sync"
	"time"

	"github.com/deqinio/actorcore/actor"
)

// ResilientOptions tunes the per-peer circuit breaker and rate limiter a
// Resilient transport installs in front of a backend's Send.
type ResilientOptions struct {
	// BreakerThreshold/BreakerOpenFor configure actor.NewCircuitBreaker; zero
	// values take NewCircuitBreaker's own defaults (50 failures, 30s).
	BreakerThreshold uint64
	BreakerOpenFor   time.Duration
	// QPS/Burst configure actor.NewTokenBucket per peer address; QPS <= 0
	// disables rate limiting for that peer (every Send is allowed through).
	QPS   int64
	Burst int64
}

// Resilient wraps a Transport with a per-peer circuit breaker and token
// bucket, the same resilience primitives the teacher built for local
// Ask/Tell calls (actor/breaker.go, actor/ratelimit.go), applied here to the
// one place a remote peer's failures or a noisy neighbor can otherwise wedge
// every other peer sharing the backend's connection pool.
type Resilient struct {
	inner Transport
	opts  ResilientOptions

	mu       sync.Mutex
	breakers map[string]*actor.CircuitBreaker
	buckets  map[string]*actor.TokenBucket
}

// NewResilient wraps inner, a backend constructed by NewGRPCTransport,
// NewQUICTransport or NewKCPTransport.
func NewResilient(inner Transport, opts ResilientOptions) *Resilient {
	return &Resilient{
		inner:    inner,
		opts:     opts,
		breakers: make(map[string]*actor.CircuitBreaker),
		buckets:  make(map[string]*actor.TokenBucket),
	}
}

func (r *Resilient) Listen(addr string) (string, error) { return r.inner.Listen(addr) }
func (r *Resilient) Dial(addr string) error              { return r.inner.Dial(addr) }
func (r *Resilient) Close() error                        { return r.inner.Close() }

var _ Transport = (*Resilient)(nil)

// Send rejects with ErrCircuitOpen or ErrRateLimited without touching the
// wire once a peer has tripped its breaker or exhausted its token bucket,
// and records the outcome of every attempt that does go out. A
// high-priority envelope bypasses the token bucket but is still subject to
// the breaker, matching Engine's own per-target Ask gate.
func (r *Resilient) Send(addr string, env WireEnvelope) error {
	breaker, bucket := r.peerState(addr)
	if r.opts.QPS > 0 && !bucket.AllowMessage(env.HighPriority) {
		return ErrRateLimited
	}
	return breaker.Try(func() error { return r.inner.Send(addr, env) })
}

func (r *Resilient) peerState(addr string) (*actor.CircuitBreaker, *actor.TokenBucket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[addr]
	if !ok {
		b = actor.NewCircuitBreaker(r.opts.BreakerThreshold, r.opts.BreakerOpenFor)
		r.breakers[addr] = b
	}
	tb, ok := r.buckets[addr]
	if !ok {
		tb = actor.NewTokenBucket(r.opts.QPS, r.opts.Burst)
		r.buckets[addr] = tb
	}
	return b, tb
}
