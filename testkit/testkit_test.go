package testkit

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/deqinio/actorcore/actor"
	"github.com/deqinio/actorcore/internal/workerpool"
	"github.com/deqinio/actorcore/transport"
)

func TestProbe(t *testing.T) {
	p := NewProbe(t, 1)
	_ = p.Chan()
	p.Put(1)
	if got := p.Expect(50 * time.Millisecond); got.(int) != 1 {
		t.Fatalf("unexpected: %#v", got)
	}
	p.ExpectNoMessage(10 * time.Millisecond)
	NewProbe(t, 0).ExpectNoMessage(0)

	var failed int
	p.fail = func(string, ...any) { failed++ }
	if v := p.Expect(5 * time.Millisecond); v != nil || failed != 1 {
		t.Fatalf("expected timeout failure")
	}
	p.Put(2)
	if v := p.Expect(0); v.(int) != 2 {
		t.Fatalf("expected 2")
	}
	p.Put("x")
	p.ExpectNoMessage(5 * time.Millisecond)
	if failed != 2 {
		t.Fatalf("expected unexpected-message failure")
	}
}

func TestFakeClock(t *testing.T) {
	c := NewFakeClock(time.Unix(0, 0))
	_ = c.Now()
	_ = NewFakeClock(time.Time{}).Now()
	ch := c.After(10 * time.Second)
	c.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatalf("should not fire")
	default:
	}
	c.Advance(2 * time.Second)
	select {
	case <-ch:
	default:
		t.Fatalf("should fire")
	}
}

func TestNewActorProbe(t *testing.T) {
	pool := workerpool.New(2)
	defer func() { _ = pool.Close() }()
	e := actor.NewEngine(pool, nil, nil)

	p, ref := NewActorProbe(t, e, 1)
	if err := ref.Tell(nil, "hi", actor.SendOptions{}); err != nil {
		t.Fatalf("tell: %v", err)
	}
	p.ExpectMsg(time.Second, "hi")
	p.ExpectNoMessage(10 * time.Millisecond)
}

type fakeTransport struct {
	sent int
	err  error
}

func (f *fakeTransport) Listen(addr string) (string, error) { return addr, nil }
func (f *fakeTransport) Dial(addr string) error              { return nil }
func (f *fakeTransport) Close() error                        { return nil }
func (f *fakeTransport) Send(addr string, env transport.WireEnvelope) error {
	f.sent++
	return f.err
}

func TestChaosTransportDropsAndForwards(t *testing.T) {
	inner := &fakeTransport{}
	ct := &ChaosTransport{Inner: inner, Chaos: Chaos{DropProbability: 1, Rand: rand.New(rand.NewSource(1))}}
	if err := ct.Send("peer", transport.WireEnvelope{}); !errors.Is(err, ErrChaosDropped) {
		t.Fatalf("expected drop, got %v", err)
	}
	if inner.sent != 0 {
		t.Fatalf("dropped send should never reach inner")
	}

	ct.Chaos = Chaos{DropProbability: 0, Rand: rand.New(rand.NewSource(1))}
	inner.err = errors.New("boom")
	if err := ct.Send("peer", transport.WireEnvelope{}); !errors.Is(err, inner.err) {
		t.Fatalf("expected forwarded error, got %v", err)
	}
	if inner.sent != 1 {
		t.Fatalf("expected one forwarded send, got %d", inner.sent)
	}
}

func TestFakeClockDrivesBreaker(t *testing.T) {
	c := NewFakeClock(time.Time{})
	b := actor.NewCircuitBreaker(1, 10*time.Second)
	if !c.AllowBreaker(b) {
		t.Fatalf("should allow while closed")
	}
	c.FailBreaker(b)
	if c.AllowBreaker(b) {
		t.Fatalf("should be open right after the threshold failure")
	}
	c.Advance(11 * time.Second)
	if !c.AllowBreaker(b) {
		t.Fatalf("should allow the half-open probe once openFor has elapsed")
	}
	if c.AllowBreaker(b) {
		t.Fatalf("should only allow a single half-open probe")
	}
}

func TestChaos(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	c := Chaos{DropProbability: 1, MaxDelay: 0, Rand: r}
	called := false
	if ok := c.Apply(func() { called = true }); ok || called {
		t.Fatalf("expected drop")
	}
	c = Chaos{DropProbability: 0, MaxDelay: 50 * time.Microsecond, Rand: r}
	if ok := c.Apply(func() { called = true }); !ok || !called {
		t.Fatalf("expected call")
	}
	c = Chaos{DropProbability: 0, MaxDelay: 0, Rand: nil}
	if ok := c.Apply(func() {}); !ok {
		t.Fatalf("expected ok")
	}
}
