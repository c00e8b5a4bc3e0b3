package actor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/deqinio/actorcore/mailbox"
)

// testScheduler is a minimal Scheduler used only by this package's own
// white-box tests, so they don't need to import internal/workerpool (which
// itself imports this package and would otherwise create an import cycle).
type testScheduler struct {
	wg sync.WaitGroup
}

func (s *testScheduler) Schedule(cb *ControlBlock) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for cb.Resume(32) {
		}
	}()
}

func (s *testScheduler) ScheduleAfter(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

func (s *testScheduler) Close() error {
	s.wg.Wait()
	return nil
}

func newTestEngine() (*Engine, func()) {
	pool := &testScheduler{}
	e := NewEngine(pool, nil, nil)
	return e, func() { _ = pool.Close() }
}

func TestSpawnLookupAndTell(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()

	received := make(chan any, 1)
	b := NewBehavior().On("ping", func(ctx *Context, msg any) HandlerResult {
		received <- msg
		return Value(nil)
	})
	ref, err := e.Spawn("pinger", b, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	looked, ok := e.Lookup("pinger")
	if !ok || looked.ID() != ref.ID() {
		t.Fatalf("lookup mismatch")
	}

	if err := ref.Tell(nil, "ping", SendOptions{}); err != nil {
		t.Fatalf("tell: %v", err)
	}
	select {
	case msg := <-received:
		if msg.(string) != "ping" {
			t.Fatalf("unexpected message: %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
}

func TestSpawnDuplicateNameFails(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()
	b := NewBehavior()
	if _, err := e.Spawn("dup", b, mailbox.Options{}, false); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, err := e.Spawn("dup", b, mailbox.Options{}, false); err != ErrActorNotFound {
		t.Fatalf("expected ErrActorNotFound for duplicate name, got: %v", err)
	}
}

func TestTellToUnknownRefFails(t *testing.T) {
	var ref *Ref
	if err := ref.Tell(nil, "x", SendOptions{}); err != ErrActorNotFound {
		t.Fatalf("expected ErrActorNotFound, got: %v", err)
	}
}

func TestBecomeSwitchesHandlingAndPushOptionallyDiscards(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()

	seen := make(chan string, 4)
	second := NewBehavior().OnAny(func(ctx *Context, msg any) HandlerResult {
		seen <- "second:" + msg.(string)
		return Value(nil)
	})
	first := NewBehavior().On("switch", func(ctx *Context, msg any) HandlerResult {
		if msg != "switch" {
			return NoMatch()
		}
		ctx.Become(second, true)
		return Value(nil)
	}).OnAny(func(ctx *Context, msg any) HandlerResult {
		seen <- "first:" + msg.(string)
		return Value(nil)
	})
	ref, err := e.Spawn("switcher", first, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	_ = ref.Tell(nil, "hello", SendOptions{})
	_ = ref.Tell(nil, "switch", SendOptions{})
	_ = ref.Tell(nil, "world", SendOptions{})

	want := []string{"first:hello", "second:world"}
	for _, w := range want {
		select {
		case got := <-seen:
			if got != w {
				t.Fatalf("expected %q, got %q", w, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
}

func TestUnexpectedMessageOnEmptyBehaviorStackTerminatesActor(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()
	down := make(chan DownMsg, 1)
	watcherBehavior := NewBehavior().On(DownMsg{}, func(ctx *Context, msg any) HandlerResult {
		down <- msg.(DownMsg)
		return Value(nil)
	})
	watcherRef, err := e.Spawn("watcher", watcherBehavior, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn watcher: %v", err)
	}

	target, err := e.Spawn("empty", nil, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn empty: %v", err)
	}
	cb, ok := e.lookupBlock(target.ID())
	if !ok {
		t.Fatalf("expected control block to exist")
	}
	cb.Monitor(watcherRef)

	if err := target.Tell(nil, "anything", SendOptions{}); err != nil {
		t.Fatalf("tell: %v", err)
	}
	select {
	case msg := <-down:
		if !errors.Is(msg.Reason, ErrUnexpectedMessage) {
			t.Fatalf("expected ErrUnexpectedMessage, got: %v", msg.Reason)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for DownMsg")
	}
}

func TestQuitNotifiesMonitors(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()

	target := NewBehavior().On("quit", func(ctx *Context, msg any) HandlerResult {
		ctx.self.Quit(nil)
		return Value(nil)
	})
	ref, err := e.Spawn("victim", target, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	down := make(chan DownMsg, 1)
	watcher := NewBehavior().On(DownMsg{}, func(ctx *Context, msg any) HandlerResult {
		down <- msg.(DownMsg)
		return Value(nil)
	})
	watcherRef, err := e.Spawn("watcher2", watcher, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn watcher: %v", err)
	}
	cb, _ := e.lookupBlock(ref.ID())
	cb.Monitor(watcherRef)

	_ = ref.Tell(nil, "quit", SendOptions{})
	select {
	case msg := <-down:
		if !errors.Is(msg.Reason, ErrUserExit) {
			t.Fatalf("expected ErrUserExit, got: %v", msg.Reason)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for DownMsg")
	}
}

func TestJoinGroupAndPublish(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()

	received := make(chan string, 2)
	member := func(tag string) *Ref {
		b := NewBehavior().OnAny(func(ctx *Context, msg any) HandlerResult {
			received <- tag + ":" + msg.(string)
			return Value(nil)
		})
		ref, err := e.Spawn(tag, b, mailbox.Options{}, false)
		if err != nil {
			t.Fatalf("spawn %s: %v", tag, err)
		}
		cb, _ := e.lookupBlock(ref.ID())
		if err := cb.JoinGroup("room"); err != nil {
			t.Fatalf("join: %v", err)
		}
		// Joining twice must stay idempotent.
		if err := cb.JoinGroup("room"); err != nil {
			t.Fatalf("rejoin: %v", err)
		}
		return ref
	}
	member("a")
	member("b")

	e.Publish("room", nil, "hi", SendOptions{})
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-received:
			seen[msg] = true
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for publish fan-out")
		}
	}
	if !seen["a:hi"] || !seen["b:hi"] {
		t.Fatalf("unexpected delivery set: %#v", seen)
	}
}

func TestReconfigureAppliesToActorsSpawnedAfter(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()
	e.Reconfigure(999, 11)
	got, gotLW := e.flowDefaults()
	if got != 999 || gotLW != 11 {
		t.Fatalf("unexpected flow defaults: %d %d", got, gotLW)
	}
	// zero values are a no-op.
	e.Reconfigure(0, 0)
	got2, gotLW2 := e.flowDefaults()
	if got2 != 999 || gotLW2 != 11 {
		t.Fatalf("zero reconfigure must not clobber existing defaults: %d %d", got2, gotLW2)
	}
}
