package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/deqinio/actorcore/mailbox"
)

func TestLinkPropagatesExit(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()

	exits := make(chan ExitMsg, 1)
	peer := NewBehavior().On(ExitMsg{}, func(ctx *Context, msg any) HandlerResult {
		exits <- msg.(ExitMsg)
		return Value(nil)
	})
	peerRef, err := e.Spawn("peer", peer, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn peer: %v", err)
	}

	target := NewBehavior().On("die", func(ctx *Context, msg any) HandlerResult {
		ctx.self.Quit(errors.New("boom"))
		return Value(nil)
	})
	targetRef, err := e.Spawn("target", target, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn target: %v", err)
	}
	cb, _ := e.lookupBlock(targetRef.ID())
	cb.Link(peerRef)

	_ = targetRef.Tell(nil, "die", SendOptions{})
	select {
	case msg := <-exits:
		if msg.Reason.Error() != "boom" {
			t.Fatalf("unexpected exit reason: %v", msg.Reason)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for ExitMsg")
	}
}

func TestUnlinkStopsExitPropagation(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()

	exits := make(chan ExitMsg, 1)
	peer := NewBehavior().On(ExitMsg{}, func(ctx *Context, msg any) HandlerResult {
		exits <- msg.(ExitMsg)
		return Value(nil)
	})
	peerRef, err := e.Spawn("peer2", peer, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn peer: %v", err)
	}

	target := NewBehavior().On("die", func(ctx *Context, msg any) HandlerResult {
		ctx.self.Quit(nil)
		return Value(nil)
	})
	targetRef, err := e.Spawn("target2", target, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn target: %v", err)
	}
	cb, _ := e.lookupBlock(targetRef.ID())
	cb.Link(peerRef)
	cb.Unlink(peerRef)

	_ = targetRef.Tell(nil, "die", SendOptions{})
	select {
	case msg := <-exits:
		t.Fatalf("did not expect an exit notification: %#v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitorOnAlreadyTerminatedActorDeliversImmediately(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()
	target := NewBehavior().On("die", func(ctx *Context, msg any) HandlerResult {
		ctx.self.Quit(ErrUserExit)
		return Value(nil)
	})
	ref, err := e.Spawn("gone", target, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	cb, _ := e.lookupBlock(ref.ID())
	_ = ref.Tell(nil, "die", SendOptions{})

	// give the actor time to terminate before late-monitoring it.
	for i := 0; i < 50 && cb.isAlive(); i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if cb.isAlive() {
		t.Fatalf("expected actor to have terminated")
	}

	down := make(chan DownMsg, 1)
	watcher := NewBehavior().On(DownMsg{}, func(ctx *Context, msg any) HandlerResult {
		down <- msg.(DownMsg)
		return Value(nil)
	})
	watcherRef, err := e.Spawn("late-watcher", watcher, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn watcher: %v", err)
	}

	cb.Monitor(watcherRef)
	select {
	case msg := <-down:
		if !errors.Is(msg.Reason, ErrUserExit) {
			t.Fatalf("expected ErrUserExit, got: %v", msg.Reason)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for immediate DownMsg")
	}
}

func TestBounceFailsQueuedRequestOnClosedMailbox(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()

	gate := make(chan struct{})
	target := NewBehavior().On("hold", func(ctx *Context, msg any) HandlerResult {
		if msg != "hold" {
			return NoMatch()
		}
		<-gate
		return Value(nil)
	}).On("quit", func(ctx *Context, msg any) HandlerResult {
		ctx.self.Quit(nil)
		return Value(nil)
	})
	ref, err := e.Spawn("bouncer", target, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	// "hold" is dequeued and starts blocking the actor's goroutine; "quit"
	// and the Ask request both queue up behind it, in that order, so "quit"
	// tears the mailbox down before the Ask's envelope is ever dispatched.
	_ = ref.Tell(nil, "hold", SendOptions{})
	_ = ref.Tell(nil, "quit", SendOptions{})

	resultCh := make(chan error, 1)
	go func() {
		_, err := Ask(e, ref, "ping", AskOptions{Timeout: time.Second})
		resultCh <- err
	}()
	time.Sleep(50 * time.Millisecond)
	close(gate)

	select {
	case err := <-resultCh:
		if !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("expected ErrQueueClosed, got: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for bounce")
	}
}
