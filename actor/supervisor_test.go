package actor

import (
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deqinio/actorcore/mailbox"
)

func diesOnCommand(name string) ChildFactory {
	return func(e *Engine) (*Ref, error) {
		b := NewBehavior().On("die", func(ctx *Context, msg any) HandlerResult {
			ctx.self.Quit(ErrUserExit)
			return Value(nil)
		})
		return e.Spawn(name, b, mailbox.Options{}, false)
	}
}

func TestSupervisorOneForOneRestartsOnlyFailedChild(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()

	var n atomic.Int32
	factoryFor := func(tag string) ChildFactory {
		return func(e *Engine) (*Ref, error) {
			name := tag + "-" + strconv.Itoa(int(n.Add(1)))
			b := NewBehavior().On("die", func(ctx *Context, msg any) HandlerResult {
				ctx.self.Quit(ErrUserExit)
				return Value(nil)
			})
			return e.Spawn(name, b, mailbox.Options{}, false)
		}
	}

	sup, err := NewSupervisor(e, SupervisorOptions{
		Strategy:   OneForOne,
		MaxRetries: 3,
		Backoff:    func(int) time.Duration { return time.Millisecond },
	})
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}

	victim, err := sup.Spawn("victim", factoryFor("victim"))
	if err != nil {
		t.Fatalf("spawn victim: %v", err)
	}
	bystander, err := sup.Spawn("bystander", factoryFor("bystander"))
	if err != nil {
		t.Fatalf("spawn bystander: %v", err)
	}

	_ = victim.Tell(nil, "die", SendOptions{})

	deadline := time.Now().Add(time.Second)
	for sup.RestartCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sup.RestartCount() != 1 {
		t.Fatalf("expected exactly one restart, got %d", sup.RestartCount())
	}

	sup.mu.Lock()
	newVictimRef := sup.children[0].ref
	bystanderRef := sup.children[1].ref
	sup.mu.Unlock()
	if newVictimRef.ID() == victim.ID() {
		t.Fatalf("expected the restarted child to have a fresh id")
	}
	if bystanderRef.ID() != bystander.ID() {
		t.Fatalf("OneForOne must not touch unrelated children")
	}
}

func TestSupervisorOneForAllRestartsEveryChild(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()

	var n atomic.Int32
	factory := func(e *Engine) (*Ref, error) {
		name := "child-" + strconv.Itoa(int(n.Add(1)))
		b := NewBehavior().On("die", func(ctx *Context, msg any) HandlerResult {
			ctx.self.Quit(ErrUserExit)
			return Value(nil)
		})
		return e.Spawn(name, b, mailbox.Options{}, false)
	}

	sup, err := NewSupervisor(e, SupervisorOptions{
		Strategy:   OneForAll,
		MaxRetries: 3,
		Backoff:    func(int) time.Duration { return time.Millisecond },
	})
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	a, err := sup.Spawn("a", factory)
	if err != nil {
		t.Fatalf("spawn a: %v", err)
	}
	b, err := sup.Spawn("b", factory)
	if err != nil {
		t.Fatalf("spawn b: %v", err)
	}

	_ = a.Tell(nil, "die", SendOptions{})

	deadline := time.Now().Add(time.Second)
	for sup.RestartCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	sup.mu.Lock()
	newA := sup.children[0].ref
	newB := sup.children[1].ref
	sup.mu.Unlock()
	if newA.ID() == a.ID() {
		t.Fatalf("expected a to be restarted with a fresh id")
	}
	if newB.ID() == b.ID() {
		t.Fatalf("OneForAll should also restart the untouched sibling b")
	}
}

func TestSupervisorRestartGivesUpAfterMaxRetries(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()

	factory := diesOnCommand("quitter")
	sup, err := NewSupervisor(e, SupervisorOptions{
		Strategy:   OneForOne,
		MaxRetries: 3,
		Backoff:    func(int) time.Duration { return time.Millisecond },
	})
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	sup.mu.Lock()
	// already at the retry ceiling; the next attempt must be refused.
	sup.children = append(sup.children, childEntry{spec: childSpec{factory: factory, name: "quitter"}, retries: 3})
	sup.mu.Unlock()

	sup.restartChild(0)
	if sup.RestartCount() != 0 {
		t.Fatalf("expected no restart once retries exceed maxRetries, got %d", sup.RestartCount())
	}
}

func TestSupervisorSelfReturnsOwnRef(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()
	sup, err := NewSupervisor(e, SupervisorOptions{})
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	if sup.Self() == nil {
		t.Fatalf("expected a non-nil self ref")
	}
}

func TestExponentialBackoffUsedAsSupervisorDefault(t *testing.T) {
	e, stop := newTestEngine()
	defer stop()
	sup, err := NewSupervisor(e, SupervisorOptions{MaxRetries: 1})
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	if sup.backoff(0) != 50*time.Millisecond {
		t.Fatalf("expected the default exponential backoff base, got %v", sup.backoff(0))
	}
}

