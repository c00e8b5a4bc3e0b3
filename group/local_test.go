package group

import (
	"testing"

	"github.com/deqinio/actorcore/actor"
	"github.com/deqinio/actorcore/internal/workerpool"
	"github.com/deqinio/actorcore/mailbox"
)

func spawnTestRef(t *testing.T, e *actor.Engine, name string) *actor.Ref {
	t.Helper()
	b := actor.NewBehavior().OnAny(func(ctx *actor.Context, msg any) actor.HandlerResult {
		return actor.Value(nil)
	})
	ref, err := e.Spawn(name, b, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn %s: %v", name, err)
	}
	return ref
}

func TestLocalGroupJoinLeaveMembers(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Close()
	e := actor.NewEngine(pool, NewLocalGroup(), actor.NewInProcessRegistry())

	g := NewLocalGroup()
	a := spawnTestRef(t, e, "a")
	b := spawnTestRef(t, e, "b")

	if err := g.Join("room", a); err != nil {
		t.Fatalf("join a: %v", err)
	}
	if err := g.Join("room", b); err != nil {
		t.Fatalf("join b: %v", err)
	}
	if members := g.Members("room"); len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if err := g.Leave("room", a); err != nil {
		t.Fatalf("leave a: %v", err)
	}
	members := g.Members("room")
	if len(members) != 1 || members[0].ID() != b.ID() {
		t.Fatalf("unexpected members after leave: %#v", members)
	}
	if members := g.Members("empty"); len(members) != 0 {
		t.Fatalf("expected no members for unknown group, got %#v", members)
	}
}

func TestLocalGroupLeaveUnknownIsNoop(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Close()
	e := actor.NewEngine(pool, NewLocalGroup(), actor.NewInProcessRegistry())
	g := NewLocalGroup()
	a := spawnTestRef(t, e, "a")
	if err := g.Leave("nosuch", a); err != nil {
		t.Fatalf("expected nil error, got: %v", err)
	}
}
