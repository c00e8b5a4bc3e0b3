package group

import (
	"path/filepath"
	"testing"

	"github.com/deqinio/actorcore/actor"
	"github.com/deqinio/actorcore/internal/workerpool"
	"github.com/deqinio/actorcore/mailbox"
)

func TestSQLGroupUnrecognizedDSN(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Close()
	e := actor.NewEngine(pool, NewLocalGroup(), actor.NewInProcessRegistry())
	if _, err := OpenSQLGroup(e, "redis://localhost"); err == nil {
		t.Fatalf("expected error for unrecognized DSN scheme")
	}
}

func TestSQLGroupJoinLeaveMembersResolveAgainstEngine(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Close()
	e := actor.NewEngine(pool, NewLocalGroup(), actor.NewInProcessRegistry())

	dsn := "sqlite://" + filepath.Join(t.TempDir(), "group.db")
	g, err := OpenSQLGroup(e, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer g.Close()

	b := actor.NewBehavior().OnAny(func(ctx *actor.Context, msg any) actor.HandlerResult {
		return actor.Value(nil)
	})
	a, err := e.Spawn("a", b, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn a: %v", err)
	}
	c, err := e.Spawn("c", b, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn c: %v", err)
	}

	if err := g.Join("room", a); err != nil {
		t.Fatalf("join a: %v", err)
	}
	if err := g.Join("room", c); err != nil {
		t.Fatalf("join c: %v", err)
	}
	// joining twice must not fail or duplicate the row.
	if err := g.Join("room", a); err != nil {
		t.Fatalf("rejoin a: %v", err)
	}

	members := g.Members("room")
	if len(members) != 2 {
		t.Fatalf("expected 2 resolvable members, got %d: %#v", len(members), members)
	}

	if err := g.Leave("room", a); err != nil {
		t.Fatalf("leave a: %v", err)
	}
	members = g.Members("room")
	if len(members) != 1 || members[0].ID() != c.ID() {
		t.Fatalf("unexpected members after leave: %#v", members)
	}
}

func TestSQLGroupMembersSkipsUnresolvableRows(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Close()
	e := actor.NewEngine(pool, NewLocalGroup(), actor.NewInProcessRegistry())
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "group2.db")
	g, err := OpenSQLGroup(e, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer g.Close()

	if _, err := g.db.Exec(`INSERT INTO group_members (group_name, actor_id) VALUES (?, ?)`, "room", uint64(999999)); err != nil {
		t.Fatalf("seed row: %v", err)
	}
	if members := g.Members("room"); len(members) != 0 {
		t.Fatalf("expected unresolvable row to be skipped, got %#v", members)
	}
}
