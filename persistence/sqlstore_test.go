package persistence

import (
	"path/filepath"
	"testing"
)

func TestSQLStoreUnrecognizedDSN(t *testing.T) {
	if _, err := OpenSQLStore("redis://localhost", "a"); err != ErrUnrecognizedDSN {
		t.Fatalf("expected ErrUnrecognizedDSN, got: %v", err)
	}
}

func TestSQLStoreAppendReplayPerActor(t *testing.T) {
	dir := t.TempDir()
	dsn := "sqlite://" + filepath.Join(dir, "mailbox.db")

	a, err := OpenSQLStore(dsn, "actorA")
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	defer a.Close()
	if err := a.Append([]byte("p1")); err != nil {
		t.Fatalf("append p1: %v", err)
	}
	if err := a.Append([]byte("p2")); err != nil {
		t.Fatalf("append p2: %v", err)
	}
	if err := a.Append(nil); err != nil {
		t.Fatalf("append nil: %v", err)
	}

	b, err := OpenSQLStore(dsn, "actorB")
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	defer b.Close()
	if err := b.Append([]byte("q1")); err != nil {
		t.Fatalf("append q1: %v", err)
	}

	recsA, err := a.Replay()
	if err != nil || len(recsA) != 2 || string(recsA[0]) != "p1" || string(recsA[1]) != "p2" {
		t.Fatalf("replay a: %v %#v", err, recsA)
	}
	recsB, err := b.Replay()
	if err != nil || len(recsB) != 1 || string(recsB[0]) != "q1" {
		t.Fatalf("replay b: %v %#v", err, recsB)
	}

	// Reopening against the same DSN/actor picks up the sequence where it
	// left off rather than restarting at 1 and colliding on the primary key.
	a2, err := OpenSQLStore(dsn, "actorA")
	if err != nil {
		t.Fatalf("reopen a: %v", err)
	}
	defer a2.Close()
	if err := a2.Append([]byte("p3")); err != nil {
		t.Fatalf("append p3: %v", err)
	}
	recsA2, err := a2.Replay()
	if err != nil || len(recsA2) != 3 || string(recsA2[2]) != "p3" {
		t.Fatalf("replay a2: %v %#v", err, recsA2)
	}
}

func TestSQLStoreSatisfiesStore(t *testing.T) {
	var _ Store = (*SQLStore)(nil)
}
