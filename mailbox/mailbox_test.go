package mailbox

import (
	"testing"
	"time"
)

func TestRingBasic(t *testing.T) {
	r := NewRing[int](1)
	_ = r.Capacity()
	a := 1
	b := 2
	if !r.Enqueue(&a) || !r.Enqueue(&b) {
		t.Fatalf("enqueue failed")
	}
	if v, ok := r.Dequeue(); !ok || *v != 1 {
		t.Fatalf("deq1: %v %v", v, ok)
	}
	if v, ok := r.Dequeue(); !ok || *v != 2 {
		t.Fatalf("deq2: %v %v", v, ok)
	}
	if _, ok := r.Dequeue(); ok {
		t.Fatalf("should empty")
	}
}

func TestSegmentedQueueGrow(t *testing.T) {
	q := NewSegmentedQueue[int](2, 2)
	_ = q.Capacity()
	a := 1
	b := 2
	c := 3
	if !q.Enqueue(&a) || !q.Enqueue(&b) || !q.Enqueue(&c) {
		t.Fatalf("enqueue")
	}
	if q.LenSegments() < 2 {
		t.Fatalf("expected grow")
	}
	if v, _ := q.Dequeue(); *v != 1 {
		t.Fatalf("v1")
	}
	if v, _ := q.Dequeue(); *v != 2 {
		t.Fatalf("v2")
	}
	if v, _ := q.Dequeue(); *v != 3 {
		t.Fatalf("v3")
	}
}

func TestSegmentedQueueMaxSegmentsDefault(t *testing.T) {
	q := NewSegmentedQueue[int](2, 0)
	if q.LenSegments() != 1 {
		t.Fatalf("expected 1 segment")
	}
}

func TestSegmentedQueueFullNoGrow(t *testing.T) {
	q := NewSegmentedQueue[int](1, 1)
	a := 1
	b := 2
	c := 3
	if !q.Enqueue(&a) {
		t.Fatalf("enqueue a")
	}
	if !q.Enqueue(&b) {
		t.Fatalf("enqueue b")
	}
	if q.Enqueue(&c) {
		t.Fatalf("expected full")
	}
}

func TestMailboxDefaultsAndLen(t *testing.T) {
	m := New(Options{})
	defer m.Close(nil)
	if m.Len() != 0 {
		t.Fatalf("expected 0 len")
	}
	if _, err := m.Enqueue(Envelope{Payload: "x"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("expected len 1")
	}
	if env, ok := m.NextMessage(false); !ok || env.Payload.(string) != "x" {
		t.Fatalf("unexpected next: %#v %v", env, ok)
	}
	if m.Len() != 0 {
		t.Fatalf("expected len 0")
	}
	if _, ok := m.NextMessage(false); ok {
		t.Fatalf("expected empty")
	}
}

func TestMailboxPriorityAware(t *testing.T) {
	m := New(Options{})
	defer m.Close(nil)
	_, _ = m.Enqueue(Envelope{Priority: Low, Payload: "n1"})
	_, _ = m.Enqueue(Envelope{Priority: High, Payload: "u1"})
	_, _ = m.Enqueue(Envelope{Priority: Low, Payload: "n2"})
	env, ok := m.NextMessage(true)
	if !ok || env.Payload.(string) != "u1" {
		t.Fatalf("expected urgent first: %#v %v", env, ok)
	}
}

func TestMailboxNonPriorityAwareIgnoresPriority(t *testing.T) {
	m := New(Options{})
	defer m.Close(nil)
	_, _ = m.Enqueue(Envelope{Priority: Low, Payload: "n1"})
	_, _ = m.Enqueue(Envelope{Priority: High, Payload: "u1"})
	env, ok := m.NextMessage(false)
	if !ok || env.Payload.(string) != "n1" {
		t.Fatalf("expected arrival order: %#v %v", env, ok)
	}
}

func TestMailboxClose(t *testing.T) {
	m := New(Options{})
	if m.IsClosed() {
		t.Fatalf("should not be closed yet")
	}
	var bounced []Envelope
	_, _ = m.Enqueue(Envelope{Payload: "a"})
	m.Close(func(env Envelope) { bounced = append(bounced, env) })
	if !m.IsClosed() {
		t.Fatalf("expected closed")
	}
	if len(bounced) != 1 || bounced[0].Payload.(string) != "a" {
		t.Fatalf("expected bounced a: %#v", bounced)
	}
	if _, err := m.Enqueue(Envelope{Payload: "b"}); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got: %v", err)
	}
	m.Close(nil) // idempotent
}

func TestMailboxWaitNotify(t *testing.T) {
	m := New(Options{})
	defer m.Close(nil)
	done := make(chan bool, 1)
	go func() { done <- m.Wait() }()
	_, _ = m.Enqueue(Envelope{Payload: "x"})
	select {
	case ok := <-done:
		if !ok {
			t.Fatalf("expected ok")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout")
	}
}

func TestMailboxWaitOnClose(t *testing.T) {
	m := New(Options{})
	done := make(chan bool, 1)
	go func() { done <- m.Wait() }()
	m.Close(nil)
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected false on close")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout")
	}
}

func TestMailboxSkipAndRetry(t *testing.T) {
	m := New(Options{})
	defer m.Close(nil)
	_, _ = m.Enqueue(Envelope{Payload: "skip-me"})
	env, ok := m.NextMessage(false)
	if !ok {
		t.Fatalf("expected message")
	}
	m.PushSkip(env)

	var seen []string
	m.RetrySkipped(func(e Envelope) bool {
		seen = append(seen, e.Payload.(string))
		return false // still declined, stays cached
	})
	if len(seen) != 1 || seen[0] != "skip-me" {
		t.Fatalf("unexpected retry pass: %#v", seen)
	}

	var seen2 []string
	m.RetrySkipped(func(e Envelope) bool {
		seen2 = append(seen2, e.Payload.(string))
		return true // now consumed
	})
	if len(seen2) != 1 {
		t.Fatalf("expected second retry to see the cached envelope")
	}

	var seen3 []string
	m.RetrySkipped(func(e Envelope) bool {
		seen3 = append(seen3, e.Payload.(string))
		return true
	})
	if len(seen3) != 0 {
		t.Fatalf("expected nothing left cached: %#v", seen3)
	}
}

func TestMailboxPersistHook(t *testing.T) {
	var persisted []string
	m := New(Options{
		EncodeForPersist: func(e Envelope) ([]byte, bool) { return []byte(e.Payload.(string)), true },
		Persist:          func(b []byte) error { persisted = append(persisted, string(b)); return nil },
	})
	defer m.Close(nil)
	if _, err := m.Enqueue(Envelope{Payload: "p"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(persisted) != 1 || persisted[0] != "p" {
		t.Fatalf("expected persist called: %#v", persisted)
	}
}

func TestMailboxPersistEncodeFalseSkipsPersist(t *testing.T) {
	called := false
	m := New(Options{
		EncodeForPersist: func(Envelope) ([]byte, bool) { return nil, false },
		Persist:          func([]byte) error { called = true; return nil },
	})
	defer m.Close(nil)
	if _, err := m.Enqueue(Envelope{Payload: "x"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if called {
		t.Fatalf("should not call persist")
	}
}

func TestMailboxPersistErrorFailsEnqueue(t *testing.T) {
	wantErr := ErrClosed // any sentinel works; just checking propagation
	m := New(Options{
		EncodeForPersist: func(Envelope) ([]byte, bool) { return []byte("x"), true },
		Persist:          func([]byte) error { return wantErr },
	})
	defer m.Close(nil)
	if _, err := m.Enqueue(Envelope{Payload: "x"}); err != wantErr {
		t.Fatalf("expected persist error, got: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("envelope must not have been enqueued after persist failure")
	}
}

func TestMailboxTryBlockAndUnblock(t *testing.T) {
	m := New(Options{})
	defer m.Close(nil)
	if !m.TryBlock() {
		t.Fatalf("expected block to succeed on empty mailbox")
	}
	unblocked, err := m.Enqueue(Envelope{Payload: "x"})
	if err != nil || !unblocked {
		t.Fatalf("expected unblocked transition: %v %v", unblocked, err)
	}
}
