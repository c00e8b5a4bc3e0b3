package testkit

import (
	"testing"
	"time"

	"github.com/deqinio/actorcore/actor"
	"github.com/deqinio/actorcore/mailbox"
)

// Probe 是一个测试探针，用于在测试中接收和验证消息。
// 它提供了一个通道来接收消息，以及便捷的方法来等待和验证消息。
// Probe 常用于测试 Actor 之间的消息传递。
type Probe struct {
	// t 测试上下文，用于报告失败
	t testing.TB
	// ch 接收消息的通道
	ch chan any
	// fail 失败处理函数
	fail func(string, ...any)
}

// NewProbe 创建一个新的测试探针。
// t 为测试上下文，buffer 为通道缓冲区大小（默认 1024）。
func NewProbe(t testing.TB, buffer int) *Probe {
	if buffer <= 0 {
		buffer = 1024
	}
	p := &Probe{t: t, ch: make(chan any, buffer)}
	p.fail = t.Fatalf
	return p
}

// NewActorProbe spawns a real, non-detached actor on e whose only behavior
// forwards every payload it receives to the returned Probe, and returns
// both along with the spawned Ref. Sending to that Ref (Tell, Ask, or a
// transport's deliverLocal) exercises the full dispatch pipeline — mailbox
// enqueue, rescheduling, resume, behavior dispatch — the way a production
// actor would see it, instead of a bare Probe.Put call bypassing all of
// that.
func NewActorProbe(t testing.TB, e *actor.Engine, buffer int) (*Probe, *actor.Ref) {
	t.Helper()
	p := NewProbe(t, buffer)
	b := actor.NewBehavior().OnAny(func(ctx *actor.Context, msg any) actor.HandlerResult {
		p.Put(msg)
		return actor.Value(nil)
	})
	ref, err := e.Spawn("", b, mailbox.Options{}, false)
	if err != nil {
		t.Fatalf("spawn probe actor: %v", err)
	}
	return p, ref
}

// Chan 返回消息接收通道。
// 可以直接用于 select 语句或与其他通道操作。
func (p *Probe) Chan() <-chan any { return p.ch }

// Put 向探针发送一条消息。
// 通常在 Actor 的消息处理函数中调用，将消息转发到探针。
func (p *Probe) Put(v any) { p.ch <- v }

// Expect 等待并返回一条消息。
// 如果在超时时间内没有收到消息，测试会失败。
// 默认超时为 1 秒。
func (p *Probe) Expect(timeout time.Duration) any {
	p.t.Helper()
	if timeout <= 0 {
		timeout = time.Second
	}
	select {
	case v := <-p.ch:
		return v
	case <-time.After(timeout):
		p.fail("timeout waiting message")
		return nil
	}
}

// ExpectMsg waits for a message the same way Expect does, then fails the
// test unless it equals want under Go's == on interface values (same
// dynamic type and equal value, no deep comparison); this is what an actor
// test wants most of the time instead of
// retrieving the raw value and comparing it inline.
func (p *Probe) ExpectMsg(timeout time.Duration, want any) {
	p.t.Helper()
	got := p.Expect(timeout)
	if got != want {
		p.fail("expected %#v, got %#v", want, got)
	}
}

// ExpectNoMessage 验证在指定时间内没有收到消息。
// 如果收到消息，测试会失败。
// 默认超时为 50 毫秒。
func (p *Probe) ExpectNoMessage(timeout time.Duration) {
	p.t.Helper()
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	select {
	case v := <-p.ch:
		p.fail("unexpected message: %#v", v)
	case <-time.After(timeout):
	}
}
