package actor

import (
	"sync"
	"time"

	"github.com/deqinio/actorcore/mailbox"
)

// RestartStrategy 定义监督者在子 Actor 失败后的重启策略。
type RestartStrategy uint8

const (
	// OneForOne 仅重启失败的子 Actor，不影响其他子 Actor。
	// 适用于子 Actor 之间相互独立的场景。
	OneForOne RestartStrategy = iota
	// OneForAll 当任意子 Actor 失败时，重启所有子 Actor。
	// 适用于子 Actor 之间紧密耦合，需要保持一致状态的场景。
	OneForAll
	// RestForOne 重启失败的子 Actor 及其之后启动的所有子 Actor。
	// 适用于子 Actor 之间存在依赖关系，后启动的依赖先启动的场景。
	RestForOne
)

// BackoffFunc 计算给定重试次数（从 0 开始）的退避延迟。
// 用于在重启失败时避免立即重试，给系统恢复的时间。
type BackoffFunc func(retry int) time.Duration

// ExponentialBackoff 返回一个指数退避函数。
// 延迟从 base 开始，每次重试翻倍，最大不超过 max。
// 当 base 或 max 为零时，使用默认值（base=50ms, max=5s）。
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if max <= 0 {
		max = 5 * time.Second
	}
	return func(retry int) time.Duration {
		d := base
		for i := 0; i < retry; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		return d
	}
}

// ChildFactory creates one supervised child against engine e, returning the
// freshly spawned Ref. Called once at Spawn time and again, with a fresh
// ActorID, on every restart.
type ChildFactory func(e *Engine) (*Ref, error)

// childSpec 描述子 Actor 的创建规范。
type childSpec struct {
	factory ChildFactory
	name    string
}

// childEntry 跟踪子 Actor 的运行时状态。
type childEntry struct {
	spec    childSpec
	ref     *Ref
	retries int
}

// Supervisor implements the actor supervision-tree pattern (spec.md §7's
// error-propagation chain, one level up): it owns a set of children and,
// on a DownMsg from any of them, restarts according to the configured
// strategy. The supervisor is itself a plain actor — it Monitors every
// child it spawns and its own behavior's DownMsg case drives onFailure —
// rather than a privileged hook into the engine.
type Supervisor struct {
	engine *Engine
	self   *Ref

	strategy   RestartStrategy
	maxRetries int
	backoff    BackoffFunc

	mu       sync.Mutex
	children []childEntry

	restartsMu sync.Mutex
	restarts   uint64
}

// SupervisorOptions 配置监督者的行为。
type SupervisorOptions struct {
	// Strategy 重启策略，默认为 OneForOne
	Strategy RestartStrategy
	// MaxRetries 最大重试次数，默认为 10
	MaxRetries int
	// Backoff 退避函数，默认为指数退避（50ms-5s）
	Backoff BackoffFunc
}

// NewSupervisor spawns the supervisor's own actor on e and wires its
// DownMsg case to onFailure. The supervisor's Ref is not registered under
// a name; callers that need to address it directly can keep the Ref
// returned by a later Self() call.
func NewSupervisor(e *Engine, opts SupervisorOptions) (*Supervisor, error) {
	b := opts.Backoff
	if b == nil {
		b = ExponentialBackoff(50*time.Millisecond, 5*time.Second)
	}
	s := &Supervisor{
		engine:     e,
		strategy:   opts.Strategy,
		maxRetries: opts.MaxRetries,
		backoff:    b,
	}
	if s.maxRetries == 0 {
		s.maxRetries = 10
	}

	behavior := NewBehavior().On(DownMsg{}, func(_ *Context, msg any) HandlerResult {
		down := msg.(DownMsg)
		s.onFailure(down.Source.ID(), down.Reason)
		return Value(nil)
	})
	ref, err := e.Spawn("", behavior, mailbox.Options{}, false)
	if err != nil {
		return nil, err
	}
	s.self = ref
	return s, nil
}

// Self returns the supervisor's own actor Ref, e.g. to Link it into a
// larger tree.
func (s *Supervisor) Self() *Ref { return s.self }

// Spawn creates, registers and monitors a new supervised child. The
// child's lifecycle is owned by the supervisor from this point on: a
// DownMsg from it triggers the configured restart strategy.
func (s *Supervisor) Spawn(name string, factory ChildFactory) (*Ref, error) {
	ref, err := factory(s.engine)
	if err != nil {
		return nil, err
	}
	s.watch(ref)

	s.mu.Lock()
	s.children = append(s.children, childEntry{spec: childSpec{factory: factory, name: name}, ref: ref})
	s.mu.Unlock()
	return ref, nil
}

// watch registers the supervisor to receive a DownMsg when child
// terminates. Monitor lives on ControlBlock, not Ref, so this reaches
// into the engine's control-block table directly — both live in this
// package.
func (s *Supervisor) watch(child *Ref) {
	if cb, ok := s.engine.lookupBlock(child.ID()); ok {
		cb.Monitor(s.self)
	}
}

// RestartCount 返回监督者执行的重启次数。
func (s *Supervisor) RestartCount() uint64 {
	s.restartsMu.Lock()
	n := s.restarts
	s.restartsMu.Unlock()
	return n
}

// onFailure 处理子 Actor 的失败通知。
// 根据配置的重启策略决定重启哪些子 Actor。
func (s *Supervisor) onFailure(failedID ActorID, _ error) {
	s.mu.Lock()
	idx := -1
	for i := range s.children {
		if s.children[i].ref != nil && s.children[i].ref.ID() == failedID {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return
	}
	switch s.strategy {
	case OneForAll:
		for i := range s.children {
			go s.restartChild(i)
		}
	case RestForOne:
		for i := idx; i < len(s.children); i++ {
			go s.restartChild(i)
		}
	default:
		go s.restartChild(idx)
	}
	s.mu.Unlock()
}

// restartChild 重启指定索引的子 Actor。
// 使用退避策略延迟重启，超过最大重试次数后放弃。
func (s *Supervisor) restartChild(i int) {
	s.mu.Lock()
	if i < 0 || i >= len(s.children) {
		s.mu.Unlock()
		return
	}
	entry := s.children[i]
	entry.retries++
	if entry.retries > s.maxRetries {
		s.mu.Unlock()
		return
	}
	delay := s.backoff(entry.retries - 1)
	s.children[i] = entry
	s.mu.Unlock()

	time.Sleep(delay)

	ref, err := entry.spec.factory(s.engine)
	if err != nil {
		return
	}
	s.watch(ref)
	entry.ref = ref

	s.mu.Lock()
	s.children[i] = entry
	s.mu.Unlock()

	s.restartsMu.Lock()
	s.restarts++
	s.restartsMu.Unlock()
	if s.engine.metrics != nil {
		s.engine.metrics.IncRestart()
	}
}
