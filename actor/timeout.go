package actor

import (
	"sync/atomic"
	"time"
)

// timeoutTracker implements spec §3's "single active request-timeout":
// an actor has at most one free-standing idle/behavior timeout scheduled
// at a time, identified by a generation counter so a stale timer firing
// after the behavior already moved on is recognized and dropped rather
// than misapplied (spec §4.3 "Timeouts", §9 resolved open question on
// generation scoping).
type timeoutTracker struct {
	generation atomic.Uint32
	active     bool
	dueAt      time.Time
}

// arm schedules a new active timeout, invalidating whatever generation was
// previously outstanding, and returns the new generation.
func (t *timeoutTracker) arm(d time.Duration) uint32 {
	gen := t.generation.Add(1)
	t.active = true
	t.dueAt = time.Now().Add(d)
	return gen
}

// disarm cancels the currently active timeout, if any.
func (t *timeoutTracker) disarm() {
	t.generation.Add(1)
	t.active = false
}

// currentGeneration reports the generation a freshly fired timer must carry
// to still be considered live.
func (t *timeoutTracker) currentGeneration() uint32 { return t.generation.Load() }

// isLive reports whether gen matches the tracker's current generation and
// a timeout is still armed; a mismatch means the timeout was superseded or
// cancelled and the firing envelope must be classified as expired (spec
// §4.3 "System messages: Timeout", expired case).
func (t *timeoutTracker) isLive(gen uint32) bool {
	return t.active && gen == t.generation.Load()
}
