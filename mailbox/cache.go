package mailbox

// cache holds the two segments described in spec §3/§4.1. It is only ever
// touched by the single consumer goroutine that owns the mailbox, so no
// locking is needed here.
//
// first holds envelopes whose priority ordering next_message has already
// materialized from the raw queue (High before Low, arrival order
// preserved within each class). second holds envelopes a behavior has
// skipped; insertion keeps High-priority envelopes at the front of the
// segment, again preserving arrival order within each class.
type cache struct {
	first  []Envelope
	second []Envelope
}

func (c *cache) hasPending() bool { return len(c.first) > 0 || len(c.second) > 0 }

func (c *cache) len() int { return len(c.first) + len(c.second) }

func (c *cache) popFirst() (Envelope, bool) {
	if len(c.first) == 0 {
		return Envelope{}, false
	}
	env := c.first[0]
	c.first = c.first[1:]
	return env, true
}

// fillFirst partitions drained in priority order (stable) and installs it
// as the new first segment. Called only when first is already empty.
func (c *cache) fillFirst(drained []Envelope) {
	high := make([]Envelope, 0, len(drained))
	low := make([]Envelope, 0, len(drained))
	for _, env := range drained {
		if env.Priority == High {
			high = append(high, env)
		} else {
			low = append(low, env)
		}
	}
	c.first = append(high, low...)
}

// pushSecond performs the "partition-point insertion" spec §4.1 describes:
// High-priority envelopes are kept at the front of the segment, Low ones
// at the back, and arrival order is preserved within each class.
func (c *cache) pushSecond(env Envelope) {
	if env.Priority == High {
		idx := 0
		for idx < len(c.second) && c.second[idx].Priority == High {
			idx++
		}
		c.second = append(c.second, Envelope{})
		copy(c.second[idx+1:], c.second[idx:])
		c.second[idx] = env
		return
	}
	c.second = append(c.second, env)
}

func (c *cache) drainSecond() []Envelope {
	out := c.second
	c.second = nil
	return out
}

func (c *cache) drainAll() []Envelope {
	out := append(c.first, c.second...)
	c.first = nil
	c.second = nil
	return out
}
