package actor

import "time"

// pendingEntry records what to do when a response (or its timeout) for one
// outstanding request arrives.
type pendingEntry struct {
	id       MessageID
	onValue  ResponseFunc
	deadline time.Time
	// generation ties this entry to a specific timeout envelope (spec §9
	// open question: "one consistent generation per emitted timeout
	// envelope" — resolved by stamping it here at registration time).
	generation uint32
}

// pendingTable is the receiving side of request/response correlation (spec
// §3 "Pending-response table"): an awaited stack for synchronous-style
// requests that must be answered before any other message is processed,
// plus a multiplexed map for ordinary concurrent requests answered as
// their responses arrive in no particular order. byGeneration lets a
// fired timeout envelope — which only carries a generation number — find
// its entry regardless of which of the two it lives in.
type pendingTable struct {
	awaited      []*pendingEntry
	multiplexed  map[MessageID]*pendingEntry
	byGeneration map[uint32]MessageID
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		multiplexed:  make(map[MessageID]*pendingEntry),
		byGeneration: make(map[uint32]MessageID),
	}
}

// awaitResponse registers id at the top of the awaited stack, where resolve
// checks it before the multiplexed map. Registering it does not hold back
// ordinary messages or responses for other ids.
func (p *pendingTable) awaitResponse(id MessageID, fn ResponseFunc, deadline time.Time, gen uint32) {
	p.awaited = append(p.awaited, &pendingEntry{id: id, onValue: fn, deadline: deadline, generation: gen})
	p.byGeneration[gen] = id.Base()
}

// thenResponse registers id in the multiplexed map: it is answered whenever
// its response arrives, independent of mailbox order.
func (p *pendingTable) thenResponse(id MessageID, fn ResponseFunc, deadline time.Time, gen uint32) {
	p.multiplexed[id.Base()] = &pendingEntry{id: id, onValue: fn, deadline: deadline, generation: gen}
	p.byGeneration[gen] = id.Base()
}

// activeAwait returns the entry currently at the top of the awaited stack,
// or nil if nothing is being awaited.
func (p *pendingTable) activeAwait() *pendingEntry {
	if len(p.awaited) == 0 {
		return nil
	}
	return p.awaited[len(p.awaited)-1]
}

// resolve locates and removes the entry matching id, checking the awaited
// stack first (only its top entry can ever match — anything else is a
// protocol violation upstream) and falling back to the multiplexed map.
func (p *pendingTable) resolve(id MessageID) (*pendingEntry, bool) {
	base := id.Base()
	if top := p.activeAwait(); top != nil && top.id.Base() == base {
		p.awaited = p.awaited[:len(p.awaited)-1]
		delete(p.byGeneration, top.generation)
		return top, true
	}
	if e, ok := p.multiplexed[base]; ok {
		delete(p.multiplexed, base)
		delete(p.byGeneration, e.generation)
		return e, true
	}
	return nil, false
}

// expireByGeneration drops and returns whichever entry (awaited or
// multiplexed) was registered under gen, used when its timeout envelope
// fires. A generation absent from the table means the request already
// resolved or was superseded; the caller treats that as expired-and-dead.
func (p *pendingTable) expireByGeneration(gen uint32) (*pendingEntry, bool) {
	base, ok := p.byGeneration[gen]
	if !ok {
		return nil, false
	}
	delete(p.byGeneration, gen)

	if top := p.activeAwait(); top != nil && top.generation == gen {
		p.awaited = p.awaited[:len(p.awaited)-1]
		return top, true
	}
	if e, ok := p.multiplexed[base]; ok && e.generation == gen {
		delete(p.multiplexed, base)
		return e, true
	}
	return nil, false
}

// empty reports whether there is nothing outstanding at all.
func (p *pendingTable) empty() bool {
	return len(p.awaited) == 0 && len(p.multiplexed) == 0
}
