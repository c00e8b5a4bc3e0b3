package actor

// flowControl implements spec §3/§4.6's credit-based flow control, modeled
// directly on CAF's local_actor stream bookkeeping: an actor acting as a
// source keeps one generatorState per destination sink and redistributes
// newly freed credit among them (grantCredit); an actor acting as a sink
// keeps one sourceState per upstream source and asks for more credit once
// its allowance runs low (consume).
type flowControl struct {
	maxCredit    uint64
	lowWatermark uint64

	// source role: credit this actor has extended to each downstream sink.
	generators map[ActorID]*generatorState
	openCredit uint64

	// sink role: credit each upstream source has extended to this actor.
	sources map[ActorID]*sourceState
}

type generatorState struct {
	sink     *Ref
	granted  uint64
	inFlight uint64
}

type sourceState struct {
	source   *Ref
	granted  uint64
	consumed uint64
}

func newFlowControl(maxCredit, lowWatermark uint64) *flowControl {
	return &flowControl{
		maxCredit:    maxCredit,
		lowWatermark: lowWatermark,
		generators:   make(map[ActorID]*generatorState),
		sources:      make(map[ActorID]*sourceState),
	}
}

// newStream registers self as a source streaming to sink, starting at zero
// granted credit; the first grantCredit call is what actually lets
// messages flow (spec §4.6 "new_stream(sink, generator)").
func (f *flowControl) newStream(sink *Ref) {
	f.generators[sink.ID()] = &generatorState{sink: sink}
}

// endStream removes bookkeeping for a finished or cancelled stream.
func (f *flowControl) endStream(sink *Ref) {
	delete(f.generators, sink.ID())
}

// grantCredit is CAF local_actor::grant_credit transliterated: newly
// freed credit is pooled, applied first to the generator that caused it
// (cause), and — once the aggregate in-flight count across all generators
// has dropped back to or below the low watermark — redistributed equally
// across every live generator, dropping any whose even share would be
// zero from the round.
func (f *flowControl) grantCredit(newlyAvailable uint64, cause *Ref) []creditGrant {
	f.openCredit += newlyAvailable
	var grants []creditGrant

	if cause != nil {
		if gen, ok := f.generators[cause.ID()]; ok {
			if gen.granted > newlyAvailable {
				gen.granted -= newlyAvailable
			} else {
				gen.granted = 0
			}
			if gen.granted == 0 && gen.inFlight > f.lowWatermark {
				gen.granted += f.openCredit
				grants = append(grants, creditGrant{sink: gen.sink, n: f.openCredit})
				f.openCredit = 0
				return grants
			}
		}
	}

	if f.totalInFlight() > f.lowWatermark {
		return grants
	}

	live := make([]*generatorState, 0, len(f.generators))
	for _, gen := range f.generators {
		live = append(live, gen)
	}
	if len(live) == 0 {
		return grants
	}
	share := f.openCredit / uint64(len(live))
	if share == 0 {
		return grants
	}
	for _, gen := range live {
		gen.granted += share
		grants = append(grants, creditGrant{sink: gen.sink, n: share})
	}
	f.openCredit -= share * uint64(len(live))
	return grants
}

func (f *flowControl) totalInFlight() uint64 {
	var total uint64
	for _, gen := range f.generators {
		total += gen.inFlight
	}
	return total
}

// creditGrant is the "get" message a source must deliver to a sink after
// grantCredit decides that sink should receive more allowance.
type creditGrant struct {
	sink *Ref
	n    uint64
}

// recordSent marks n units of credit as consumed against a generator's
// granted allowance (called when the source actually emits a message).
func (f *flowControl) recordSent(sink *Ref, n uint64) {
	if gen, ok := f.generators[sink.ID()]; ok {
		gen.inFlight += n
		if gen.granted >= n {
			gen.granted -= n
		} else {
			gen.granted = 0
		}
	}
}

// addSource registers source as an upstream flow-controlled producer
// (sink role), with no credit extended yet.
func (f *flowControl) addSource(source *Ref) {
	f.sources[source.ID()] = &sourceState{source: source}
}

// delSource removes a source's bookkeeping (sink role), e.g. on DownMsg.
func (f *flowControl) delSource(source *Ref) {
	delete(f.sources, source.ID())
}

// consume records the receipt of one flow-controlled message from source
// and reports whether the sink should now ask that source for more
// credit, i.e. its remaining allowance has dropped to the low watermark
// (spec §4.6 "low watermark").
func (f *flowControl) consume(source *Ref) (askMore bool) {
	st, ok := f.sources[source.ID()]
	if !ok {
		return false
	}
	st.consumed++
	remaining := uint64(0)
	if st.granted > st.consumed {
		remaining = st.granted - st.consumed
	}
	return remaining <= f.lowWatermark
}

// onCreditGranted applies an incoming "get" grant from a source (sink
// role), raising that source's allowance.
func (f *flowControl) onCreditGranted(source *Ref, n uint64) {
	st, ok := f.sources[source.ID()]
	if !ok {
		st = &sourceState{source: source}
		f.sources[source.ID()] = st
	}
	st.granted += n
	st.consumed = 0
}
