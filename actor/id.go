package actor

import (
	"strconv"
	"sync/atomic"
)

// ActorID is the stable numeric identifier every actor carries for its
// entire lifetime (spec §3 "Actor identity"). IDs are unique within a
// process and monotonically increasing, so ordering by ID also orders by
// creation time.
type ActorID uint64

// idCounter hands out the sequential part of every ActorID.
var idCounter atomic.Uint64

// NewActorID returns a fresh, process-unique actor id.
func NewActorID() ActorID {
	return ActorID(idCounter.Add(1))
}

// String renders the id for logs and error messages.
func (id ActorID) String() string {
	if id == 0 {
		return "<nil-actor>"
	}
	return strconv.FormatUint(uint64(id), 10)
}
