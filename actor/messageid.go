package actor

import "sync/atomic"

// MessageID is the 64-bit bitfield described in spec §3 "Message id": a
// monotonically increasing request-id field, a response bit, a
// high-priority bit and a flow-controlled bit.
//
// Layout (MSB to LSB): [response:1][priority:1][flow:1][base:61].
// Two request ids are equal iff their base fields match; the response of
// request r has the same base with the response bit set.
type MessageID uint64

const (
	midResponseBit MessageID = 1 << 63
	midPriorityBit MessageID = 1 << 62
	midFlowBit     MessageID = 1 << 61
	midBaseMask    MessageID = midFlowBit - 1
)

// requestCounter hands out the base field of fresh request ids.
var requestCounter atomic.Uint64

// NewRequestID allocates a fresh base request id with no bits set.
func NewRequestID() MessageID {
	return MessageID(requestCounter.Add(1)) & midBaseMask
}

// Base returns the request-id component, stripped of the response,
// priority and flow-controlled bits.
func (m MessageID) Base() MessageID { return m & midBaseMask }

// IsResponse reports whether the response bit is set.
func (m MessageID) IsResponse() bool { return m&midResponseBit != 0 }

// AsResponse returns the response-bit-set counterpart of a request id: the
// response of request r.
func (m MessageID) AsResponse() MessageID { return m.Base() | midResponseBit }

// IsHighPriority reports whether the high-priority bit is set.
func (m MessageID) IsHighPriority() bool { return m&midPriorityBit != 0 }

// WithHighPriority returns m with the high-priority bit set.
func (m MessageID) WithHighPriority() MessageID { return m | midPriorityBit }

// IsFlowControlled reports whether the flow-controlled bit is set.
func (m MessageID) IsFlowControlled() bool { return m&midFlowBit != 0 }

// WithFlowControlled returns m with the flow-controlled bit set.
func (m MessageID) WithFlowControlled() MessageID { return m | midFlowBit }

// Valid reports whether m carries a nonzero base request id. A zero
// MessageID denotes "no request in play" (an anonymous send).
func (m MessageID) Valid() bool { return m.Base() != 0 }

// SameRequest reports whether m and other answer the same request,
// irrespective of the response bit.
func (m MessageID) SameRequest(other MessageID) bool { return m.Base() == other.Base() }
