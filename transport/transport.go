// Package transport generalizes the engine's remote-delivery surface
// (spec.md §6 "Envelope contract from transports": enqueue plus
// queue-closed bouncing) behind one interface with three concrete
// backends — gRPC, QUIC and KCP — so a deployment can pick the transport
// that fits its network instead of being wired to one wire protocol.
package transport

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/Masterminds/semver/v3"

	"github.com/deqinio/actorcore/actor"
)

// ProtocolVersion is this build's wire version, advertised during every
// handshake. AcceptedRange is the range of peer versions a node will talk
// to; bump the major component on a breaking WireEnvelope change.
const ProtocolVersion = "1.0.0"

// AcceptedRange is the semver constraint every backend in this package
// checks a peer's advertised version against before the first envelope is
// allowed to cross the wire.
var AcceptedRange = mustConstraint(">=1.0.0, <2.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// semverParse parses a peer's advertised version string, shared by every
// backend's handshake/per-call version check.
func semverParse(s string) (*semver.Version, error) { return semver.NewVersion(s) }

// ErrVersionMismatch is returned when a peer's advertised protocol version
// falls outside AcceptedRange.
var ErrVersionMismatch = errors.New("transport: peer protocol version rejected")

// ErrRateLimited is returned by Resilient.Send when a peer's token bucket
// has no tokens left.
var ErrRateLimited = errors.New("transport: peer rate limited")

// WireEnvelope is the one record every backend in this package puts on the
// wire, gob-encoded (mirroring the teacher's remoteEnvelope design in
// actor/remote.go, generalized off *System/*BaseActor naming).
type WireEnvelope struct {
	ToName   string
	FromName string
	Payload  []byte
	// HighPriority carries the sender's actor.MessageID high-priority bit
	// across the wire, so a Resilient transport can let it bypass the
	// peer's token bucket the way a local High mailbox.Priority envelope
	// bypasses mailbox ordering.
	HighPriority bool
}

// Codec is the serializer every backend uses to turn a WireEnvelope's
// Payload into a user message and back. actor.GobSerializer satisfies it
// directly.
type Codec = actor.Serializer

// Transport is the contract every backend satisfies: listen for peers,
// dial one, and hand decoded envelopes to a local Engine.
type Transport interface {
	// Listen starts accepting peer connections on addr (":0" picks a free
	// port) and returns the address actually bound.
	Listen(addr string) (string, error)
	// Dial opens a connection to a peer's Listen address, suitable for
	// calling Send repeatedly.
	Dial(addr string) error
	// Send delivers env to the peer listening at addr.
	Send(addr string, env WireEnvelope) error
	// Close tears down every listener and dialed connection.
	Close() error
}

// deliverLocal resolves env.ToName against engine's name registry and
// tells the decoded payload to it. Remote senders have no local Ref, so
// delivery is always anonymous from the receiving actor's point of view;
// FromName is carried for diagnostics and application-level reply routing
// only.
func deliverLocal(engine *actor.Engine, codec Codec, env WireEnvelope) error {
	target, ok := engine.Lookup(env.ToName)
	if !ok {
		return actor.ErrActorNotFound
	}
	msg, err := codec.Unmarshal(env.Payload)
	if err != nil {
		return err
	}
	return target.Tell(nil, msg, actor.SendOptions{HighPriority: env.HighPriority})
}

// writeVersion writes a length-prefixed version string, the first thing
// every QUIC/KCP connection exchanges before any WireEnvelope.
func writeVersion(w io.Writer, version string) error {
	b := []byte(version)
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readVersion reads a length-prefixed version string and checks it against
// accept, the counterpart to writeVersion.
func readVersion(r io.Reader, accept *semver.Constraints) error {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > 256 {
		return ErrVersionMismatch
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	peer, err := semver.NewVersion(string(buf))
	if err != nil {
		return err
	}
	if !accept.Check(peer) {
		return ErrVersionMismatch
	}
	return nil
}

// writeFrame/readFrame implement the length-prefixed gob framing QUIC and
// KCP use to carry WireEnvelope values over their raw byte streams.
func writeFrame(w io.Writer, b []byte) error {
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
