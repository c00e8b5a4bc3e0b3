package transport

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/xtaci/kcp-go"

	"github.com/deqinio/actorcore/actor"
)

// kcpDataShards/kcpParityShards are the (dataShards, parityShards) pair
// handed to kcp-go's forward-error-correction layer: three parity shards
// per ten data shards, kcp-go's own recommended starting point for a
// lossy link.
const (
	kcpDataShards   = 10
	kcpParityShards = 3
)

// KCPTransport is a reliable-UDP backend for links where KCP's
// forward-error-correction and aggressive retransmission outperform TCP or
// QUIC's congestion control (xtaci/kcp-go, adapted off the connection-pool
// design in WJfmvp-zdopt's actor/network.go — one long-lived *kcp.UDPSession
// per peer instead of a pool, since this engine dials one peer at a time
// rather than fanning a single listener's backlog across workers).
type KCPTransport struct {
	engine *actor.Engine
	codec  Codec

	ln *kcp.Listener

	mu       sync.Mutex
	sessions map[string]*kcpSession
}

// kcpSession serializes writes to one *kcp.UDPSession: KCP hands back a
// single byte stream, so concurrent Send calls must not interleave frames.
type kcpSession struct {
	mu   sync.Mutex
	sess *kcp.UDPSession
}

// NewKCPTransport binds a backend to engine. codec defaults to
// actor.GobSerializer if nil.
func NewKCPTransport(engine *actor.Engine, codec Codec) *KCPTransport {
	if codec == nil {
		codec = &actor.GobSerializer{}
	}
	return &KCPTransport{engine: engine, codec: codec, sessions: make(map[string]*kcpSession)}
}

// Listen starts accepting KCP sessions on addr.
func (t *KCPTransport) Listen(addr string) (string, error) {
	if addr == "" {
		addr = ":0"
	}
	ln, err := kcp.ListenWithOptions(addr, nil, kcpDataShards, kcpParityShards)
	if err != nil {
		return "", err
	}
	t.ln = ln
	go t.acceptLoop(ln)
	return ln.Addr().String(), nil
}

func (t *KCPTransport) acceptLoop(ln *kcp.Listener) {
	for {
		sess, err := ln.AcceptKCP()
		if err != nil {
			return
		}
		go t.serve(sess)
	}
}

// serve runs the version handshake once, then reads one WireEnvelope frame
// after another off the session until it closes.
func (t *KCPTransport) serve(sess *kcp.UDPSession) {
	defer sess.Close()
	if err := readVersion(sess, AcceptedRange); err != nil {
		return
	}
	if err := writeVersion(sess, ProtocolVersion); err != nil {
		return
	}
	for {
		frame, err := readFrame(sess)
		if err != nil {
			return
		}
		var env WireEnvelope
		if err := gob.NewDecoder(bytes.NewReader(frame)).Decode(&env); err != nil {
			continue
		}
		_ = deliverLocal(t.engine, t.codec, env)
	}
}

// Dial opens (and caches) a session to addr, performing the version
// handshake once.
func (t *KCPTransport) Dial(addr string) error {
	_, err := t.session(addr)
	return err
}

// Send writes one length-prefixed, gob-encoded WireEnvelope onto the
// cached session for addr.
func (t *KCPTransport) Send(addr string, env WireEnvelope) error {
	s, err := t.session(addr)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFrame(s.sess, buf.Bytes())
}

// Close tears down the listener and every dialed session.
func (t *KCPTransport) Close() error {
	if t.ln != nil {
		_ = t.ln.Close()
	}
	t.mu.Lock()
	for _, s := range t.sessions {
		_ = s.sess.Close()
	}
	t.sessions = nil
	t.mu.Unlock()
	return nil
}

func (t *KCPTransport) session(addr string) (*kcpSession, error) {
	t.mu.Lock()
	if s, ok := t.sessions[addr]; ok {
		t.mu.Unlock()
		return s, nil
	}
	t.mu.Unlock()

	sess, err := kcp.DialWithOptions(addr, nil, kcpDataShards, kcpParityShards)
	if err != nil {
		return nil, err
	}
	if err := writeVersion(sess, ProtocolVersion); err != nil {
		_ = sess.Close()
		return nil, err
	}
	if err := readVersion(sess, AcceptedRange); err != nil {
		_ = sess.Close()
		return nil, err
	}

	s := &kcpSession{sess: sess}
	t.mu.Lock()
	t.sessions[addr] = s
	t.mu.Unlock()
	return s, nil
}
