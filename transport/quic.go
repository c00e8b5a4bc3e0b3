package transport

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/gob"
	"math/big"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/deqinio/actorcore/actor"
)

// QUICTransport is a single multiplexed, encrypted UDP connection per peer
// instead of gRPC's HTTP/2 stack: every Send opens a fresh bidirectional
// stream on a cached *quic.Conn, so a large number of peers share one
// handshake each instead of one TCP connection each.
type QUICTransport struct {
	engine *actor.Engine
	codec  Codec
	tlsCfg *tls.Config

	ln *quic.Listener

	mu    sync.Mutex
	conns map[string]*quic.Conn
}

// NewQUICTransport binds a backend to engine. codec defaults to
// actor.GobSerializer if nil.
func NewQUICTransport(engine *actor.Engine, codec Codec) *QUICTransport {
	if codec == nil {
		codec = &actor.GobSerializer{}
	}
	return &QUICTransport{engine: engine, codec: codec, conns: make(map[string]*quic.Conn)}
}

// Listen starts accepting QUIC connections on addr using a freshly
// generated self-signed certificate (this backend is meant for
// node-to-node traffic inside a trusted deployment, not public ingress).
func (t *QUICTransport) Listen(addr string) (string, error) {
	if addr == "" {
		addr = ":0"
	}
	tlsCfg, err := generateTLSConfig()
	if err != nil {
		return "", err
	}
	t.tlsCfg = tlsCfg
	ln, err := quic.ListenAddr(addr, tlsCfg, nil)
	if err != nil {
		return "", err
	}
	t.ln = ln
	go t.acceptLoop(ln)
	return ln.Addr().String(), nil
}

func (t *QUICTransport) acceptLoop(ln *quic.Listener) {
	for {
		conn, err := ln.Accept(context.Background())
		if err != nil {
			return
		}
		go t.serveConn(conn)
	}
}

// serveConn runs the handshake on the connection's first stream, then
// treats every subsequent stream as one WireEnvelope.
func (t *QUICTransport) serveConn(conn *quic.Conn) {
	first, err := conn.AcceptStream(context.Background())
	if err != nil {
		return
	}
	if err := readVersion(first, AcceptedRange); err != nil {
		_ = first.Close()
		return
	}
	if err := writeVersion(first, ProtocolVersion); err != nil {
		_ = first.Close()
		return
	}
	_ = first.Close()

	for {
		stream, err := conn.AcceptStream(context.Background())
		if err != nil {
			return
		}
		go t.serveEnvelopeStream(stream)
	}
}

func (t *QUICTransport) serveEnvelopeStream(stream *quic.Stream) {
	defer stream.Close()
	frame, err := readFrame(stream)
	if err != nil {
		return
	}
	var env WireEnvelope
	if err := gob.NewDecoder(bytes.NewReader(frame)).Decode(&env); err != nil {
		return
	}
	_ = deliverLocal(t.engine, t.codec, env)
}

// Dial opens (and caches) a *quic.Conn to addr, performing the version
// handshake once per connection.
func (t *QUICTransport) Dial(addr string) error {
	_, err := t.conn(addr)
	return err
}

// Send opens a fresh stream on the cached connection to addr and writes
// one length-prefixed, gob-encoded WireEnvelope.
func (t *QUICTransport) Send(addr string, env WireEnvelope) error {
	conn, err := t.conn(addr)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return err
	}
	return writeFrame(stream, buf.Bytes())
}

// Close tears down the listener and every dialed connection.
func (t *QUICTransport) Close() error {
	if t.ln != nil {
		_ = t.ln.Close()
	}
	t.mu.Lock()
	for _, c := range t.conns {
		_ = c.CloseWithError(0, "transport closed")
	}
	t.conns = nil
	t.mu.Unlock()
	return nil
}

func (t *QUICTransport) conn(addr string) (*quic.Conn, error) {
	t.mu.Lock()
	if c, ok := t.conns[addr]; ok {
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tlsCfg := &tls.Config{InsecureSkipVerify: true, NextProtos: []string{"actorcore"}}
	conn, err := quic.DialAddr(ctx, addr, tlsCfg, nil)
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	if err := writeVersion(stream, ProtocolVersion); err != nil {
		return nil, err
	}
	if err := readVersion(stream, AcceptedRange); err != nil {
		return nil, err
	}
	_ = stream.Close()

	t.mu.Lock()
	t.conns[addr] = conn
	t.mu.Unlock()
	return conn, nil
}

// generateTLSConfig produces a throwaway self-signed certificate, the same
// pattern quic-go's own examples use for node-to-node deployments that
// don't front a public CA.
func generateTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{SerialNumber: big.NewInt(1)}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"actorcore"},
	}, nil
}
