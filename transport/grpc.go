package transport

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/deqinio/actorcore/actor"
)

// gobCodec implements gRPC's encoding.Codec using Go's native gob format,
// adapted unchanged from the teacher's actor/remote.go — gob is not
// cross-language, so this backend only ever talks to another instance of
// this engine.
type gobCodec struct{}

func (gobCodec) Name() string { return "gob" }

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// versionedEnvelope rides alongside WireEnvelope on the wire; gRPC's unary
// call shape has no persistent-connection handshake, so the version is
// checked per call instead of once per connection (unlike the QUIC/KCP
// backends below).
type versionedEnvelope struct {
	Version string
	Env     WireEnvelope
}

type remoteAck struct {
	OK  bool
	Err string
}

// remoteServer is the gRPC service every GRPCTransport registers; the
// teacher's RemoteServer interface, generalized off *System.
type remoteServer interface {
	Deliver(context.Context, *versionedEnvelope) (*remoteAck, error)
}

// GRPCTransport is the gRPC+gob backend (adapted from the teacher's
// remoteTransport in actor/remote.go): HTTP/2 multiplexing and gRPC's
// connection management for free, at the cost of gob's Go-only wire
// format.
type GRPCTransport struct {
	engine *actor.Engine
	codec  Codec

	server *grpc.Server
	lis    net.Listener
	addr   string

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewGRPCTransport binds a backend to engine, delivering every inbound
// envelope to engine's locally registered actors. codec defaults to
// actor.GobSerializer if nil.
func NewGRPCTransport(engine *actor.Engine, codec Codec) *GRPCTransport {
	if codec == nil {
		codec = &actor.GobSerializer{}
	}
	return &GRPCTransport{engine: engine, codec: codec, conns: make(map[string]*grpc.ClientConn)}
}

// Listen starts a gRPC server on addr (default :50051).
func (t *GRPCTransport) Listen(addr string) (string, error) {
	if addr == "" {
		addr = ":50051"
	}
	encoding.RegisterCodec(gobCodec{})
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	t.lis = lis
	t.addr = lis.Addr().String()
	t.server = grpc.NewServer(grpc.ForceServerCodec(gobCodec{}))
	t.register(t.server)
	go func() { _ = t.server.Serve(lis) }()
	return t.addr, nil
}

// Dial creates (or reuses) the cached client connection for addr. Send
// does the same on first use, so calling Dial beforehand is optional;
// this matches the teacher's remoteTransport.conn pooling.
func (t *GRPCTransport) Dial(addr string) error {
	_, err := t.conn(addr)
	return err
}

// Send delivers env to the peer listening at addr, advertising
// ProtocolVersion alongside it for the server to check.
func (t *GRPCTransport) Send(addr string, env WireEnvelope) error {
	conn, err := t.conn(addr)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	in := &versionedEnvelope{Version: ProtocolVersion, Env: env}
	var ack remoteAck
	if err := conn.Invoke(ctx, "/actorcore.Remote/Deliver", in, &ack, grpc.ForceCodec(gobCodec{})); err != nil {
		return err
	}
	if !ack.OK && ack.Err != "" {
		return errors.New(ack.Err)
	}
	return nil
}

// Close tears down the server and every dialed connection.
func (t *GRPCTransport) Close() error {
	if t.server != nil {
		t.server.Stop()
	}
	if t.lis != nil {
		_ = t.lis.Close()
	}
	t.mu.Lock()
	for _, c := range t.conns {
		_ = c.Close()
	}
	t.conns = nil
	t.mu.Unlock()
	return nil
}

func (t *GRPCTransport) conn(addr string) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[addr]; ok {
		return c, nil
	}
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithDefaultCallOptions(grpc.ForceCodec(gobCodec{})))
	if err != nil {
		return nil, err
	}
	t.conns[addr] = cc
	return cc, nil
}

func (t *GRPCTransport) register(srv *grpc.Server) {
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: "actorcore.Remote",
		HandlerType: (*remoteServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Deliver",
				Handler: func(s any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
					var in versionedEnvelope
					if err := dec(&in); err != nil {
						return nil, err
					}
					return t.Deliver(ctx, &in)
				},
			},
		},
		Streams:  nil,
		Metadata: "gob",
	}, t)
}

// Deliver is the gRPC handler backing the Remote service: check the peer's
// advertised version, then hand the decoded payload to engine.
func (t *GRPCTransport) Deliver(_ context.Context, in *versionedEnvelope) (*remoteAck, error) {
	peer, err := semverParse(in.Version)
	if err != nil || !AcceptedRange.Check(peer) {
		return &remoteAck{OK: false, Err: ErrVersionMismatch.Error()}, nil
	}
	if err := deliverLocal(t.engine, t.codec, in.Env); err != nil {
		return &remoteAck{OK: false, Err: err.Error()}, nil
	}
	return &remoteAck{OK: true}, nil
}
