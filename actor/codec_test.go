package actor

import (
	"errors"
	"testing"

	"github.com/deqinio/actorcore/mailbox"
)

func TestGobSerializerMarshalUnmarshal(t *testing.T) {
	var s GobSerializer
	b, err := s.Marshal("hello")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	v, err := s.Unmarshal(b)
	if err != nil || v.(string) != "hello" {
		t.Fatalf("unmarshal: %v %#v", err, v)
	}
}

func TestGobSerializerEncodeDecodeReplayedRoundTrip(t *testing.T) {
	var s GobSerializer
	id := NewRequestID().WithHighPriority()
	menv := mailbox.Envelope{Payload: Envelope{Payload: "ping", ID: id}}

	data, ok := s.EncodeForPersist(menv)
	if !ok {
		t.Fatalf("expected encode to accept a senderless envelope")
	}

	out, err := s.DecodeReplayed(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Priority != mailbox.High {
		t.Fatalf("expected replayed envelope to keep its high priority")
	}
	env, ok := out.Payload.(Envelope)
	if !ok || env.Payload.(string) != "ping" || !env.ID.SameRequest(id) {
		t.Fatalf("unexpected decoded envelope: %#v", out)
	}
}

func TestGobSerializerEncodeForPersistDeclinesLiveSender(t *testing.T) {
	var s GobSerializer
	sender := &Ref{}
	menv := mailbox.Envelope{Payload: Envelope{Payload: "ping", Sender: sender}}
	if _, ok := s.EncodeForPersist(menv); ok {
		t.Fatalf("expected encode to decline an envelope with a live sender")
	}
}

func TestGobSerializerDecodeReplayedRejectsForeignData(t *testing.T) {
	var s GobSerializer
	b, err := s.Marshal("not a persist record")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := s.DecodeReplayed(b); !errors.Is(err, errNotPersistRecord) {
		t.Fatalf("expected errNotPersistRecord, got %v", err)
	}
}
