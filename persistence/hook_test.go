package persistence

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/deqinio/actorcore/mailbox"
)

type fakeCodec struct {
	failOn any
}

func (c fakeCodec) Marshal(v any) ([]byte, error) {
	if v == c.failOn {
		return nil, errors.New("cannot encode")
	}
	s, _ := v.(string)
	return []byte(s), nil
}

func (c fakeCodec) Unmarshal(b []byte) (any, error) { return string(b), nil }

func TestHookPersistsEncodableEnvelopes(t *testing.T) {
	store, err := OpenSQLStore("sqlite://"+filepath.Join(t.TempDir(), "hook.db"), "a")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	encode, persist := Hook(store, fakeCodec{failOn: "unencodable"})

	if data, ok := encode(mailbox.Envelope{Payload: "hello"}); !ok || string(data) != "hello" {
		t.Fatalf("encode: %v %q", ok, data)
	}
	if err := persist([]byte("hello")); err != nil {
		t.Fatalf("persist: %v", err)
	}

	if _, ok := encode(mailbox.Envelope{Payload: "unencodable"}); ok {
		t.Fatalf("expected encode to decline")
	}

	recs, err := store.Replay()
	if err != nil || len(recs) != 1 || string(recs[0]) != "hello" {
		t.Fatalf("replay: %v %#v", err, recs)
	}
}
