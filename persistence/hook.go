package persistence

import "github.com/deqinio/actorcore/mailbox"

// Codec mirrors actor.Serializer's shape so this package doesn't need to
// import actor just to accept one; actor.GobSerializer satisfies it
// directly.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte) (any, error)
}

// Hook builds the mailbox.Options.EncodeForPersist/Persist pair that
// appends every envelope codec can actually encode to store before it
// becomes visible to the owning actor. Envelopes codec can't encode —
// internal system messages, anything still carrying a live Ref — are
// silently skipped rather than failing the send: persistence here is
// best-effort replay of user-level history, not a wire contract the core
// depends on (mirrored on spec.md §1's non-goal that serialization stays
// out of the core).
func Hook(store Store, codec Codec) (encode func(mailbox.Envelope) ([]byte, bool), persist func([]byte) error) {
	encode = func(env mailbox.Envelope) ([]byte, bool) {
		b, err := codec.Marshal(env.Payload)
		if err != nil {
			return nil, false
		}
		return b, true
	}
	return encode, store.Append
}

// Replay decodes every record store holds into mailbox.Envelope values
// suitable for mailbox.Options.Seed, restoring a restarted actor's
// backlog the way the teacher's BaseActor.Start replayed its WAL back
// into a fresh mailbox before resuming. A record codec can't decode is
// skipped rather than failing the whole replay — the same best-effort
// stance Hook takes on the write side.
func Replay(store Store, codec Codec) ([]mailbox.Envelope, error) {
	recs, err := store.Replay()
	if err != nil {
		return nil, err
	}
	out := make([]mailbox.Envelope, 0, len(recs))
	for _, b := range recs {
		v, err := codec.Unmarshal(b)
		if err != nil {
			continue
		}
		out = append(out, mailbox.Envelope{Payload: v})
	}
	return out, nil
}
