// Package persistence backs the engine's optional per-actor mailbox
// persistence hook (mailbox.Options.Persist): every record an actor
// chooses to persist before acting on it is appended here first, and can
// be replayed in id order after a crash.
package persistence

// Store is the common contract WAL and SQLStore both satisfy. Hook and
// Replay take a Store, so either backend plugs into mailbox persistence;
// nothing in this module selects one from config.Config.PersistenceBackend.
type Store interface {
	// Append writes one record. Appending an empty record is a no-op.
	Append(b []byte) error
	// Replay returns every record appended so far, in append order.
	Replay() ([][]byte, error)
	// Close releases whatever the backend holds open.
	Close() error
}

var (
	_ Store = (*WAL)(nil)
	_ Store = (*SQLStore)(nil)
)
