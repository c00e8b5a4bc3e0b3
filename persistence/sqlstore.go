package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrUnrecognizedDSN is returned by OpenSQLStore when dsn's scheme doesn't
// match any of the three drivers this package wires in.
var ErrUnrecognizedDSN = errors.New("persistence: unrecognized DSN scheme")

// SQLStore is a database/sql-backed Store, storing the same length-implied
// records WAL appends as rows in a mailbox_log table. Its DSN is the kind
// of value config.Config.PersistenceBackend holds besides the literal
// "wal"; nothing in this module picks the store from that field. Local
// development reaches for
// github.com/mattn/go-sqlite3, networked deployments for
// github.com/go-sql-driver/mysql or github.com/lib/pq, matching the driver
// set the rest of this engine's dependency set already carries.
type SQLStore struct {
	mu      sync.Mutex
	db      *sql.DB
	driver  string
	actorID string
	seq     int64
}

// OpenSQLStore opens (and migrates, if needed) a SQL-backed store scoped
// to actorID. dsn must be prefixed with one of "sqlite://", "mysql://",
// "postgres://" or "postgresql://"; everything after the scheme is passed
// through to the matching driver's sql.Open unchanged, except for sqlite
// where the "sqlite://" prefix is simply stripped to leave a file path.
func OpenSQLStore(dsn, actorID string) (*SQLStore, error) {
	driver, source, err := splitDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}
	s := &SQLStore{db: db, driver: driver, actorID: actorID}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.loadSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func splitDSN(dsn string) (driver, source string, err error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://"), nil
	case strings.HasPrefix(dsn, "mysql://"):
		return "mysql", strings.TrimPrefix(dsn, "mysql://"), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	default:
		return "", "", ErrUnrecognizedDSN
	}
}

// placeholder returns the n-th bound-parameter placeholder in this store's
// driver dialect: lib/pq wants $1, $2, ...; go-sqlite3 and go-sql-driver
// both accept plain "?".
func (s *SQLStore) placeholder(n int) string {
	if s.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS mailbox_log (
		actor_id TEXT NOT NULL,
		seq      BIGINT NOT NULL,
		payload  BLOB NOT NULL,
		PRIMARY KEY (actor_id, seq)
	)`)
	return err
}

func (s *SQLStore) loadSeq() error {
	q := fmt.Sprintf(`SELECT COALESCE(MAX(seq), 0) FROM mailbox_log WHERE actor_id = %s`, s.placeholder(1))
	return s.db.QueryRow(q, s.actorID).Scan(&s.seq)
}

// Append implements Store: insert b as the next sequence number for this
// store's actor. An empty record is a no-op, matching WAL.
func (s *SQLStore) Append(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	q := fmt.Sprintf(`INSERT INTO mailbox_log (actor_id, seq, payload) VALUES (%s, %s, %s)`,
		s.placeholder(1), s.placeholder(2), s.placeholder(3))
	if _, err := s.db.Exec(q, s.actorID, s.seq, b); err != nil {
		s.seq--
		return err
	}
	return nil
}

// Replay implements Store: every record for this store's actor, ordered by
// sequence number.
func (s *SQLStore) Replay() ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := fmt.Sprintf(`SELECT payload FROM mailbox_log WHERE actor_id = %s ORDER BY seq ASC`, s.placeholder(1))
	rows, err := s.db.Query(q, s.actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		out = append(out, payload)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
