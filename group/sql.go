package group

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/deqinio/actorcore/actor"
)

// SQLGroup stores (group_name, actor_id) subscription rows using the same
// database/sql driver set persistence.SQLStore uses, for multi-process
// deployments where group membership needs to outlive any one Engine.
// Members resolves every stored actor_id back to a Ref through the local
// Engine it was constructed with — a subscriber row for an id the local
// Engine doesn't currently host is simply not resolvable and is skipped,
// matching how a dead actor's Ref would behave locally.
type SQLGroup struct {
	engine *actor.Engine
	db     *sql.DB
	driver string
}

// OpenSQLGroup opens (and migrates, if needed) a SQL-backed group
// membership store bound to engine for Ref resolution. dsn uses the same
// "sqlite://"/"mysql://"/"postgres://" scheme prefixes as
// persistence.OpenSQLStore.
func OpenSQLGroup(engine *actor.Engine, dsn string) (*SQLGroup, error) {
	driver, source, err := splitDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}
	g := &SQLGroup{engine: engine, db: db, driver: driver}
	if err := g.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return g, nil
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
		return "", "", fmt.Errorf("group: unrecognized DSN scheme: %q", dsn)
	}
}

func (g *SQLGroup) placeholder(n int) string {
	if g.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (g *SQLGroup) migrate() error {
	_, err := g.db.Exec(`CREATE TABLE IF NOT EXISTS group_members (
		group_name TEXT   NOT NULL,
		actor_id   BIGINT NOT NULL,
		PRIMARY KEY (group_name, actor_id)
	)`)
	return err
}

// Join implements actor.GroupProvider.
func (g *SQLGroup) Join(name string, member *actor.Ref) error {
	q := fmt.Sprintf(`INSERT INTO group_members (group_name, actor_id) VALUES (%s, %s)`,
		g.placeholder(1), g.placeholder(2))
	if g.driver != "postgres" {
		q += ` ON CONFLICT DO NOTHING`
	} else {
		q += ` ON CONFLICT (group_name, actor_id) DO NOTHING`
	}
	_, err := g.db.Exec(q, name, uint64(member.ID()))
	return err
}

// Leave implements actor.GroupProvider.
func (g *SQLGroup) Leave(name string, member *actor.Ref) error {
	q := fmt.Sprintf(`DELETE FROM group_members WHERE group_name = %s AND actor_id = %s`,
		g.placeholder(1), g.placeholder(2))
	_, err := g.db.Exec(q, name, uint64(member.ID()))
	return err
}

// Members implements actor.GroupProvider: every subscriber row that still
// resolves to a live Ref in g's Engine.
func (g *SQLGroup) Members(name string) []*actor.Ref {
	q := fmt.Sprintf(`SELECT actor_id FROM group_members WHERE group_name = %s`, g.placeholder(1))
	rows, err := g.db.Query(q, name)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []*actor.Ref
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			continue
		}
		if ref, ok := g.engine.RefByID(actor.ActorID(id)); ok {
			out = append(out, ref)
		}
	}
	return out
}

// Close releases the underlying database handle.
func (g *SQLGroup) Close() error { return g.db.Close() }
