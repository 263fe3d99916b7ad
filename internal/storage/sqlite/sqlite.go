// Package sqlite stores selections in an embedded SQLite database.
package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/cory-johannsen/crystalpowers/internal/game/selection"
)

const schema = `
CREATE TABLE IF NOT EXISTS selections (
	actor_id TEXT PRIMARY KEY,
	power    TEXT NOT NULL
);`

// DB is a selection.Repository backed by SQLite.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates the database at path and ensures the schema exists.
//
// Precondition: path must be a writable file path.
// Postcondition: Returns an open DB, or an error. Callers must Close it.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// LoadAll returns every stored selection ordered by actor id.
func (db *DB) LoadAll(ctx context.Context) ([]selection.Entry, error) {
	var entries []selection.Entry
	if err := db.conn.SelectContext(ctx, &entries,
		"SELECT actor_id, power FROM selections ORDER BY actor_id"); err != nil {
		return nil, fmt.Errorf("querying selections: %w", err)
	}
	return entries, nil
}

// ReplaceAll replaces the table contents with entries in one transaction.
func (db *DB) ReplaceAll(ctx context.Context, entries []selection.Entry) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM selections"); err != nil {
		return fmt.Errorf("clearing selections: %w", err)
	}
	for _, e := range entries {
		if _, err := tx.NamedExecContext(ctx,
			"INSERT INTO selections (actor_id, power) VALUES (:actor_id, :power)", e); err != nil {
			return fmt.Errorf("inserting selection %s: %w", e.ActorID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
