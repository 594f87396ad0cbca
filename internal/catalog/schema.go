// Package catalog keeps a SQLite summary of the collection files in a data
// directory and follows changes to them with a file system watcher.
package catalog

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/jsondb/internal/storage"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS collections (
	file        TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	checksum    TEXT NOT NULL DEFAULT '',
	size        INTEGER NOT NULL DEFAULT 0,
	records     INTEGER NOT NULL DEFAULT 0,
	corrupt     INTEGER NOT NULL DEFAULT 0,
	modified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	synced_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_collections_kind ON collections(kind);
`

// DB wraps a sql.DB with catalog-specific operations.
type DB struct {
	conn   *sql.DB
	kindOf KindFunc
}

// Option configures a DB.
type Option func(*DB)

// WithKindFunc sets how file names map to kinds. The default strips ".json".
func WithKindFunc(fn KindFunc) Option {
	return func(db *DB) {
		if fn != nil {
			db.kindOf = fn
		}
	}
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	db := &DB{conn: conn, kindOf: storage.KindOf}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// KindOf returns the record kind stored in file.
func (db *DB) KindOf(file string) string {
	return db.kindOf(file)
}
