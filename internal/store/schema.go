// Package store provides SQLite-backed persistence for the memory graph
// with indexed lookups and optional FTS5 full-text search.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS nodes (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	what       TEXT NOT NULL,
	when_ts    TEXT,
	where_ctx  TEXT NOT NULL DEFAULT '',
	who        TEXT NOT NULL DEFAULT '[]',
	why        TEXT NOT NULL DEFAULT '',
	how        TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	artifacts  TEXT NOT NULL DEFAULT '[]',
	embedding  BLOB,
	confidence REAL NOT NULL DEFAULT 1.0,
	source     TEXT NOT NULL DEFAULT '',
	project    TEXT NOT NULL DEFAULT '',
	scope      TEXT NOT NULL DEFAULT 'branch',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS edges (
	id         TEXT PRIMARY KEY,
	source_id  TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	target_id  TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
	type       TEXT NOT NULL,
	weight     REAL NOT NULL DEFAULT 1.0,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nodes_when    ON nodes(when_ts);
CREATE INDEX IF NOT EXISTS idx_nodes_type    ON nodes(type);
CREATE INDEX IF NOT EXISTS idx_nodes_project ON nodes(project);
CREATE INDEX IF NOT EXISTS idx_nodes_scope   ON nodes(scope);
CREATE INDEX IF NOT EXISTS idx_nodes_source  ON nodes(source);
CREATE INDEX IF NOT EXISTS idx_edges_source  ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target  ON edges(target_id);
CREATE INDEX IF NOT EXISTS idx_edges_type    ON edges(type);
`

// DB wraps a sql.DB with memory-graph operations. A DB owns its connection
// exclusively; two instances must not share one database file.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
// The path is always explicit; there is no default database location here.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
