//go:build !sqlite_fts5

package store

import (
	"database/sql"

	"github.com/starford/engram/internal/memory"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not compiled in; full-text search uses a LIKE fallback over the
	// node columns.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ *memory.MemoryNode) error {
	// Content already lives in the nodes table; nothing extra to index.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// QueryByText performs a LIKE-based search over what/why/how/tags (fallback
// when FTS5 is not compiled in).
func (db *DB) QueryByText(query string, limit int) ([]*memory.MemoryNode, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	like := "%" + query + "%"
	return db.queryNodes(`
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE what LIKE ? OR why LIKE ? OR how LIKE ? OR tags LIKE ?
		LIMIT ?
	`, like, like, like, like, limit)
}
