//go:build sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/engram/internal/memory"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
			id UNINDEXED,
			what,
			why,
			how,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, n *memory.MemoryNode) error {
	_, _ = tx.Exec(`DELETE FROM nodes_fts WHERE id = ?`, n.ID.String())
	_, err := tx.Exec(`INSERT INTO nodes_fts (id, what, why, how, tags) VALUES (?, ?, ?, ?, ?)`,
		n.ID.String(), n.What, n.Why, n.How, strings.Join(n.Tags, " "))
	if err != nil {
		return fmt.Errorf("store: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM nodes_fts WHERE id = ?`, id)
}

// QueryByText performs an FTS5 MATCH over what/why/how/tags and resolves the
// hits to full nodes, best match first.
func (db *DB) QueryByText(query string, limit int) ([]*memory.MemoryNode, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return db.queryNodes(`
		SELECT `+nodeColumns+`
		FROM nodes
		WHERE id IN (
			SELECT id FROM nodes_fts WHERE nodes_fts MATCH ? ORDER BY rank LIMIT ?
		)
	`, query, limit)
}
