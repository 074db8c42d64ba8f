package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/engram/internal/memory"
)

const defaultLimit = 100

// nodeColumns is the canonical select list matching scanNode.
const nodeColumns = `id, type, what, when_ts, where_ctx, who, why, how,
	tags, artifacts, embedding, confidence, source,
	project, scope, created_at, updated_at`

func (db *DB) queryNodes(query string, args ...any) ([]*memory.MemoryNode, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query nodes: %w", err)
	}
	defer rows.Close()

	var out []*memory.MemoryNode
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// QueryByTime returns nodes whose `when` falls inside [since, until], newest
// first. Either bound may be nil.
func (db *DB) QueryByTime(since, until *time.Time, limit int) ([]*memory.MemoryNode, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE when_ts IS NOT NULL`
	var args []any
	if since != nil {
		query += ` AND when_ts >= ?`
		args = append(args, formatTime(*since))
	}
	if until != nil {
		query += ` AND when_ts <= ?`
		args = append(args, formatTime(*until))
	}
	query += ` ORDER BY when_ts DESC LIMIT ?`
	args = append(args, limit)
	return db.queryNodes(query, args...)
}

// QueryByTimeAsc is QueryByTime with oldest-first ordering, so a limited
// query starting at `since` returns the nodes nearest to it.
func (db *DB) QueryByTimeAsc(since, until *time.Time, limit int) ([]*memory.MemoryNode, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE when_ts IS NOT NULL`
	var args []any
	if since != nil {
		query += ` AND when_ts >= ?`
		args = append(args, formatTime(*since))
	}
	if until != nil {
		query += ` AND when_ts <= ?`
		args = append(args, formatTime(*until))
	}
	query += ` ORDER BY when_ts ASC LIMIT ?`
	args = append(args, limit)
	return db.queryNodes(query, args...)
}

// QueryByTags returns nodes whose tag set intersects tags (matchAll=false)
// or contains every query tag (matchAll=true). The store over-fetches id+tags
// rows and filters in memory; the contract is correctness, not plan shape.
func (db *DB) QueryByTags(tags []string, matchAll bool, limit int) ([]*memory.MemoryNode, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := db.conn.Query(`SELECT id, tags FROM nodes ORDER BY rowid LIMIT ?`, limit*10)
	if err != nil {
		return nil, fmt.Errorf("store: query tags: %w", err)
	}
	defer rows.Close()

	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[t] = struct{}{}
	}

	var ids []uuid.UUID
	for rows.Next() {
		var idStr, tagsJSON string
		if err := rows.Scan(&idStr, &tagsJSON); err != nil {
			return nil, fmt.Errorf("store: scan tags: %w", err)
		}
		var nodeTags []string
		_ = json.Unmarshal([]byte(tagsJSON), &nodeTags)

		if !tagsMatch(nodeTags, want, matchAll) {
			continue
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("store: parse id: %w", err)
		}
		ids = append(ids, id)
		if len(ids) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*memory.MemoryNode, 0, len(ids))
	for _, id := range ids {
		n, err := db.GetNode(id)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func tagsMatch(nodeTags []string, want map[string]struct{}, matchAll bool) bool {
	if matchAll {
		have := make(map[string]struct{}, len(nodeTags))
		for _, t := range nodeTags {
			have[t] = struct{}{}
		}
		for t := range want {
			if _, ok := have[t]; !ok {
				return false
			}
		}
		return true
	}
	for _, t := range nodeTags {
		if _, ok := want[t]; ok {
			return true
		}
	}
	return false
}

// QueryByTextFiltered intersects a full-text search with the project/scope
// partition described by filter.
func (db *DB) QueryByTextFiltered(query string, filter ScopeFilter, limit int) ([]*memory.MemoryNode, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if filter == (ScopeFilter{}) {
		return db.QueryByText(query, limit)
	}

	// Over-fetch text matches, then keep the ones inside the partition.
	matches, err := db.QueryByText(query, limit*10)
	if err != nil {
		return nil, err
	}
	var out []*memory.MemoryNode
	for _, n := range matches {
		if !filter.admits(n) {
			continue
		}
		out = append(out, n)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f ScopeFilter) admits(n *memory.MemoryNode) bool {
	if f.RootsOnly {
		return n.Scope == memory.ScopeRoot
	}
	if f.Project != "" {
		return n.Project == f.Project || n.Scope == memory.ScopeRoot
	}
	return true
}

// QueryByEmbedding is reserved for semantic search. It intentionally returns
// an empty result set; similarity search is not implemented.
func (db *DB) QueryByEmbedding(_ []float32, _ int) ([]*memory.QueryResult, error) {
	return []*memory.QueryResult{}, nil
}

// FindBySourceHash looks for a node whose source field carries the given
// dedup fingerprint using the "hash:<v>" convention.
func (db *DB) FindBySourceHash(hash string) (uuid.UUID, bool, error) {
	var idStr string
	err := db.conn.QueryRow(
		`SELECT id FROM nodes WHERE source LIKE ? LIMIT 1`,
		"%hash:"+hash+"%",
	).Scan(&idStr)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("store: find by source hash: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("store: parse id: %w", err)
	}
	return id, true, nil
}
