package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/starford/engram/internal/apperr"
	"github.com/starford/engram/internal/memory"
)

// timeLayout is a fixed-width UTC layout so stored timestamps compare
// lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// AddNode inserts a node and its full-text entry. A nil When defaults to
// CreatedAt so the node is always orderable in time queries.
func (db *DB) AddNode(n *memory.MemoryNode) (uuid.UUID, error) {
	if n.When == nil {
		w := n.CreatedAt
		n.When = &w
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return uuid.Nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	whoJSON, _ := json.Marshal(nonNil(n.Who))
	tagsJSON, _ := json.Marshal(nonNil(n.Tags))
	artifactsJSON, _ := json.Marshal(nonNil(n.Artifacts))

	_, err = tx.Exec(`
		INSERT INTO nodes (id, type, what, when_ts, where_ctx, who, why, how,
		                   tags, artifacts, embedding, confidence, source,
		                   project, scope, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		n.ID.String(), string(n.Type), n.What, formatTime(*n.When), n.Where,
		string(whoJSON), n.Why, n.How, string(tagsJSON), string(artifactsJSON),
		packEmbedding(n.Embedding), n.Confidence, n.Source,
		n.Project, string(n.Scope), formatTime(n.CreatedAt), formatTime(n.UpdatedAt))
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
			return uuid.Nil, fmt.Errorf("%w: node %s", apperr.ErrDuplicate, n.ID)
		}
		return uuid.Nil, fmt.Errorf("store: insert node: %w", err)
	}

	if err := ftsUpsert(tx, n); err != nil {
		return uuid.Nil, err
	}
	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("store: commit: %w", err)
	}
	return n.ID, nil
}

// GetNode looks a node up by primary key. Absence is apperr.ErrNotFound.
func (db *DB) GetNode(id uuid.UUID) (*memory.MemoryNode, error) {
	row := db.conn.QueryRow(`
		SELECT id, type, what, when_ts, where_ctx, who, why, how,
		       tags, artifacts, embedding, confidence, source,
		       project, scope, created_at, updated_at
		FROM nodes WHERE id = ?
	`, id.String())

	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get node: %w", err)
	}
	return n, nil
}

// UpdateNode fully replaces the mutable fields of a node by id and bumps
// updated_at. Returns false when the id is absent.
func (db *DB) UpdateNode(n *memory.MemoryNode) (bool, error) {
	n.UpdatedAt = time.Now().UTC()

	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	whoJSON, _ := json.Marshal(nonNil(n.Who))
	tagsJSON, _ := json.Marshal(nonNil(n.Tags))
	artifactsJSON, _ := json.Marshal(nonNil(n.Artifacts))

	var whenVal any
	if n.When != nil {
		whenVal = formatTime(*n.When)
	}

	res, err := tx.Exec(`
		UPDATE nodes SET
			type = ?, what = ?, when_ts = ?, where_ctx = ?, who = ?,
			why = ?, how = ?, tags = ?, artifacts = ?, embedding = ?,
			confidence = ?, source = ?, project = ?, scope = ?, updated_at = ?
		WHERE id = ?
	`,
		string(n.Type), n.What, whenVal, n.Where, string(whoJSON),
		n.Why, n.How, string(tagsJSON), string(artifactsJSON),
		packEmbedding(n.Embedding), n.Confidence, n.Source,
		n.Project, string(n.Scope), formatTime(n.UpdatedAt), n.ID.String())
	if err != nil {
		return false, fmt.Errorf("store: update node: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: update node: %w", err)
	}
	if count == 0 {
		return false, tx.Commit()
	}

	if err := ftsUpsert(tx, n); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit: %w", err)
	}
	return true, nil
}

// DeleteNode removes a node, its full-text entry, and every edge touching it
// in either direction. Returns false when the id is absent.
func (db *DB) DeleteNode(id uuid.UUID) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Explicit edge cleanup in addition to the FK cascade, so behavior does
	// not depend on the foreign_keys pragma surviving the connection pool.
	if _, err := tx.Exec(`DELETE FROM edges WHERE source_id = ? OR target_id = ?`, id.String(), id.String()); err != nil {
		return false, fmt.Errorf("store: cascade edges: %w", err)
	}

	res, err := tx.Exec(`DELETE FROM nodes WHERE id = ?`, id.String())
	if err != nil {
		return false, fmt.Errorf("store: delete node: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: delete node: %w", err)
	}

	ftsDelete(tx, id.String())

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit: %w", err)
	}
	return count > 0, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*memory.MemoryNode, error) {
	var (
		n                        memory.MemoryNode
		idStr, typeStr, scopeStr string
		whenStr                  sql.NullString
		whoJSON, tagsJSON        string
		artifactsJSON            string
		embedding                []byte
		createdStr, updatedStr   string
	)

	err := s.Scan(&idStr, &typeStr, &n.What, &whenStr, &n.Where, &whoJSON,
		&n.Why, &n.How, &tagsJSON, &artifactsJSON, &embedding, &n.Confidence,
		&n.Source, &n.Project, &scopeStr, &createdStr, &updatedStr)
	if err != nil {
		return nil, err
	}

	n.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	n.Type = memory.NodeType(typeStr)
	n.Scope = memory.Scope(scopeStr)

	if whenStr.Valid {
		t, err := parseTime(whenStr.String)
		if err != nil {
			return nil, fmt.Errorf("parse when: %w", err)
		}
		n.When = &t
	}
	if n.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if n.UpdatedAt, err = parseTime(updatedStr); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	_ = json.Unmarshal([]byte(whoJSON), &n.Who)
	_ = json.Unmarshal([]byte(tagsJSON), &n.Tags)
	_ = json.Unmarshal([]byte(artifactsJSON), &n.Artifacts)
	n.Embedding = unpackEmbedding(embedding)

	return &n, nil
}

// packEmbedding serializes a float vector as little-endian float32 bytes.
func packEmbedding(v []float32) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(f))
	}
	return out
}

func unpackEmbedding(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
