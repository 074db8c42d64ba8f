package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/starford/engram/internal/apperr"
	"github.com/starford/engram/internal/memory"
)

// AddEdge inserts an edge. Both endpoints are expected to exist; the store
// does not verify them beyond the cascade wiring.
func (db *DB) AddEdge(e *memory.Edge) (uuid.UUID, error) {
	metaJSON, _ := json.Marshal(e.Metadata)
	if e.Metadata == nil {
		metaJSON = []byte("{}")
	}

	_, err := db.conn.Exec(`
		INSERT INTO edges (id, source_id, target_id, type, weight, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID.String(), e.SourceID.String(), e.TargetID.String(),
		string(e.Type), e.Weight, string(metaJSON), formatTime(e.CreatedAt))
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
			return uuid.Nil, fmt.Errorf("%w: edge %s", apperr.ErrDuplicate, e.ID)
		}
		return uuid.Nil, fmt.Errorf("store: insert edge: %w", err)
	}
	return e.ID, nil
}

// GetEdges returns edges where the node participates as source (outgoing),
// target (incoming), or either (both), optionally narrowed by type. Order is
// insertion order; nothing further is guaranteed.
func (db *DB) GetEdges(nodeID uuid.UUID, dir memory.Direction, edgeType *memory.EdgeType) ([]*memory.Edge, error) {
	idStr := nodeID.String()

	query := `SELECT id, source_id, target_id, type, weight, metadata, created_at FROM edges WHERE `
	var args []any
	switch dir {
	case memory.Outgoing:
		query += `source_id = ?`
		args = append(args, idStr)
	case memory.Incoming:
		query += `target_id = ?`
		args = append(args, idStr)
	default:
		query += `(source_id = ? OR target_id = ?)`
		args = append(args, idStr, idStr)
	}
	if edgeType != nil {
		query += ` AND type = ?`
		args = append(args, string(*edgeType))
	}
	query += ` ORDER BY rowid`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get edges: %w", err)
	}
	defer rows.Close()

	var out []*memory.Edge
	for rows.Next() {
		var (
			e                     memory.Edge
			idRaw, srcRaw, dstRaw string
			typeStr, metaJSON     string
			createdStr            string
		)
		if err := rows.Scan(&idRaw, &srcRaw, &dstRaw, &typeStr, &e.Weight, &metaJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("store: scan edge: %w", err)
		}
		if e.ID, err = uuid.Parse(idRaw); err != nil {
			return nil, fmt.Errorf("store: parse edge id: %w", err)
		}
		if e.SourceID, err = uuid.Parse(srcRaw); err != nil {
			return nil, fmt.Errorf("store: parse source id: %w", err)
		}
		if e.TargetID, err = uuid.Parse(dstRaw); err != nil {
			return nil, fmt.Errorf("store: parse target id: %w", err)
		}
		e.Type = memory.EdgeType(typeStr)
		if e.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, fmt.Errorf("store: parse edge created_at: %w", err)
		}
		if metaJSON != "" && metaJSON != "{}" {
			_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// DeleteEdge removes an edge by id. Returns false when the id is absent.
func (db *DB) DeleteEdge(id uuid.UUID) (bool, error) {
	res, err := db.conn.Exec(`DELETE FROM edges WHERE id = ?`, id.String())
	if err != nil {
		return false, fmt.Errorf("store: delete edge: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: delete edge: %w", err)
	}
	return count > 0, nil
}
