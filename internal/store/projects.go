package store

import (
	"fmt"

	"github.com/starford/engram/internal/memory"
)

// QueryByProject returns nodes belonging to a project tree. With includeRoots
// set, root-scoped nodes from any project join the result (they are shared
// knowledge). Results are deduplicated by id and ordered newest first.
func (db *DB) QueryByProject(project string, includeRoots bool, limit int) ([]*memory.MemoryNode, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE project = ?`
	args := []any{project}
	if includeRoots {
		query = `SELECT ` + nodeColumns + ` FROM nodes WHERE project = ? OR scope = ?`
		args = append(args, string(memory.ScopeRoot))
	}
	query += ` ORDER BY when_ts DESC LIMIT ?`
	args = append(args, limit)
	return db.queryNodes(query, args...)
}

// QueryRootsOnly returns every root-scoped node regardless of project.
func (db *DB) QueryRootsOnly(limit int) ([]*memory.MemoryNode, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	return db.queryNodes(
		`SELECT `+nodeColumns+` FROM nodes WHERE scope = ? ORDER BY when_ts DESC LIMIT ?`,
		string(memory.ScopeRoot), limit)
}

// AllProjects returns the distinct non-empty project names.
func (db *DB) AllProjects() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT project FROM nodes WHERE project != '' ORDER BY project`)
	if err != nil {
		return nil, fmt.Errorf("store: all projects: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProjectStats computes per-project node/branch/root counts plus the total
// and orphan (project-less) root counts, straight from live data.
func (db *DB) ProjectStats() (*ProjectStats, error) {
	rows, err := db.conn.Query(`
		SELECT project,
		       COUNT(*),
		       SUM(CASE WHEN scope = 'branch' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN scope = 'root' THEN 1 ELSE 0 END)
		FROM nodes
		WHERE project != ''
		GROUP BY project
		ORDER BY project
	`)
	if err != nil {
		return nil, fmt.Errorf("store: project stats: %w", err)
	}
	defer rows.Close()

	stats := &ProjectStats{Projects: []ProjectInfo{}}
	for rows.Next() {
		var p ProjectInfo
		if err := rows.Scan(&p.Name, &p.NodeCount, &p.BranchCount, &p.RootCount); err != nil {
			return nil, err
		}
		stats.Projects = append(stats.Projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = db.conn.QueryRow(`SELECT COUNT(*) FROM nodes WHERE scope = 'root'`).Scan(&stats.TotalRoots)
	if err != nil {
		return nil, fmt.Errorf("store: count roots: %w", err)
	}
	err = db.conn.QueryRow(`SELECT COUNT(*) FROM nodes WHERE scope = 'root' AND project = ''`).Scan(&stats.OrphanRoots)
	if err != nil {
		return nil, fmt.Errorf("store: count orphan roots: %w", err)
	}
	return stats, nil
}
