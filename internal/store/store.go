package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/starford/engram/internal/memory"
)

// ScopeFilter narrows a text query to a tree partition. Zero value means no
// filtering. Project and RootsOnly compose: with both set, branch nodes must
// belong to Project while root nodes always match.
type ScopeFilter struct {
	Project   string
	RootsOnly bool
}

// ProjectInfo summarizes one project tree.
type ProjectInfo struct {
	Name        string `json:"name"`
	NodeCount   int    `json:"node_count"`
	BranchCount int    `json:"branch_count"`
	RootCount   int    `json:"root_count"`
}

// ProjectStats is an aggregate view over the project/scope partition.
type ProjectStats struct {
	Projects    []ProjectInfo `json:"projects"`
	TotalRoots  int           `json:"total_roots"`
	OrphanRoots int           `json:"orphan_roots"`
}

// Store defines the persistence interface for the memory graph. Consumers
// should depend on this interface rather than the concrete *DB type to
// facilitate testing with mocks.
type Store interface {
	// Node CRUD. GetNode reports absence as apperr.ErrNotFound; UpdateNode
	// and DeleteNode report it as a false return.
	AddNode(n *memory.MemoryNode) (uuid.UUID, error)
	GetNode(id uuid.UUID) (*memory.MemoryNode, error)
	UpdateNode(n *memory.MemoryNode) (bool, error)
	DeleteNode(id uuid.UUID) (bool, error)

	// Edge operations. AddEdge does not verify that both endpoints exist;
	// that is the caller's contract.
	AddEdge(e *memory.Edge) (uuid.UUID, error)
	GetEdges(nodeID uuid.UUID, dir memory.Direction, edgeType *memory.EdgeType) ([]*memory.Edge, error)
	DeleteEdge(id uuid.UUID) (bool, error)

	// Queries.
	QueryByTime(since, until *time.Time, limit int) ([]*memory.MemoryNode, error)
	QueryByTimeAsc(since, until *time.Time, limit int) ([]*memory.MemoryNode, error)
	QueryByTags(tags []string, matchAll bool, limit int) ([]*memory.MemoryNode, error)
	QueryByText(query string, limit int) ([]*memory.MemoryNode, error)
	QueryByTextFiltered(query string, filter ScopeFilter, limit int) ([]*memory.MemoryNode, error)
	QueryByProject(project string, includeRoots bool, limit int) ([]*memory.MemoryNode, error)
	QueryRootsOnly(limit int) ([]*memory.MemoryNode, error)
	QueryByEmbedding(embedding []float32, limit int) ([]*memory.QueryResult, error)

	// Dedup support: substring lookup for "hash:<v>" inside source.
	FindBySourceHash(hash string) (uuid.UUID, bool, error)

	// Aggregates over the project/scope partition.
	AllProjects() ([]string, error)
	ProjectStats() (*ProjectStats, error)

	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
