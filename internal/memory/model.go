// Package memory defines the node/edge data model of the Engram graph:
// 5W+H-indexed memory units connected by typed, directed, weighted edges.
package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/engram/internal/apperr"
)

// NodeType categorizes a memory node. The category is semantic only; no
// behavior hangs off it.
type NodeType string

const (
	NodeEvent        NodeType = "event"
	NodeDecision     NodeType = "decision"
	NodeArtifact     NodeType = "artifact"
	NodeConversation NodeType = "conversation"
	NodeInsight      NodeType = "insight"
	NodePerson       NodeType = "person"
	NodeProject      NodeType = "project"
	NodeTask         NodeType = "task"
)

// NodeTypes lists every valid node type.
var NodeTypes = []NodeType{
	NodeEvent, NodeDecision, NodeArtifact, NodeConversation,
	NodeInsight, NodePerson, NodeProject, NodeTask,
}

// ParseNodeType validates a raw string against the closed node type set.
func ParseNodeType(s string) (NodeType, error) {
	for _, t := range NodeTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: node type %q", apperr.ErrValidation, s)
}

// EdgeType is the relationship type between two nodes.
type EdgeType string

const (
	// Causal.
	EdgeCausedBy EdgeType = "caused_by"
	EdgeLedTo    EdgeType = "led_to"

	// Temporal.
	EdgeSupersedes EdgeType = "supersedes"
	EdgePrecededBy EdgeType = "preceded_by"

	// Semantic.
	EdgeRelatesTo   EdgeType = "relates_to"
	EdgeContradicts EdgeType = "contradicts"
	EdgeSupports    EdgeType = "supports"

	// Referential.
	EdgeMentions    EdgeType = "mentions"
	EdgePartOf      EdgeType = "part_of"
	EdgeDerivedFrom EdgeType = "derived_from"

	// Cross-project: links branch knowledge to shared root knowledge.
	EdgeExposesRoot   EdgeType = "exposes_root"
	EdgeAddressesRoot EdgeType = "addresses_root"
)

// EdgeTypes lists every valid edge type, in declaration order.
var EdgeTypes = []EdgeType{
	EdgeCausedBy, EdgeLedTo,
	EdgeSupersedes, EdgePrecededBy,
	EdgeRelatesTo, EdgeContradicts, EdgeSupports,
	EdgeMentions, EdgePartOf, EdgeDerivedFrom,
	EdgeExposesRoot, EdgeAddressesRoot,
}

// ParseEdgeType validates a raw string against the closed edge type set.
func ParseEdgeType(s string) (EdgeType, error) {
	for _, t := range EdgeTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: edge type %q", apperr.ErrValidation, s)
}

// Scope partitions knowledge between a project-local branch and the shared
// root layer that is visible across projects.
type Scope string

const (
	ScopeBranch Scope = "branch"
	ScopeRoot   Scope = "root"
)

// ParseScope validates a raw string against the scope set.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeBranch, ScopeRoot:
		return Scope(s), nil
	}
	return "", fmt.Errorf("%w: scope %q", apperr.ErrValidation, s)
}

// Direction constrains which side of an edge a node appears on.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
	Both     Direction = "both"
)

// ParseDirection validates a raw string against the direction set.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Outgoing, Incoming, Both:
		return Direction(s), nil
	}
	return "", fmt.Errorf("%w: direction %q", apperr.ErrValidation, s)
}

// MemoryNode is a single memory unit indexed by 5W+H.
type MemoryNode struct {
	ID   uuid.UUID `json:"id"`
	Type NodeType  `json:"type"`

	// 5W+H.
	What  string     `json:"what"`
	When  *time.Time `json:"when,omitempty"`
	Where string     `json:"where,omitempty"`
	Who   []string   `json:"who,omitempty"`
	Why   string     `json:"why,omitempty"`
	How   string     `json:"how,omitempty"`

	Tags       []string  `json:"tags,omitempty"`
	Artifacts  []string  `json:"artifacts,omitempty"`
	Embedding  []float32 `json:"-"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source,omitempty"`

	// Tree placement: Project names the tree, Scope marks branch vs root.
	Project string `json:"project,omitempty"`
	Scope   Scope  `json:"scope"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewNode creates a node with a fresh id, default confidence and branch
// scope. When is left nil; the store resolves it to CreatedAt on insert.
func NewNode(t NodeType, what string) *MemoryNode {
	now := time.Now().UTC()
	return &MemoryNode{
		ID:         uuid.New(),
		Type:       t,
		What:       what,
		Confidence: 1.0,
		Scope:      ScopeBranch,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// EffectiveWhen returns the event time, falling back to CreatedAt so that
// every node is orderable.
func (n *MemoryNode) EffectiveWhen() time.Time {
	if n.When != nil {
		return *n.When
	}
	return n.CreatedAt
}

// Edge is a typed, directed, weighted relationship between two nodes.
// Edges are directed, but most graph queries traverse them either way.
type Edge struct {
	ID       uuid.UUID      `json:"id"`
	SourceID uuid.UUID      `json:"source_id"`
	TargetID uuid.UUID      `json:"target_id"`
	Type     EdgeType       `json:"type"`
	Weight   float64        `json:"weight"`
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewEdge creates an edge with a fresh id and default weight.
func NewEdge(source, target uuid.UUID, t EdgeType) *Edge {
	return &Edge{
		ID:        uuid.New(),
		SourceID:  source,
		TargetID:  target,
		Type:      t,
		Weight:    1.0,
		CreatedAt: time.Now().UTC(),
	}
}

// Other returns the endpoint of e that is not id. For self-loops it returns
// the same id.
func (e *Edge) Other(id uuid.UUID) uuid.UUID {
	if e.SourceID == id {
		return e.TargetID
	}
	return e.SourceID
}

// QueryResult wraps a node found by a graph query with its relevance score
// and the traversal path that reached it. It is never persisted.
type QueryResult struct {
	Node     *MemoryNode `json:"node"`
	Score    float64     `json:"score"`
	Path     []uuid.UUID `json:"path"`
	HopCount int         `json:"hop_count"`
}
