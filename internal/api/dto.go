package api

import (
	"fmt"
	"time"

	"github.com/starford/engram/internal/memory"
)

// NodeRequest is the request body for creating or updating a node. All enum
// fields arrive as raw strings and are validated at this boundary.
type NodeRequest struct {
	Type       string   `json:"type"`
	What       string   `json:"what"`
	When       string   `json:"when,omitempty"`
	Where      string   `json:"where,omitempty"`
	Who        []string `json:"who,omitempty"`
	Why        string   `json:"why,omitempty"`
	How        string   `json:"how,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Artifacts  []string `json:"artifacts,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Source     string   `json:"source,omitempty"`
	Project    string   `json:"project,omitempty"`
	Scope      string   `json:"scope,omitempty"`
}

// ToNode validates the request and builds a fresh node from it.
func (req *NodeRequest) ToNode() (*memory.MemoryNode, error) {
	if req.What == "" {
		return nil, fmt.Errorf("what is required")
	}
	if req.Type == "" {
		req.Type = string(memory.NodeEvent)
	}
	nodeType, err := memory.ParseNodeType(req.Type)
	if err != nil {
		return nil, err
	}

	n := memory.NewNode(nodeType, req.What)
	if req.When != "" {
		t, err := time.Parse(time.RFC3339, req.When)
		if err != nil {
			return nil, fmt.Errorf("when: %w", err)
		}
		n.When = &t
	}
	n.Where = req.Where
	n.Who = req.Who
	n.Why = req.Why
	n.How = req.How
	n.Tags = req.Tags
	n.Artifacts = req.Artifacts
	if req.Confidence != nil {
		n.Confidence = *req.Confidence
	}
	n.Source = req.Source
	n.Project = req.Project
	if req.Scope != "" {
		scope, err := memory.ParseScope(req.Scope)
		if err != nil {
			return nil, err
		}
		n.Scope = scope
	}
	return n, nil
}

// EdgeRequest is the request body for creating an edge.
type EdgeRequest struct {
	SourceID string         `json:"source_id"`
	TargetID string         `json:"target_id"`
	Type     string         `json:"type"`
	Weight   *float64       `json:"weight,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NodeListResponse wraps node query results.
type NodeListResponse struct {
	Nodes []*memory.MemoryNode `json:"nodes"`
	Total int                  `json:"total"`
}

// TraverseResponse wraps BFS traversal results.
type TraverseResponse struct {
	Results []*memory.QueryResult `json:"results"`
}

// PathResponse wraps a shortest-path result.
type PathResponse struct {
	Found bool                 `json:"found"`
	Path  []*memory.MemoryNode `json:"path,omitempty"`
	Hops  int                  `json:"hops"`
}
