// Package graph implements multi-hop queries over the memory store's edge
// primitive: breadth-first context expansion, shortest-path discovery, and
// temporal context windows.
package graph

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/engram/internal/apperr"
	"github.com/starford/engram/internal/memory"
	"github.com/starford/engram/internal/store"
)

// Traverser walks the memory graph. It holds only a store reference; every
// traversal's queue and visited set are per-call state.
type Traverser struct {
	store store.Store
}

// New creates a Traverser over st.
func New(st store.Store) *Traverser {
	return &Traverser{store: st}
}

type bfsItem struct {
	id   uuid.UUID
	hops int
	path []uuid.UUID
}

// TraverseBFS explores the graph breadth-first from startID up to maxHops
// edges away. Each reachable node is emitted once, in discovery order, with
// score 1/(hops+1) and the path of node ids that reached it. Nodes at exactly
// maxHops are emitted but not expanded. edgeTypes narrows which edges are
// followed; nil follows all. A startID that does not resolve yields an empty
// result, not an error.
func (t *Traverser) TraverseBFS(
	startID uuid.UUID,
	maxHops int,
	edgeTypes []memory.EdgeType,
	dir memory.Direction,
	includeStart bool,
) ([]*memory.QueryResult, error) {
	visited := make(map[uuid.UUID]struct{})
	var results []*memory.QueryResult

	queue := []bfsItem{{id: startID, hops: 0, path: []uuid.UUID{startID}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if _, ok := visited[cur.id]; ok {
			continue
		}
		visited[cur.id] = struct{}{}

		node, err := t.store.GetNode(cur.id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("graph: bfs: %w", err)
		}

		if includeStart || cur.id != startID {
			results = append(results, &memory.QueryResult{
				Node:     node,
				Score:    1.0 / float64(cur.hops+1),
				Path:     cur.path,
				HopCount: cur.hops,
			})
		}

		if cur.hops >= maxHops {
			continue
		}

		edges, err := t.edgesFor(cur.id, dir, edgeTypes)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			next := e.Other(cur.id)
			if _, ok := visited[next]; ok {
				continue
			}
			path := make([]uuid.UUID, len(cur.path), len(cur.path)+1)
			copy(path, cur.path)
			queue = append(queue, bfsItem{id: next, hops: cur.hops + 1, path: append(path, next)})
		}
	}
	return results, nil
}

// edgesFor fetches edges once per requested type, or once for all types when
// unfiltered.
func (t *Traverser) edgesFor(id uuid.UUID, dir memory.Direction, edgeTypes []memory.EdgeType) ([]*memory.Edge, error) {
	if len(edgeTypes) == 0 {
		edges, err := t.store.GetEdges(id, dir, nil)
		if err != nil {
			return nil, fmt.Errorf("graph: get edges: %w", err)
		}
		return edges, nil
	}
	var out []*memory.Edge
	for _, et := range edgeTypes {
		edges, err := t.store.GetEdges(id, dir, &et)
		if err != nil {
			return nil, fmt.Errorf("graph: get edges: %w", err)
		}
		out = append(out, edges...)
	}
	return out, nil
}

// FindPath returns the shortest path (by edge count) between two nodes as a
// node sequence, or nil when none exists within maxHops edges. Identical
// endpoints yield a single-node path. Among equal-length paths, whichever BFS
// discovers first wins; this follows edge insertion order.
func (t *Traverser) FindPath(fromID, toID uuid.UUID, maxHops int) ([]*memory.MemoryNode, error) {
	if fromID == toID {
		node, err := t.store.GetNode(fromID)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("graph: find path: %w", err)
		}
		return []*memory.MemoryNode{node}, nil
	}

	visited := make(map[uuid.UUID]struct{})
	queue := []bfsItem{{id: fromID, path: []uuid.UUID{fromID}}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		// A path holding len nodes spans len-1 edges; extending it adds one
		// more. Nodes whose path already spends the hop budget are not
		// expanded, so the target is never reached past maxHops edges.
		if len(cur.path) > maxHops {
			continue
		}
		if _, ok := visited[cur.id]; ok {
			continue
		}
		visited[cur.id] = struct{}{}

		edges, err := t.store.GetEdges(cur.id, memory.Both, nil)
		if err != nil {
			return nil, fmt.Errorf("graph: find path: %w", err)
		}
		for _, e := range edges {
			next := e.Other(cur.id)

			if next == toID {
				return t.resolvePath(append(append([]uuid.UUID{}, cur.path...), next))
			}
			if _, ok := visited[next]; !ok {
				path := make([]uuid.UUID, len(cur.path), len(cur.path)+1)
				copy(path, cur.path)
				queue = append(queue, bfsItem{id: next, path: append(path, next)})
			}
		}
	}
	return nil, nil
}

func (t *Traverser) resolvePath(ids []uuid.UUID) ([]*memory.MemoryNode, error) {
	out := make([]*memory.MemoryNode, 0, len(ids))
	for _, id := range ids {
		node, err := t.store.GetNode(id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("graph: resolve path: %w", err)
		}
		out = append(out, node)
	}
	return out, nil
}

// FindRelated returns the nodes one hop away through edges of the given type
// and direction, deduplicated by id. Endpoints that no longer resolve are
// skipped silently; they are treated as already deleted.
func (t *Traverser) FindRelated(nodeID uuid.UUID, rel memory.EdgeType, dir memory.Direction) ([]*memory.MemoryNode, error) {
	edges, err := t.store.GetEdges(nodeID, dir, &rel)
	if err != nil {
		return nil, fmt.Errorf("graph: find related: %w", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(edges))
	var out []*memory.MemoryNode
	for _, e := range edges {
		other := e.Other(nodeID)
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}

		node, err := t.store.GetNode(other)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("graph: find related: %w", err)
		}
		out = append(out, node)
	}
	return out, nil
}

// ContextWindow returns up to before temporal predecessors, the center node,
// and up to after successors, in chronological order. A center without a
// `when` yields an empty window.
func (t *Traverser) ContextWindow(centerID uuid.UUID, before, after int) ([]*memory.MemoryNode, error) {
	center, err := t.store.GetNode(centerID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("graph: context window: %w", err)
	}
	if center.When == nil {
		return nil, nil
	}

	// Newest-first from the store; +1 leaves room to drop the center itself.
	older, err := t.store.QueryByTime(nil, center.When, before+1)
	if err != nil {
		return nil, fmt.Errorf("graph: context window: %w", err)
	}
	older = excludeNode(older, centerID, before)

	// Oldest-first so a tight limit keeps the successors nearest the center.
	newer, err := t.store.QueryByTimeAsc(center.When, nil, after+1)
	if err != nil {
		return nil, fmt.Errorf("graph: context window: %w", err)
	}
	newer = excludeNode(newer, centerID, after)

	// older comes back newest-first; reverse it to chronological order.
	for i, j := 0, len(older)-1; i < j; i, j = i+1, j-1 {
		older[i], older[j] = older[j], older[i]
	}

	out := make([]*memory.MemoryNode, 0, len(older)+1+len(newer))
	out = append(out, older...)
	out = append(out, center)
	out = append(out, newer...)
	return out, nil
}

func excludeNode(nodes []*memory.MemoryNode, id uuid.UUID, limit int) []*memory.MemoryNode {
	out := nodes[:0]
	for _, n := range nodes {
		if n.ID == id {
			continue
		}
		out = append(out, n)
		if len(out) >= limit {
			break
		}
	}
	return out
}
