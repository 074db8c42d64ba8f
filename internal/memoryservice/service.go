// Package memoryservice coordinates the store and traverser behind the API
// and MCP surfaces.
package memoryservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/starford/engram/internal/apperr"
	"github.com/starford/engram/internal/graph"
	"github.com/starford/engram/internal/ingest"
	"github.com/starford/engram/internal/memory"
	"github.com/starford/engram/internal/store"
)

// EventFunc is called after a successful mutation.
// kind is one of "node.created", "node.updated", "node.deleted",
// "edge.created", "edge.deleted".
type EventFunc func(kind string, id uuid.UUID)

// Service coordinates storage and traversal operations.
type Service struct {
	store     store.Store
	traverser *graph.Traverser
	notify    EventFunc
}

// NewService creates a memory service. notify may be nil.
func NewService(st store.Store, notify EventFunc) *Service {
	return &Service{store: st, traverser: graph.New(st), notify: notify}
}

// Traverser exposes the underlying graph traverser.
func (s *Service) Traverser() *graph.Traverser {
	return s.traverser
}

// Store exposes the underlying store.
func (s *Service) Store() store.Store {
	return s.store
}

func (s *Service) emit(kind string, id uuid.UUID) {
	if s.notify != nil {
		s.notify(kind, id)
	}
}

// AddNode persists a node.
func (s *Service) AddNode(_ context.Context, n *memory.MemoryNode) (uuid.UUID, error) {
	id, err := s.store.AddNode(n)
	if err != nil {
		return uuid.Nil, err
	}
	s.emit("node.created", id)
	return id, nil
}

// Remember is a dedup-aware AddNode: nodes whose content hash matches an
// existing node return that node's id with created=false, and no event.
func (s *Service) Remember(_ context.Context, n *memory.MemoryNode) (uuid.UUID, bool, error) {
	var when string
	if n.When != nil {
		when = n.When.UTC().Format(time.RFC3339)
	}
	hash := ingest.ContentHash(n.What, when, n.Source)
	id, created, err := ingest.AddNodeWithDedup(s.store, n, hash)
	if err != nil {
		return uuid.Nil, false, err
	}
	if created {
		s.emit("node.created", id)
	}
	return id, created, nil
}

// GetNode fetches a node by id; apperr.ErrNotFound when absent.
func (s *Service) GetNode(_ context.Context, id uuid.UUID) (*memory.MemoryNode, error) {
	return s.store.GetNode(id)
}

// UpdateNode replaces a node's mutable fields; apperr.ErrNotFound when the
// id does not exist.
func (s *Service) UpdateNode(_ context.Context, n *memory.MemoryNode) error {
	ok, err := s.store.UpdateNode(n)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	s.emit("node.updated", n.ID)
	return nil
}

// DeleteNode removes a node and its edges; apperr.ErrNotFound when absent.
func (s *Service) DeleteNode(_ context.Context, id uuid.UUID) error {
	ok, err := s.store.DeleteNode(id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	s.emit("node.deleted", id)
	return nil
}

// AddEdge links two existing nodes. The store itself trusts its caller on
// referential integrity, so the check lives here.
func (s *Service) AddEdge(_ context.Context, e *memory.Edge) (uuid.UUID, error) {
	for _, end := range []uuid.UUID{e.SourceID, e.TargetID} {
		if _, err := s.store.GetNode(end); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return uuid.Nil, fmt.Errorf("%w: edge endpoint %s", apperr.ErrNotFound, end)
			}
			return uuid.Nil, err
		}
	}
	id, err := s.store.AddEdge(e)
	if err != nil {
		return uuid.Nil, err
	}
	s.emit("edge.created", id)
	return id, nil
}

// DeleteEdge removes an edge; apperr.ErrNotFound when absent.
func (s *Service) DeleteEdge(_ context.Context, id uuid.UUID) error {
	ok, err := s.store.DeleteEdge(id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	s.emit("edge.deleted", id)
	return nil
}

// RecallOptions selects which memories to recall. Query, the time window,
// and Tags are alternative entry points; Hops expands each hit through the
// graph afterwards.
type RecallOptions struct {
	Query     string
	Since     *time.Time
	Until     *time.Time
	Tags      []string
	Project   string
	RootsOnly bool
	Hops      int
	Limit     int
}

// Recall finds matching memories and, when Hops > 0, expands each match
// through the graph. Results come back newest first, capped at Limit.
func (s *Service) Recall(_ context.Context, opts RecallOptions) ([]*memory.MemoryNode, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	var (
		seeds []*memory.MemoryNode
		err   error
	)
	switch {
	case opts.Query != "":
		filter := store.ScopeFilter{Project: opts.Project, RootsOnly: opts.RootsOnly}
		seeds, err = s.store.QueryByTextFiltered(opts.Query, filter, opts.Limit)
	case len(opts.Tags) > 0:
		seeds, err = s.store.QueryByTags(opts.Tags, false, opts.Limit)
	case opts.RootsOnly:
		seeds, err = s.store.QueryRootsOnly(opts.Limit)
	case opts.Project != "":
		seeds, err = s.store.QueryByProject(opts.Project, true, opts.Limit)
	default:
		seeds, err = s.store.QueryByTime(opts.Since, opts.Until, opts.Limit)
	}
	if err != nil {
		return nil, err
	}

	// Time window applies to tag/text seeds too.
	if opts.Query != "" || len(opts.Tags) > 0 {
		seeds = filterByWindow(seeds, opts.Since, opts.Until)
	}

	if opts.Hops <= 0 {
		return seeds, nil
	}

	byID := make(map[uuid.UUID]*memory.MemoryNode, len(seeds))
	order := make([]uuid.UUID, 0, len(seeds))
	add := func(n *memory.MemoryNode) {
		if _, ok := byID[n.ID]; !ok {
			byID[n.ID] = n
			order = append(order, n.ID)
		}
	}
	for _, n := range seeds {
		add(n)
	}
	for _, n := range seeds {
		expanded, err := s.traverser.TraverseBFS(n.ID, opts.Hops, nil, memory.Both, false)
		if err != nil {
			return nil, err
		}
		for _, r := range expanded {
			add(r.Node)
		}
	}

	out := make([]*memory.MemoryNode, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EffectiveWhen().After(out[j].EffectiveWhen())
	})
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func filterByWindow(nodes []*memory.MemoryNode, since, until *time.Time) []*memory.MemoryNode {
	if since == nil && until == nil {
		return nodes
	}
	out := nodes[:0]
	for _, n := range nodes {
		w := n.EffectiveWhen()
		if since != nil && w.Before(*since) {
			continue
		}
		if until != nil && w.After(*until) {
			continue
		}
		out = append(out, n)
	}
	return out
}
