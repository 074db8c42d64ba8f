package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/engram/internal/apperr"
	"github.com/starford/engram/internal/memory"
	"github.com/starford/engram/internal/memoryservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *memoryservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *memoryservice.Service) *Handler {
	return &Handler{svc: svc}
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func internalError(w http.ResponseWriter, op string, err error) {
	slog.Error(op+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}

// CreateNode handles POST /api/nodes.
func (h *Handler) CreateNode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req NodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	node, err := req.ToNode()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if _, err := h.svc.AddNode(r.Context(), node); err != nil {
		internalError(w, "create node", err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// GetNode handles GET /api/nodes/{id}.
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid node id"))
		return
	}
	node, err := h.svc.GetNode(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			internalError(w, "get node", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// UpdateNode handles PUT /api/nodes/{id}. The body fully replaces the
// node's mutable fields.
func (h *Handler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid node id"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req NodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	node, err := req.ToNode()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	node.ID = id

	if err := h.svc.UpdateNode(r.Context(), node); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			internalError(w, "update node", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// DeleteNode handles DELETE /api/nodes/{id}.
func (h *Handler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid node id"))
		return
	}
	if err := h.svc.DeleteNode(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			internalError(w, "delete node", err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateEdge handles POST /api/edges.
func (h *Handler) CreateEdge(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req EdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	src, err := uuid.Parse(req.SourceID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid source_id"))
		return
	}
	dst, err := uuid.Parse(req.TargetID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid target_id"))
		return
	}
	edgeType, err := memory.ParseEdgeType(req.Type)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	edge := memory.NewEdge(src, dst, edgeType)
	if req.Weight != nil {
		edge.Weight = *req.Weight
	}
	edge.Metadata = req.Metadata

	if _, err := h.svc.AddEdge(r.Context(), edge); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
		} else {
			internalError(w, "create edge", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, edge)
}

// DeleteEdge handles DELETE /api/edges/{id}.
func (h *Handler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid edge id"))
		return
	}
	if err := h.svc.DeleteEdge(r.Context(), id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			internalError(w, "delete edge", err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEdges handles GET /api/nodes/{id}/edges?direction=&type=.
func (h *Handler) GetEdges(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid node id"))
		return
	}
	dir := memory.Both
	if raw := r.URL.Query().Get("direction"); raw != "" {
		var err error
		if dir, err = memory.ParseDirection(raw); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
	}
	var edgeType *memory.EdgeType
	if raw := r.URL.Query().Get("type"); raw != "" {
		et, err := memory.ParseEdgeType(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		edgeType = &et
	}

	edges, err := h.svc.Store().GetEdges(id, dir, edgeType)
	if err != nil {
		internalError(w, "get edges", err)
		return
	}
	if edges == nil {
		edges = []*memory.Edge{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"edges": edges})
}

// Recall handles GET /api/recall. Query parameters select by text (q),
// tags, time window, and project/scope; hops expands hits through the graph.
func (h *Handler) Recall(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since, err := queryTime(r, "since")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid since"))
		return
	}
	until, err := queryTime(r, "until")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid until"))
		return
	}

	opts := memoryservice.RecallOptions{
		Query:     q.Get("q"),
		Since:     since,
		Until:     until,
		Tags:      q["tag"],
		Project:   q.Get("project"),
		RootsOnly: q.Get("roots_only") == "true",
		Hops:      queryInt(r, "hops", 0),
		Limit:     queryInt(r, "limit", 20),
	}

	nodes, err := h.svc.Recall(r.Context(), opts)
	if err != nil {
		internalError(w, "recall", err)
		return
	}
	if nodes == nil {
		nodes = []*memory.MemoryNode{}
	}
	writeJSON(w, http.StatusOK, NodeListResponse{Nodes: nodes, Total: len(nodes)})
}

// Traverse handles GET /api/nodes/{id}/traverse?hops=&direction=&type=....
func (h *Handler) Traverse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid node id"))
		return
	}
	dir := memory.Both
	if raw := r.URL.Query().Get("direction"); raw != "" {
		var err error
		if dir, err = memory.ParseDirection(raw); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
	}
	var edgeTypes []memory.EdgeType
	for _, raw := range r.URL.Query()["type"] {
		et, err := memory.ParseEdgeType(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		edgeTypes = append(edgeTypes, et)
	}
	includeStart := r.URL.Query().Get("include_start") != "false"

	results, err := h.svc.Traverser().TraverseBFS(id, queryInt(r, "hops", 2), edgeTypes, dir, includeStart)
	if err != nil {
		internalError(w, "traverse", err)
		return
	}
	if results == nil {
		results = []*memory.QueryResult{}
	}
	writeJSON(w, http.StatusOK, TraverseResponse{Results: results})
}

// FindPath handles GET /api/path?from=&to=&max_hops=.
func (h *Handler) FindPath(w http.ResponseWriter, r *http.Request) {
	from, err := uuid.Parse(r.URL.Query().Get("from"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid from id"))
		return
	}
	to, err := uuid.Parse(r.URL.Query().Get("to"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid to id"))
		return
	}

	path, err := h.svc.Traverser().FindPath(from, to, queryInt(r, "max_hops", 6))
	if err != nil {
		internalError(w, "find path", err)
		return
	}
	resp := PathResponse{Found: path != nil, Path: path}
	if len(path) > 0 {
		resp.Hops = len(path) - 1
	}
	writeJSON(w, http.StatusOK, resp)
}

// Related handles GET /api/nodes/{id}/related?type=&direction=.
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid node id"))
		return
	}
	edgeType, err := memory.ParseEdgeType(r.URL.Query().Get("type"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	dir := memory.Outgoing
	if raw := r.URL.Query().Get("direction"); raw != "" {
		if dir, err = memory.ParseDirection(raw); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
	}

	nodes, err := h.svc.Traverser().FindRelated(id, edgeType, dir)
	if err != nil {
		internalError(w, "find related", err)
		return
	}
	if nodes == nil {
		nodes = []*memory.MemoryNode{}
	}
	writeJSON(w, http.StatusOK, NodeListResponse{Nodes: nodes, Total: len(nodes)})
}

// ContextWindow handles GET /api/nodes/{id}/context?before=&after=.
func (h *Handler) ContextWindow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid node id"))
		return
	}
	nodes, err := h.svc.Traverser().ContextWindow(id, queryInt(r, "before", 5), queryInt(r, "after", 5))
	if err != nil {
		internalError(w, "context window", err)
		return
	}
	if nodes == nil {
		nodes = []*memory.MemoryNode{}
	}
	writeJSON(w, http.StatusOK, NodeListResponse{Nodes: nodes, Total: len(nodes)})
}

// ListProjects handles GET /api/projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.Store().AllProjects()
	if err != nil {
		internalError(w, "list projects", err)
		return
	}
	if projects == nil {
		projects = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// ProjectStats handles GET /api/projects/stats.
func (h *Handler) ProjectStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Store().ProjectStats()
	if err != nil {
		internalError(w, "project stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
