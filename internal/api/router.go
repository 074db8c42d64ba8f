package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/engram/internal/memoryservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *memoryservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Nodes CRUD.
	r.Post("/nodes", h.CreateNode)
	r.Get("/nodes/{id}", h.GetNode)
	r.Put("/nodes/{id}", h.UpdateNode)
	r.Delete("/nodes/{id}", h.DeleteNode)

	// Edges.
	r.Post("/edges", h.CreateEdge)
	r.Delete("/edges/{id}", h.DeleteEdge)
	r.Get("/nodes/{id}/edges", h.GetEdges)

	// Recall and graph traversal.
	r.Get("/recall", h.Recall)
	r.Get("/nodes/{id}/traverse", h.Traverse)
	r.Get("/nodes/{id}/related", h.Related)
	r.Get("/nodes/{id}/context", h.ContextWindow)
	r.Get("/path", h.FindPath)

	// Projects.
	r.Get("/projects", h.ListProjects)
	r.Get("/projects/stats", h.ProjectStats)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
