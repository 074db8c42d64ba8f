// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Engram memory tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/engram/internal/memory"
	"github.com/starford/engram/internal/memoryservice"
)

// Server wraps the MCP server with Engram tools.
type Server struct {
	mcp *server.MCPServer
	svc *memoryservice.Service
}

// New creates a new MCP server with all Engram tools registered.
func New(svc *memoryservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Engram",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("remember",
		mcp.WithDescription("Store a new memory node. Records what happened, when, "+
			"who was involved, and why. Read the get_memory_contract tool or the "+
			"engram://memory-format resource for the type and field conventions."),
		mcp.WithString("what", mcp.Required(), mcp.Description("What happened (the memory content)")),
		mcp.WithString("type", mcp.Description("Node type: event, decision, artifact, conversation, insight, person, project, task (default event)")),
		mcp.WithString("when", mcp.Description("When it happened, RFC 3339 (default now)")),
		mcp.WithString("where", mcp.Description("Where it happened (file path, repo, meeting, URL)")),
		mcp.WithString("who", mcp.Description("Comma-separated people or agents involved")),
		mcp.WithString("why", mcp.Description("Why it happened or why it matters")),
		mcp.WithString("how", mcp.Description("How it was done")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("project", mcp.Description("Project this memory belongs to")),
		mcp.WithString("scope", mcp.Description("Scope: branch or root (default branch)")),
	), s.remember)

	s.mcp.AddTool(mcp.NewTool("recall",
		mcp.WithDescription("Recall memories by text, tags, time window, or project, "+
			"optionally expanding hits through the memory graph."),
		mcp.WithString("query", mcp.Description("Text to search for")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags to match")),
		mcp.WithString("project", mcp.Description("Restrict to a project (root-scope memories are always included)")),
		mcp.WithString("since", mcp.Description("Time window start, RFC 3339")),
		mcp.WithString("until", mcp.Description("Time window end, RFC 3339")),
		mcp.WithBoolean("roots_only", mcp.Description("Return only root-scope memories")),
		mcp.WithNumber("hops", mcp.Description("Expand each hit this many hops through the graph (default 0)")),
		mcp.WithNumber("limit", mcp.Description("Maximum memories to return (default 20)")),
	), s.recall)

	s.mcp.AddTool(mcp.NewTool("get_memory",
		mcp.WithDescription("Fetch a single memory node by id, with its edges."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Memory node id (UUID)")),
	), s.getMemory)

	s.mcp.AddTool(mcp.NewTool("link_memories",
		mcp.WithDescription("Create a typed directed edge between two memories."),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Source node id (UUID)")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Target node id (UUID)")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Edge type: caused_by, led_to, supersedes, preceded_by, relates_to, contradicts, supports, mentions, part_of, derived_from, exposes_root, addresses_root")),
	), s.linkMemories)

	s.mcp.AddTool(mcp.NewTool("find_path",
		mcp.WithDescription("Find the shortest chain of edges connecting two memories."),
		mcp.WithString("from_id", mcp.Required(), mcp.Description("Starting node id (UUID)")),
		mcp.WithString("to_id", mcp.Required(), mcp.Description("Target node id (UUID)")),
		mcp.WithNumber("max_hops", mcp.Description("Maximum hops to search (default 6)")),
	), s.findPath)

	s.mcp.AddTool(mcp.NewTool("expand_context",
		mcp.WithDescription("Return memories temporally surrounding a given memory, "+
			"in chronological order."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Center node id (UUID)")),
		mcp.WithNumber("before", mcp.Description("Memories before the center (default 5)")),
		mcp.WithNumber("after", mcp.Description("Memories after the center (default 5)")),
	), s.expandContext)

	s.mcp.AddTool(mcp.NewTool("project_overview",
		mcp.WithDescription("Summarize memories per project: node, branch, and root counts."),
	), s.projectOverview)

	s.mcp.AddTool(mcp.NewTool("get_memory_contract",
		mcp.WithDescription("Returns the canonical Engram memory format contract. "+
			"Call this before storing memories to pick the right type, scope, and edges."),
	), s.getMemoryContract)

	// Resource: memory format contract.
	s.mcp.AddResource(
		mcp.NewResource("engram://memory-format", "Memory Format Contract",
			mcp.WithResourceDescription("Canonical memory node and edge conventions."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMemoryFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func optString(req mcp.CallToolRequest, key string) string {
	if v, err := req.RequireString(key); err == nil {
		return v
	}
	return ""
}

func optInt(req mcp.CallToolRequest, key string, def int) int {
	if v, err := req.RequireFloat(key); err == nil {
		return int(v)
	}
	return def
}

func (s *Server) remember(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	what, err := req.RequireString("what")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	nodeType := memory.NodeEvent
	if raw := optString(req, "type"); raw != "" {
		if nodeType, err = memory.ParseNodeType(raw); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	node := memory.NewNode(nodeType, what)
	if raw := optString(req, "when"); raw != "" {
		when, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid when: %v", err)), nil
		}
		node.When = &when
	}
	node.Where = optString(req, "where")
	node.Who = splitList(optString(req, "who"))
	node.Why = optString(req, "why")
	node.How = optString(req, "how")
	node.Tags = splitList(optString(req, "tags"))
	node.Project = optString(req, "project")
	if raw := optString(req, "scope"); raw != "" {
		if node.Scope, err = memory.ParseScope(raw); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	id, created, err := s.svc.Remember(ctx, node)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !created {
		return mcp.NewToolResultText(fmt.Sprintf("already remembered: %s", id)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("remembered: %s", id)), nil
}

func (s *Server) recall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := memoryservice.RecallOptions{
		Query:   optString(req, "query"),
		Tags:    splitList(optString(req, "tags")),
		Project: optString(req, "project"),
		Hops:    optInt(req, "hops", 0),
		Limit:   optInt(req, "limit", 20),
	}
	if v, err := req.RequireBool("roots_only"); err == nil {
		opts.RootsOnly = v
	}
	if raw := optString(req, "since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid since: %v", err)), nil
		}
		opts.Since = &t
	}
	if raw := optString(req, "until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid until: %v", err)), nil
		}
		opts.Until = &t
	}

	nodes, err := s.svc.Recall(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(nodes) == 0 {
		return mcp.NewToolResultText("no memories found"), nil
	}
	out, _ := json.MarshalIndent(nodes, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid id: %s", raw)), nil
	}

	node, err := s.svc.GetNode(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	edges, err := s.svc.Store().GetEdges(id, memory.Both, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, _ := json.MarshalIndent(map[string]any{
		"node":  node,
		"edges": edges,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) linkMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawSrc, err := req.RequireString("source_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawDst, err := req.RequireString("target_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	src, err := uuid.Parse(rawSrc)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid source_id: %s", rawSrc)), nil
	}
	dst, err := uuid.Parse(rawDst)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid target_id: %s", rawDst)), nil
	}
	edgeType, err := memory.ParseEdgeType(rawType)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	edge := memory.NewEdge(src, dst, edgeType)
	if _, err := s.svc.AddEdge(ctx, edge); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("linked: %s -[%s]-> %s", src, edgeType, dst)), nil
}

func (s *Server) findPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawFrom, err := req.RequireString("from_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawTo, err := req.RequireString("to_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := uuid.Parse(rawFrom)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid from_id: %s", rawFrom)), nil
	}
	to, err := uuid.Parse(rawTo)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid to_id: %s", rawTo)), nil
	}

	path, err := s.svc.Traverser().FindPath(from, to, optInt(req, "max_hops", 6))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if path == nil {
		return mcp.NewToolResultText("no path found"), nil
	}

	var lines []string
	for i, n := range path {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s (%s)", i+1, n.Type, n.What, n.ID))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) expandContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid id: %s", raw)), nil
	}

	nodes, err := s.svc.Traverser().ContextWindow(id, optInt(req, "before", 5), optInt(req, "after", 5))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(nodes) == 0 {
		return mcp.NewToolResultText("no context found"), nil
	}
	out, _ := json.MarshalIndent(nodes, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) projectOverview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.svc.Store().ProjectStats()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(stats, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getMemoryContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MemoryFormatContract), nil
}

func (s *Server) readMemoryFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "engram://memory-format",
			MIMEType: "text/markdown",
			Text:     MemoryFormatContract,
		},
	}, nil
}
