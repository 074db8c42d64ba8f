package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/engram/internal/memory"
	"github.com/starford/engram/internal/memoryservice"
	"github.com/starford/engram/internal/testutil"
)

func testServer(t *testing.T) (*Server, *memoryservice.Service) {
	t.Helper()
	svc := memoryservice.NewService(testutil.TestStore(t), nil)
	return New(svc), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we go
	// through the tool handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "remember":
		result, err = srv.remember(ctx, req)
	case "recall":
		result, err = srv.recall(ctx, req)
	case "get_memory":
		result, err = srv.getMemory(ctx, req)
	case "link_memories":
		result, err = srv.linkMemories(ctx, req)
	case "find_path":
		result, err = srv.findPath(ctx, req)
	case "expand_context":
		result, err = srv.expandContext(ctx, req)
	case "project_overview":
		result, err = srv.projectOverview(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func rememberID(t *testing.T, srv *Server, what string) string {
	t.Helper()
	r := callTool(t, srv, "remember", map[string]interface{}{"what": what})
	text := resultText(r)
	if !strings.HasPrefix(text, "remembered: ") {
		t.Fatalf("remember result = %q", text)
	}
	return strings.TrimPrefix(text, "remembered: ")
}

func TestRememberAndRecall(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "remember", map[string]interface{}{
		"what": "migrated the billing database",
		"type": "decision",
		"tags": "billing, migration",
		"who":  "alice",
	})
	if r.IsError {
		t.Fatalf("remember failed: %s", resultText(r))
	}

	r = callTool(t, srv, "recall", map[string]interface{}{"query": "billing"})
	text := resultText(r)
	if !strings.Contains(text, "migrated the billing database") {
		t.Errorf("recall output missing memory: %q", text)
	}

	var nodes []*memory.MemoryNode
	if err := json.Unmarshal([]byte(text), &nodes); err != nil {
		t.Fatalf("recall output not JSON: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Type != memory.NodeDecision {
		t.Errorf("nodes = %v", nodes)
	}
	if len(nodes[0].Tags) != 2 || nodes[0].Tags[0] != "billing" {
		t.Errorf("tags = %v", nodes[0].Tags)
	}
}

func TestRemember_Duplicate(t *testing.T) {
	srv, _ := testServer(t)

	id := rememberID(t, srv, "shipped the importer")
	r := callTool(t, srv, "remember", map[string]interface{}{"what": "shipped the importer"})
	text := resultText(r)
	if text != "already remembered: "+id {
		t.Errorf("duplicate remember = %q", text)
	}
}

func TestRemember_BadType(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "remember", map[string]interface{}{
		"what": "x",
		"type": "banana",
	})
	if !r.IsError {
		t.Error("expected error for invalid node type")
	}
}

func TestRecall_NoResults(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "recall", map[string]interface{}{"query": "nothing"})
	if resultText(r) != "no memories found" {
		t.Errorf("recall = %q", resultText(r))
	}
}

func TestGetMemoryWithEdges(t *testing.T) {
	srv, _ := testServer(t)
	a := rememberID(t, srv, "first")
	b := rememberID(t, srv, "second")

	r := callTool(t, srv, "link_memories", map[string]interface{}{
		"source_id": a,
		"target_id": b,
		"type":      "led_to",
	})
	if r.IsError {
		t.Fatalf("link failed: %s", resultText(r))
	}

	r = callTool(t, srv, "get_memory", map[string]interface{}{"id": a})
	text := resultText(r)
	if !strings.Contains(text, "first") || !strings.Contains(text, "led_to") {
		t.Errorf("get_memory output = %q", text)
	}
}

func TestGetMemory_Missing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_memory", map[string]interface{}{
		"id": "99999999-9999-9999-9999-999999999999",
	})
	if !r.IsError {
		t.Error("expected error for missing memory")
	}
}

func TestLinkMemories_MissingEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	a := rememberID(t, srv, "exists")

	r := callTool(t, srv, "link_memories", map[string]interface{}{
		"source_id": a,
		"target_id": "99999999-9999-9999-9999-999999999999",
		"type":      "led_to",
	})
	if !r.IsError {
		t.Error("expected error for missing endpoint")
	}
}

func TestFindPathTool(t *testing.T) {
	srv, _ := testServer(t)
	a := rememberID(t, srv, "incident started")
	b := rememberID(t, srv, "root cause found")
	c := rememberID(t, srv, "fix deployed")

	for _, pair := range [][2]string{{a, b}, {b, c}} {
		callTool(t, srv, "link_memories", map[string]interface{}{
			"source_id": pair[0], "target_id": pair[1], "type": "led_to",
		})
	}

	r := callTool(t, srv, "find_path", map[string]interface{}{"from_id": a, "to_id": c})
	text := resultText(r)
	if !strings.Contains(text, "incident started") || !strings.Contains(text, "fix deployed") {
		t.Errorf("path output = %q", text)
	}
	if len(strings.Split(strings.TrimSpace(text), "\n")) != 3 {
		t.Errorf("path output = %q, want 3 steps", text)
	}
}

func TestFindPathTool_NoPath(t *testing.T) {
	srv, _ := testServer(t)
	a := rememberID(t, srv, "island one")
	b := rememberID(t, srv, "island two")

	r := callTool(t, srv, "find_path", map[string]interface{}{"from_id": a, "to_id": b})
	if resultText(r) != "no path found" {
		t.Errorf("find_path = %q", resultText(r))
	}
}

func TestProjectOverviewTool(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "remember", map[string]interface{}{"what": "work", "project": "orion"})
	callTool(t, srv, "remember", map[string]interface{}{"what": "lesson", "scope": "root"})

	r := callTool(t, srv, "project_overview", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "orion") {
		t.Errorf("overview missing project: %q", text)
	}
	if !strings.Contains(text, `"total_roots": 1`) {
		t.Errorf("overview missing root count: %q", text)
	}
}
