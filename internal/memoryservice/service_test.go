package memoryservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/engram/internal/apperr"
	"github.com/starford/engram/internal/memory"
	"github.com/starford/engram/internal/testutil"
)

func testService(t *testing.T) (*Service, *[]string) {
	t.Helper()
	var events []string
	svc := NewService(testutil.TestStore(t), func(kind string, _ uuid.UUID) {
		events = append(events, kind)
	})
	return svc, &events
}

func addNode(t *testing.T, svc *Service, what string) *memory.MemoryNode {
	t.Helper()
	n := memory.NewNode(memory.NodeEvent, what)
	if _, err := svc.AddNode(context.Background(), n); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	return n
}

func TestNodeLifecycleEmitsEvents(t *testing.T) {
	svc, events := testService(t)
	ctx := context.Background()

	n := addNode(t, svc, "something happened")
	n.What = "something else happened"
	if err := svc.UpdateNode(ctx, n); err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}
	if err := svc.DeleteNode(ctx, n.ID); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}

	want := []string{"node.created", "node.updated", "node.deleted"}
	if len(*events) != len(want) {
		t.Fatalf("events = %v, want %v", *events, want)
	}
	for i := range want {
		if (*events)[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, (*events)[i], want[i])
		}
	}
}

func TestRemember_Deduplicates(t *testing.T) {
	svc, events := testService(t)
	ctx := context.Background()

	first := memory.NewNode(memory.NodeDecision, "use sqlite for persistence")
	id1, created, err := svc.Remember(ctx, first)
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if !created {
		t.Fatal("first Remember reported created=false")
	}

	second := memory.NewNode(memory.NodeDecision, "use sqlite for persistence")
	id2, created, err := svc.Remember(ctx, second)
	if err != nil {
		t.Fatalf("Remember (duplicate): %v", err)
	}
	if created {
		t.Error("duplicate Remember reported created=true")
	}
	if id2 != id1 {
		t.Errorf("duplicate Remember returned %s, want %s", id2, id1)
	}
	if got := len(*events); got != 1 {
		t.Errorf("%d events emitted, want 1 (duplicate stays silent)", got)
	}
}

func TestUpdateNode_Missing(t *testing.T) {
	svc, _ := testService(t)
	ghost := memory.NewNode(memory.NodeEvent, "ghost")
	if err := svc.UpdateNode(context.Background(), ghost); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("UpdateNode = %v, want ErrNotFound", err)
	}
}

func TestDeleteNode_Missing(t *testing.T) {
	svc, _ := testService(t)
	if err := svc.DeleteNode(context.Background(), uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("DeleteNode = %v, want ErrNotFound", err)
	}
}

func TestAddEdge_MissingEndpoint(t *testing.T) {
	svc, events := testService(t)
	ctx := context.Background()
	a := addNode(t, svc, "a")

	e := memory.NewEdge(a.ID, uuid.New(), memory.EdgeLedTo)
	if _, err := svc.AddEdge(ctx, e); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("AddEdge = %v, want ErrNotFound", err)
	}
	for _, kind := range *events {
		if kind == "edge.created" {
			t.Error("edge.created emitted for rejected edge")
		}
	}
}

func TestAddEdge_AndDelete(t *testing.T) {
	svc, events := testService(t)
	ctx := context.Background()
	a := addNode(t, svc, "a")
	b := addNode(t, svc, "b")

	e := memory.NewEdge(a.ID, b.ID, memory.EdgeLedTo)
	if _, err := svc.AddEdge(ctx, e); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := svc.DeleteEdge(ctx, e.ID); err != nil {
		t.Fatalf("DeleteEdge: %v", err)
	}

	var sawCreate, sawDelete bool
	for _, kind := range *events {
		switch kind {
		case "edge.created":
			sawCreate = true
		case "edge.deleted":
			sawDelete = true
		}
	}
	if !sawCreate || !sawDelete {
		t.Errorf("events = %v, missing edge lifecycle", *events)
	}
}

func recallNode(t *testing.T, svc *Service, what, project string, when time.Time, tags ...string) *memory.MemoryNode {
	t.Helper()
	n := memory.NewNode(memory.NodeEvent, what)
	n.Project = project
	n.When = &when
	n.Tags = tags
	if _, err := svc.AddNode(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestRecall_ByText(t *testing.T) {
	svc, _ := testService(t)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	recallNode(t, svc, "deployed the billing service", "", base)
	recallNode(t, svc, "ate lunch", "", base)

	got, err := svc.Recall(context.Background(), RecallOptions{Query: "billing"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(got) != 1 || got[0].What != "deployed the billing service" {
		t.Fatalf("got %d nodes", len(got))
	}
}

func TestRecall_ByTagsWithWindow(t *testing.T) {
	svc, _ := testService(t)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	recallNode(t, svc, "inside", "", base, "deploy")
	recallNode(t, svc, "outside", "", base.Add(-72*time.Hour), "deploy")

	since := base.Add(-time.Hour)
	got, err := svc.Recall(context.Background(), RecallOptions{Tags: []string{"deploy"}, Since: &since})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(got) != 1 || got[0].What != "inside" {
		t.Fatalf("got %d nodes", len(got))
	}
}

func TestRecall_DefaultIsRecency(t *testing.T) {
	svc, _ := testService(t)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	recallNode(t, svc, "older", "", base)
	recallNode(t, svc, "newer", "", base.Add(time.Hour))

	got, err := svc.Recall(context.Background(), RecallOptions{})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(got) != 2 || got[0].What != "newer" {
		t.Fatalf("got %v", got)
	}
}

func TestRecall_HopExpansion(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	seed := recallNode(t, svc, "incident in the payment flow", "", base)
	neighbor := recallNode(t, svc, "rollback", "", base.Add(time.Hour))
	recallNode(t, svc, "unrelated", "", base)

	e := memory.NewEdge(seed.ID, neighbor.ID, memory.EdgeLedTo)
	if _, err := svc.AddEdge(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Recall(ctx, RecallOptions{Query: "incident", Hops: 1})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d nodes, want seed plus neighbor", len(got))
	}
	// Newest first.
	if got[0].ID != neighbor.ID || got[1].ID != seed.ID {
		t.Errorf("order = [%s %s]", got[0].What, got[1].What)
	}
}

func TestRecall_LimitCapsExpansion(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	seed := recallNode(t, svc, "hub memory", "", base)
	for i := 0; i < 5; i++ {
		n := recallNode(t, svc, "spoke", "", base.Add(time.Duration(i+1)*time.Minute))
		if _, err := svc.AddEdge(ctx, memory.NewEdge(seed.ID, n.ID, memory.EdgeRelatesTo)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.Recall(ctx, RecallOptions{Query: "hub", Hops: 1, Limit: 3})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d nodes, want limit 3", len(got))
	}
}

func TestRecall_ProjectIncludesRoots(t *testing.T) {
	svc, _ := testService(t)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	recallNode(t, svc, "branch work", "orion", base)
	recallNode(t, svc, "other project", "vega", base)

	root := memory.NewNode(memory.NodeInsight, "durable lesson")
	root.Scope = memory.ScopeRoot
	root.When = &base
	if _, err := svc.AddNode(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Recall(context.Background(), RecallOptions{Project: "orion"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d nodes, want branch plus root", len(got))
	}
}

func TestRecall_RootsOnly(t *testing.T) {
	svc, _ := testService(t)
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	recallNode(t, svc, "branch work", "orion", base)

	root := memory.NewNode(memory.NodeInsight, "durable lesson")
	root.Scope = memory.ScopeRoot
	if _, err := svc.AddNode(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Recall(context.Background(), RecallOptions{RootsOnly: true})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(got) != 1 || got[0].Scope != memory.ScopeRoot {
		t.Fatalf("got %d nodes", len(got))
	}
}
