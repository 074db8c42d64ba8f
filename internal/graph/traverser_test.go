package graph

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/starford/engram/internal/memory"
	"github.com/starford/engram/internal/store"
	"github.com/starford/engram/internal/testutil"
)

func addNode(t *testing.T, db store.Store, what string) *memory.MemoryNode {
	t.Helper()
	n := memory.NewNode(memory.NodeEvent, what)
	if _, err := db.AddNode(n); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	return n
}

func link(t *testing.T, db store.Store, from, to uuid.UUID, et memory.EdgeType) {
	t.Helper()
	if _, err := db.AddEdge(memory.NewEdge(from, to, et)); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
}

// chain builds A -> B -> C -> D with led_to edges.
func chain(t *testing.T, db store.Store) []*memory.MemoryNode {
	t.Helper()
	nodes := []*memory.MemoryNode{
		addNode(t, db, "a"), addNode(t, db, "b"),
		addNode(t, db, "c"), addNode(t, db, "d"),
	}
	for i := 0; i+1 < len(nodes); i++ {
		link(t, db, nodes[i].ID, nodes[i+1].ID, memory.EdgeLedTo)
	}
	return nodes
}

func TestTraverseBFS_ZeroHops(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	nodes := chain(t, db)

	got, err := tr.TraverseBFS(nodes[0].ID, 0, nil, memory.Both, true)
	if err != nil {
		t.Fatalf("TraverseBFS: %v", err)
	}
	if len(got) != 1 || got[0].Node.ID != nodes[0].ID {
		t.Fatalf("zero hops returned %d results", len(got))
	}
	if got[0].Score != 1.0 || got[0].HopCount != 0 {
		t.Errorf("start result = score %v hops %d", got[0].Score, got[0].HopCount)
	}
}

func TestTraverseBFS_HopLimitAndScores(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	nodes := chain(t, db)

	got, err := tr.TraverseBFS(nodes[0].ID, 2, nil, memory.Outgoing, true)
	if err != nil {
		t.Fatalf("TraverseBFS: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results, want a, b, c", len(got))
	}
	for i, want := range []struct {
		what  string
		hops  int
		score float64
	}{
		{"a", 0, 1.0},
		{"b", 1, 0.5},
		{"c", 2, 1.0 / 3.0},
	} {
		r := got[i]
		if r.Node.What != want.what || r.HopCount != want.hops || r.Score != want.score {
			t.Errorf("result[%d] = %s/%d/%v, want %s/%d/%v",
				i, r.Node.What, r.HopCount, r.Score, want.what, want.hops, want.score)
		}
	}
}

func TestTraverseBFS_ExcludeStart(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	nodes := chain(t, db)

	got, err := tr.TraverseBFS(nodes[0].ID, 1, nil, memory.Outgoing, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Node.What != "b" {
		t.Fatalf("got %d results", len(got))
	}
}

func TestTraverseBFS_EdgeTypeFilter(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	a := addNode(t, db, "a")
	b := addNode(t, db, "b")
	c := addNode(t, db, "c")
	link(t, db, a.ID, b.ID, memory.EdgeLedTo)
	link(t, db, a.ID, c.ID, memory.EdgeMentions)

	got, err := tr.TraverseBFS(a.ID, 1, []memory.EdgeType{memory.EdgeLedTo}, memory.Both, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Node.ID != b.ID {
		t.Fatalf("type-filtered traversal returned %d results", len(got))
	}
}

func TestTraverseBFS_Cycle(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	a := addNode(t, db, "a")
	b := addNode(t, db, "b")
	link(t, db, a.ID, b.ID, memory.EdgeLedTo)
	link(t, db, b.ID, a.ID, memory.EdgeLedTo)

	got, err := tr.TraverseBFS(a.ID, 5, nil, memory.Both, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("cycle traversal returned %d results, want 2", len(got))
	}
}

func TestTraverseBFS_MissingStart(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)

	got, err := tr.TraverseBFS(uuid.New(), 2, nil, memory.Both, true)
	if err != nil {
		t.Fatalf("TraverseBFS: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("missing start returned %d results", len(got))
	}
}

func TestTraverseBFS_PathRecorded(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	nodes := chain(t, db)

	got, err := tr.TraverseBFS(nodes[0].ID, 3, nil, memory.Outgoing, false)
	if err != nil {
		t.Fatal(err)
	}
	last := got[len(got)-1]
	if last.Node.ID != nodes[3].ID {
		t.Fatalf("last = %s", last.Node.What)
	}
	want := []uuid.UUID{nodes[0].ID, nodes[1].ID, nodes[2].ID, nodes[3].ID}
	if len(last.Path) != len(want) {
		t.Fatalf("path length = %d, want %d", len(last.Path), len(want))
	}
	for i := range want {
		if last.Path[i] != want[i] {
			t.Errorf("path[%d] = %s, want %s", i, last.Path[i], want[i])
		}
	}
}

func TestFindPath_Chain(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	nodes := chain(t, db)

	path, err := tr.FindPath(nodes[0].ID, nodes[3].ID, 5)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if len(path) != 4 {
		t.Fatalf("path length = %d, want 4", len(path))
	}
	for i, n := range nodes {
		if path[i].ID != n.ID {
			t.Errorf("path[%d] = %s, want %s", i, path[i].What, n.What)
		}
	}
}

func TestFindPath_MaxHopsTooSmall(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	nodes := chain(t, db)

	path, err := tr.FindPath(nodes[0].ID, nodes[3].ID, 2)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if path != nil {
		t.Errorf("found a %d-node path within 2 hops", len(path))
	}
}

func TestFindPath_ExactHopBudget(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	nodes := chain(t, db)

	path, err := tr.FindPath(nodes[0].ID, nodes[3].ID, 3)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if len(path) != 4 {
		t.Errorf("path length = %d, want 4 (three edges fit a budget of 3)", len(path))
	}
}

func TestFindPath_SameNode(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	a := addNode(t, db, "a")

	path, err := tr.FindPath(a.ID, a.ID, 3)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if len(path) != 1 || path[0].ID != a.ID {
		t.Errorf("same-node path = %v", path)
	}
}

func TestFindPath_Disconnected(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	a := addNode(t, db, "a")
	b := addNode(t, db, "b")

	path, err := tr.FindPath(a.ID, b.ID, 5)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if path != nil {
		t.Errorf("found path between disconnected nodes: %v", path)
	}
}

func TestFindPath_PrefersShortest(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	a := addNode(t, db, "a")
	b := addNode(t, db, "b")
	c := addNode(t, db, "c")
	// Long way round: a -> b -> c. Shortcut: a -> c.
	link(t, db, a.ID, b.ID, memory.EdgeLedTo)
	link(t, db, b.ID, c.ID, memory.EdgeLedTo)
	link(t, db, a.ID, c.ID, memory.EdgeRelatesTo)

	path, err := tr.FindPath(a.ID, c.ID, 5)
	if err != nil {
		t.Fatalf("FindPath: %v", err)
	}
	if len(path) != 2 {
		t.Errorf("path length = %d, want the direct edge", len(path))
	}
}

func TestFindRelated(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	bug := addNode(t, db, "checkout bug")
	fix := addNode(t, db, "hotfix deployed")
	postmortem := addNode(t, db, "postmortem written")
	link(t, db, fix.ID, bug.ID, memory.EdgeCausedBy)
	link(t, db, postmortem.ID, bug.ID, memory.EdgeCausedBy)

	got, err := tr.FindRelated(bug.ID, memory.EdgeCausedBy, memory.Incoming)
	if err != nil {
		t.Fatalf("FindRelated: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d related nodes, want 2", len(got))
	}
	seen := map[uuid.UUID]bool{}
	for _, n := range got {
		seen[n.ID] = true
	}
	if !seen[fix.ID] || !seen[postmortem.ID] {
		t.Errorf("related set missing expected nodes")
	}
}

func TestFindRelated_Empty(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	a := addNode(t, db, "a")

	got, err := tr.FindRelated(a.ID, memory.EdgeLedTo, memory.Both)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d related nodes, want none", len(got))
	}
}

func timedNode(t *testing.T, db store.Store, what string, when time.Time) *memory.MemoryNode {
	t.Helper()
	n := memory.NewNode(memory.NodeEvent, what)
	n.When = &when
	if _, err := db.AddNode(n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestContextWindow(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	var nodes []*memory.MemoryNode
	for i := 0; i < 5; i++ {
		nodes = append(nodes, timedNode(t, db, string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour)))
	}
	center := nodes[2]

	got, err := tr.ContextWindow(center.ID, 2, 2)
	if err != nil {
		t.Fatalf("ContextWindow: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("window has %d nodes, want 5", len(got))
	}
	for i := range got {
		if got[i].ID != nodes[i].ID {
			t.Errorf("window[%d] = %s, want %s", i, got[i].What, nodes[i].What)
		}
	}
}

func TestContextWindow_Asymmetric(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	var nodes []*memory.MemoryNode
	for i := 0; i < 5; i++ {
		nodes = append(nodes, timedNode(t, db, string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour)))
	}

	got, err := tr.ContextWindow(nodes[2].ID, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("window has %d nodes, want 2", len(got))
	}
	if got[0].ID != nodes[1].ID || got[1].ID != nodes[2].ID {
		t.Errorf("window = [%s %s]", got[0].What, got[1].What)
	}
}

func TestContextWindow_NearestSuccessors(t *testing.T) {
	db := testutil.TestStore(t)
	tr := New(db)
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	var nodes []*memory.MemoryNode
	for i := 0; i < 6; i++ {
		nodes = append(nodes, timedNode(t, db, string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour)))
	}
	center := nodes[1]

	got, err := tr.ContextWindow(center.ID, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("window has %d nodes, want 3", len(got))
	}
	want := []*memory.MemoryNode{nodes[1], nodes[2], nodes[3]}
	for i := range got {
		if got[i].ID != want[i].ID {
			t.Errorf("window[%d] = %s, want %s", i, got[i].What, want[i].What)
		}
	}
}
