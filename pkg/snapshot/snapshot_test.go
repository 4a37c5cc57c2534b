package snapshot

import (
	"strings"
	"testing"

	"github.com/viewgrid/viewgrid/pkg/errors"
	"github.com/viewgrid/viewgrid/pkg/graph"
)

func buildGraph(t *testing.T) *graph.ViewGraph {
	t.Helper()
	g := graph.New(graph.DisplayModeContainment)
	nodes := []graph.Node{
		{GUID: "box", GroupType: graph.GroupContainer, Expanded: true,
			Position: graph.Point{X: 10, Y: 20}, Size: graph.Size{W: 500, H: 400}},
		{GUID: "z-child", ParentGUID: "box", SortKey: 1,
			Position: graph.Point{X: 58, Y: 68}, Size: graph.Size{W: 176, H: 96}},
		{GUID: "a-child", ParentGUID: "box", SortKey: 1,
			Position: graph.Point{X: 266, Y: 68}, Size: graph.Size{W: 176, H: 96}},
	}
	for _, n := range nodes {
		if err := g.Put(n); err != nil {
			t.Fatalf("Put(%s): %v", n.GUID, err)
		}
	}
	if err := g.AddEdge(graph.Edge{
		ID: "e1", FromGUID: "z-child", ToGUID: "a-child", RelationType: "LINKS",
	}); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	g.SetCamera(graph.Camera{PanX: -120, PanY: 40, Zoom: 1.25})
	return g
}

func TestCaptureRestoreRoundTrip(t *testing.T) {
	g := buildGraph(t)
	wantVersion := g.Version()

	restored, err := Restore(ptrSnap(Capture(g)))
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if restored.Len() != g.Len() {
		t.Fatalf("node count = %d, want %d", restored.Len(), g.Len())
	}
	for _, orig := range g.Nodes() {
		n := restored.Node(orig.GUID)
		if n == nil {
			t.Fatalf("node %s missing after round trip", orig.GUID)
		}
		if n.Position != orig.Position {
			t.Errorf("%s position = %+v, want %+v", n.GUID, n.Position, orig.Position)
		}
		if n.Size != orig.Size {
			t.Errorf("%s size = %+v, want %+v", n.GUID, n.Size, orig.Size)
		}
		if n.ParentGUID != orig.ParentGUID {
			t.Errorf("%s parent = %q, want %q", n.GUID, n.ParentGUID, orig.ParentGUID)
		}
	}
	if got := len(restored.Edges()); got != 1 {
		t.Errorf("edge count = %d, want 1", got)
	}
	if restored.Camera() != g.Camera() {
		t.Errorf("camera = %+v, want %+v", restored.Camera(), g.Camera())
	}
	// Restoring must not advance the version: no layout, no mutation.
	if restored.Version() != wantVersion {
		t.Errorf("version = %d, want %d carried through", restored.Version(), wantVersion)
	}
}

func TestRoundTripKeepsSiblingOrder(t *testing.T) {
	g := buildGraph(t)

	// z-child and a-child share a sort key; creation order breaks the tie
	// and must survive persistence.
	order := func(g *graph.ViewGraph) []string {
		var guids []string
		for _, c := range g.Children("box") {
			guids = append(guids, c.GUID)
		}
		return guids
	}
	want := order(g)

	restored, err := Restore(ptrSnap(Capture(g)))
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	got := order(restored)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("sibling order = %v, want %v", got, want)
	}
}

func TestCaptureIsDetached(t *testing.T) {
	g := buildGraph(t)
	snap := Capture(g)

	// Mutating the live graph after capture must not change the snapshot.
	if _, err := g.UpsertNode(graph.NodePatch{
		GUID: "z-child", Position: &graph.Point{X: 9999, Y: 9999},
	}); err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}
	for _, n := range snap.Nodes {
		if n.GUID == "z-child" && n.Position.X == 9999 {
			t.Error("snapshot shares memory with the live graph")
		}
	}
}

func TestCapturePreservesFlattenBookkeeping(t *testing.T) {
	g := buildGraph(t)
	box := g.Node("box")
	box.Meta.PerNodeFlattened = true
	box.Meta.FlattenedChildren = []graph.Node{
		{GUID: "z-child", ParentGUID: "box", Position: graph.Point{X: 58, Y: 68}},
	}

	restored, err := Restore(ptrSnap(Capture(g)))
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	n := restored.Node("box")
	if !n.IsFlattened() {
		t.Error("flatten flag lost")
	}
	if len(n.Meta.FlattenedChildren) != 1 || n.Meta.FlattenedChildren[0].GUID != "z-child" {
		t.Errorf("flattened children = %+v", n.Meta.FlattenedChildren)
	}
}

func TestRestoreDropsDanglingEdges(t *testing.T) {
	snap := Snapshot{
		DisplayMode: graph.DisplayModeContainment,
		Nodes:       []graph.Node{{GUID: "a"}},
		Edges: []graph.Edge{
			{ID: "bad", FromGUID: "a", ToGUID: "gone"},
		},
	}
	g, err := Restore(&snap)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := len(g.Edges()); got != 0 {
		t.Errorf("edge count = %d, want dangling edge dropped", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		snap *Snapshot
		ok   bool
	}{
		{"nil snapshot", nil, false},
		{"nil nodes", &Snapshot{}, false},
		{"empty nodes", &Snapshot{Nodes: []graph.Node{}}, true},
		{"empty guid", &Snapshot{Nodes: []graph.Node{{GUID: ""}}}, false},
		{"duplicate guid", &Snapshot{Nodes: []graph.Node{{GUID: "a"}, {GUID: "a"}}}, false},
		{"flattened without children", &Snapshot{Nodes: []graph.Node{
			{GUID: "a", Meta: graph.NodeMeta{PerNodeFlattened: true}},
		}}, false},
		{"valid", &Snapshot{Nodes: []graph.Node{{GUID: "a"}, {GUID: "b"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.snap)
			if tt.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, errors.ErrCodeCorruptSnapshot) {
					t.Errorf("err = %v, want CORRUPT_SNAPSHOT", err)
				}
			}
		})
	}
}

func ptrSnap(s Snapshot) *Snapshot { return &s }
