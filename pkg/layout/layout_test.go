package layout

import (
	"testing"

	"github.com/viewgrid/viewgrid/pkg/errors"
	"github.com/viewgrid/viewgrid/pkg/graph"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		tag     string
		want    Kind
		wantErr bool
	}{
		{"containment", KindContainment, false},
		{"flat", KindFlat, false},
		{"force", KindForce, false},
		{"Containment", KindContainment, false}, // tags are case-insensitive
		{"", "", true},
		{"spiral", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseKind(tt.tag)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeInvalidEngine) {
					t.Fatalf("ParseKind(%q) err = %v, want INVALID_ENGINE", tt.tag, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKind(%q): %v", tt.tag, err)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestApplyUnknownKind(t *testing.T) {
	if _, err := Apply(Kind("spiral"), nil, nil); !errors.Is(err, errors.ErrCodeInvalidEngine) {
		t.Errorf("err = %v, want INVALID_ENGINE", err)
	}
}

func TestFlatGridDeterministic(t *testing.T) {
	entities := []Entity{
		{GUID: "c", SortKey: 3},
		{GUID: "a", SortKey: 1},
		{GUID: "b", SortKey: 2},
		{GUID: "d", SortKey: 3}, // ties with c; input order must win
	}

	first, err := Apply(KindFlat, entities, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	second, _ := Apply(KindFlat, entities, nil)

	var order []string
	for i, n := range first.Nodes {
		order = append(order, n.GUID)
		if n.Position != second.Nodes[i].Position {
			t.Errorf("run 2 moved %s: %+v vs %+v", n.GUID, n.Position, second.Nodes[i].Position)
		}
	}
	want := []string{"a", "b", "c", "d"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}

	// Golden positions: 4 entities on a 2-column grid.
	if got := first.Nodes[0].Position; got != (graph.Point{X: Margin, Y: Margin}) {
		t.Errorf("first slot = %+v", got)
	}
	if got := first.Nodes[1].Position; got != (graph.Point{X: Margin + DefaultItemW + CellGap, Y: Margin}) {
		t.Errorf("second slot = %+v", got)
	}
	if got := first.Nodes[2].Position; got != (graph.Point{X: Margin, Y: Margin + DefaultItemH + CellGap}) {
		t.Errorf("third slot = %+v", got)
	}
}

func TestContainmentNestsAndGrows(t *testing.T) {
	entities := []Entity{
		{GUID: "box", GroupType: graph.GroupContainer},
		{GUID: "one", SortKey: 1},
		{GUID: "two", SortKey: 2},
	}
	relationships := []Relationship{
		{FromGUID: "box", ToGUID: "one", RelationType: "contains"}, // case-insensitive
		{FromGUID: "box", ToGUID: "two", RelationType: "CONTAINS"},
	}

	res, err := Apply(KindContainment, entities, relationships)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	byGUID := map[string]graph.Node{}
	for _, n := range res.Nodes {
		byGUID[n.GUID] = n
	}

	box := byGUID["box"]
	if box.ParentGUID != "" {
		t.Errorf("box parent = %q, want root", box.ParentGUID)
	}
	for _, guid := range []string{"one", "two"} {
		n := byGUID[guid]
		if n.ParentGUID != "box" {
			t.Errorf("%s parent = %q, want box", guid, n.ParentGUID)
		}
		// Children sit inside the parent's bounds with at least the margin.
		if n.Position.X < box.Position.X+Margin || n.Position.Y < box.Position.Y+Margin {
			t.Errorf("%s at %+v escapes box at %+v", guid, n.Position, box.Position)
		}
		if n.Position.X+n.Size.W > box.Position.X+box.Size.W-Margin+1e-9 ||
			n.Position.Y+n.Size.H > box.Position.Y+box.Size.H-Margin+1e-9 {
			t.Errorf("%s overflows grown box: node %+v/%+v box %+v/%+v",
				guid, n.Position, n.Size, box.Position, box.Size)
		}
	}

	// Container must have grown beyond its default footprint to hold both.
	if box.Size.W <= DefaultContainerW && box.Size.H <= DefaultContainerH {
		t.Errorf("box did not grow: %+v", box.Size)
	}
}

func TestContainmentPacksRootsLeftToRight(t *testing.T) {
	entities := []Entity{
		{GUID: "left", GroupType: graph.GroupContainer, SortKey: 1},
		{GUID: "right", GroupType: graph.GroupContainer, SortKey: 2},
	}

	res, err := Apply(KindContainment, entities, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	var left, right graph.Node
	for _, n := range res.Nodes {
		switch n.GUID {
		case "left":
			left = n
		case "right":
			right = n
		}
	}
	if got := right.Position.X - (left.Position.X + left.Size.W); got != RootSpacing {
		t.Errorf("root gap = %v, want %v", got, RootSpacing)
	}
	if left.Position.Y != right.Position.Y {
		t.Errorf("roots not on one row: %v vs %v", left.Position.Y, right.Position.Y)
	}
}

func TestContainmentDeepNesting(t *testing.T) {
	entities := []Entity{
		{GUID: "outer", GroupType: graph.GroupContainer},
		{GUID: "inner", GroupType: graph.GroupContainer},
		{GUID: "leaf"},
	}
	relationships := []Relationship{
		{FromGUID: "outer", ToGUID: "inner", RelationType: graph.RelationContains},
		{FromGUID: "inner", ToGUID: "leaf", RelationType: graph.RelationContains},
	}

	res, err := Apply(KindContainment, entities, relationships)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	byGUID := map[string]graph.Node{}
	for _, n := range res.Nodes {
		byGUID[n.GUID] = n
	}
	outer, inner := byGUID["outer"], byGUID["inner"]
	if inner.Size.W+2*Margin > outer.Size.W+1e-9 {
		t.Errorf("outer %v too small for inner %v plus margins", outer.Size, inner.Size)
	}
	leaf := byGUID["leaf"]
	if leaf.ParentGUID != "inner" {
		t.Errorf("leaf parent = %q, want inner", leaf.ParentGUID)
	}
}

func TestContainmentIgnoresDanglingRelationships(t *testing.T) {
	entities := []Entity{{GUID: "only"}}
	relationships := []Relationship{
		{FromGUID: "ghost", ToGUID: "only", RelationType: graph.RelationContains},
		{FromGUID: "only", ToGUID: "phantom", RelationType: graph.RelationContains},
	}

	res, err := Apply(KindContainment, entities, relationships)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Nodes) != 1 || res.Nodes[0].ParentGUID != "" {
		t.Errorf("nodes = %+v, want a single root", res.Nodes)
	}
}

func TestForceDeterministicAndAttracts(t *testing.T) {
	entities := []Entity{
		{GUID: "a", SortKey: 1},
		{GUID: "b", SortKey: 2},
		{GUID: "c", SortKey: 3},
		{GUID: "d", SortKey: 4},
	}
	relationships := []Relationship{{FromGUID: "a", ToGUID: "b", RelationType: "CALLS"}}

	first, err := Apply(KindForce, entities, relationships)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	second, _ := Apply(KindForce, entities, relationships)
	for i := range first.Nodes {
		if first.Nodes[i].Position != second.Nodes[i].Position {
			t.Fatalf("force layout not deterministic at %s", first.Nodes[i].GUID)
		}
	}

	pos := map[string]graph.Point{}
	for _, n := range first.Nodes {
		pos[n.GUID] = n.Position
	}
	dist := func(a, b graph.Point) float64 {
		dx, dy := a.X-b.X, a.Y-b.Y
		return dx*dx + dy*dy
	}
	// The connected pair should end up closer than the unconnected one.
	if dist(pos["a"], pos["b"]) >= dist(pos["c"], pos["d"])*4 {
		t.Errorf("spring had no effect: ab=%v cd=%v", dist(pos["a"], pos["b"]), dist(pos["c"], pos["d"]))
	}
}

func TestGridSlotSingleAddMatchesAppend(t *testing.T) {
	// Placing the node at index n of an n+1 grid must be stable across the
	// two call sites the runtime uses (initial layout vs delta add).
	total := 5
	slot := GridSlot(total-1, total)
	if slot.X < Margin || slot.Y < Margin {
		t.Errorf("slot = %+v outside canvas margin", slot)
	}
	if GridSlot(total-1, total) != slot {
		t.Error("GridSlot not stable")
	}
}
