package export

import (
	"strings"
	"testing"

	"github.com/viewgrid/viewgrid/pkg/graph"
)

func buildGraph(t *testing.T) *graph.ViewGraph {
	t.Helper()
	g := graph.New(graph.DisplayModeContainment)
	nodes := []graph.Node{
		{GUID: "box", Label: "Box", GroupType: graph.GroupContainer, Expanded: true},
		{GUID: "a", Label: "Alpha", ParentGUID: "box"},
		{GUID: "b", Label: "Beta"},
	}
	for _, n := range nodes {
		if err := g.Put(n); err != nil {
			t.Fatalf("Put(%s): %v", n.GUID, err)
		}
	}
	edges := []graph.Edge{
		{ID: "e1", FromGUID: "a", ToGUID: "b", Label: "links", RelationType: "LINKS"},
		{ID: "e2", FromGUID: "box", ToGUID: "b", RelationType: graph.RelationContains, Generated: true},
	}
	for _, e := range edges {
		if err := g.AddEdge(e); err != nil {
			t.Fatalf("AddEdge(%s): %v", e.ID, err)
		}
	}
	return g
}

func TestToDOTContainersBecomeClusters(t *testing.T) {
	dot := ToDOT(buildGraph(t), Options{})

	if !strings.Contains(dot, `subgraph "cluster_box"`) {
		t.Errorf("no cluster for container:\n%s", dot)
	}
	if !strings.Contains(dot, `"a" [label="Alpha"]`) {
		t.Errorf("child node missing:\n%s", dot)
	}
	if !strings.Contains(dot, `"a" -> "b" [label="links"]`) {
		t.Errorf("edge missing:\n%s", dot)
	}
}

func TestToDOTGeneratedEdges(t *testing.T) {
	g := buildGraph(t)

	dot := ToDOT(g, Options{})
	if strings.Contains(dot, `"box" -> "b"`) {
		t.Errorf("generated edge exported by default:\n%s", dot)
	}

	dot = ToDOT(g, Options{IncludeGenerated: true})
	if !strings.Contains(dot, `"box" -> "b" [style=dashed, color=grey]`) {
		t.Errorf("generated edge missing or unstyled:\n%s", dot)
	}
}

func TestToDOTDetailedLabels(t *testing.T) {
	dot := ToDOT(buildGraph(t), Options{Detailed: true})
	if !strings.Contains(dot, "guid: a") {
		t.Errorf("detailed label missing guid:\n%s", dot)
	}
}

func TestToDOTUnlabeledNodeFallsBack(t *testing.T) {
	g := graph.New(graph.DisplayModeFlat)
	if err := g.Put(graph.Node{GUID: "n1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	dot := ToDOT(g, Options{})
	if !strings.Contains(dot, `"n1" [label=`) {
		t.Errorf("unlabeled node missing:\n%s", dot)
	}
}
