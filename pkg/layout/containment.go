package layout

import (
	"slices"

	"github.com/viewgrid/viewgrid/pkg/graph"
)

// applyContainment is the hierarchical containment engine.
//
// The parent/child tree comes from containment-tagged relationships.
// Children are placed on a grid inside their parent's bounds in
// deterministic sibling order, then each container grows to the minimum
// bounding box of its children plus a fixed margin, recursively bottom-up.
// Root boxes are finally packed left-to-right with fixed spacing.
func applyContainment(entities []Entity, relationships []Relationship) Result {
	ordered := orderEntities(entities)

	byGUID := make(map[string]Entity, len(ordered))
	for _, e := range ordered {
		byGUID[e.GUID] = e
	}

	// Containment relationships define the tree. Relationships pointing at
	// unknown entities are dangling and ignored.
	parent := make(map[string]string)
	children := make(map[string][]string)
	for _, r := range relationships {
		if !r.IsContainment() {
			continue
		}
		if _, ok := byGUID[r.FromGUID]; !ok {
			continue
		}
		if _, ok := byGUID[r.ToGUID]; !ok {
			continue
		}
		if _, claimed := parent[r.ToGUID]; claimed {
			continue // first containment claim wins
		}
		parent[r.ToGUID] = r.FromGUID
		children[r.FromGUID] = append(children[r.FromGUID], r.ToGUID)
	}

	// Child lists inherit the deterministic entity order.
	rank := make(map[string]int, len(ordered))
	for i, e := range ordered {
		rank[e.GUID] = i
	}
	for _, kids := range children {
		slices.SortStableFunc(kids, func(a, b string) int { return rank[a] - rank[b] })
	}

	// Bottom-up: compute each subtree as a box with children in local
	// coordinates, then pack roots left-to-right.
	var nodes []graph.Node
	cursorX := Margin
	for _, e := range ordered {
		if _, hasParent := parent[e.GUID]; hasParent {
			continue
		}
		box := layoutSubtree(e.GUID, byGUID, children, parent)
		shift(box.nodes, cursorX, Margin)
		nodes = append(nodes, box.nodes...)
		cursorX += box.size.W + RootSpacing
	}

	return Result{Nodes: nodes, Camera: graph.Camera{Zoom: 1}}
}

// subtreeBox is a laid-out subtree: nodes positioned relative to the box
// origin, plus the box size.
type subtreeBox struct {
	nodes []graph.Node
	size  graph.Size
}

func layoutSubtree(guid string, byGUID map[string]Entity, children map[string][]string, parent map[string]string) subtreeBox {
	e := byGUID[guid]
	kids := children[guid]

	self := graph.Node{
		GUID:       e.GUID,
		ParentGUID: parent[e.GUID],
		Label:      e.Label,
		GroupType:  e.GroupType,
		SortKey:    e.SortKey,
		Size:       baseSize(e),
		Expanded:   e.GroupType == graph.GroupContainer,
	}

	if len(kids) == 0 {
		return subtreeBox{nodes: []graph.Node{self}, size: self.Size}
	}

	// Grid-arrange child boxes. Column widths and row heights size to the
	// largest box they hold, so nested containers never overlap.
	boxes := make([]subtreeBox, len(kids))
	for i, kid := range kids {
		boxes[i] = layoutSubtree(kid, byGUID, children, parent)
	}

	cols := gridColumns(len(boxes))
	colW := make([]float64, cols)
	rowH := make([]float64, (len(boxes)+cols-1)/cols)
	for i, b := range boxes {
		row, col := i/cols, i%cols
		colW[col] = max(colW[col], b.size.W)
		rowH[row] = max(rowH[row], b.size.H)
	}

	maxRight, maxBottom := 0.0, 0.0
	y := Margin
	for i := range boxes {
		row, col := i/cols, i%cols
		x := Margin
		for c := range col {
			x += colW[c] + CellGap
		}
		if col == 0 && row > 0 {
			y += rowH[row-1] + CellGap
		}
		shift(boxes[i].nodes, x, y)
		maxRight = max(maxRight, x+boxes[i].size.W)
		maxBottom = max(maxBottom, y+boxes[i].size.H)
	}

	// Grow the container to the minimum bounding box plus margin.
	self.Size = graph.Size{W: maxRight + Margin, H: maxBottom + Margin}

	nodes := []graph.Node{self}
	for _, b := range boxes {
		nodes = append(nodes, b.nodes...)
	}
	return subtreeBox{nodes: nodes, size: self.Size}
}

// shift translates every node in the slice by (dx, dy).
func shift(nodes []graph.Node, dx, dy float64) {
	for i := range nodes {
		nodes[i].Position.X += dx
		nodes[i].Position.Y += dy
	}
}
