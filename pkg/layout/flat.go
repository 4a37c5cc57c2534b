package layout

import (
	"math"

	"github.com/viewgrid/viewgrid/pkg/graph"
)

// Force relaxation tuning. The iteration budget is fixed so the engine
// stays pure: same inputs, same positions, no wall-clock dependence.
const (
	forceIterations = 120
	forceAttract    = 0.012 // spring constant along edges
	forceRepulse    = 48000 // pairwise repulsion numerator
	forceDamping    = 0.85
	forceMinDist    = 1.0 // clamp to avoid division blow-ups on overlap
)

// applyFlatGrid is the deterministic flat engine: hierarchy is ignored and
// every entity becomes a top-level node on a grid. This is the default flat
// strategy and the one test snapshots rely on.
func applyFlatGrid(entities []Entity) Result {
	ordered := orderEntities(entities)

	nodes := make([]graph.Node, len(ordered))
	for i, e := range ordered {
		nodes[i] = graph.Node{
			GUID:      e.GUID,
			Label:     e.Label,
			GroupType: e.GroupType,
			SortKey:   e.SortKey,
			Size:      baseSize(e),
			Expanded:  e.GroupType == graph.GroupContainer,
			Position:  GridSlot(i, len(ordered)),
		}
	}
	return Result{Nodes: nodes, Camera: graph.Camera{Zoom: 1}}
}

// applyForce refines the flat grid with damped force-directed relaxation:
// attraction along relationship edges, repulsion between all pairs, over a
// fixed iteration budget. Seeded from the deterministic grid, so it is
// still a pure function of its inputs.
func applyForce(entities []Entity, relationships []Relationship) Result {
	res := applyFlatGrid(entities)
	nodes := res.Nodes
	if len(nodes) < 2 {
		return res
	}

	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.GUID] = i
	}

	type spring struct{ a, b int }
	var springs []spring
	for _, r := range relationships {
		a, okA := index[r.FromGUID]
		b, okB := index[r.ToGUID]
		if okA && okB && a != b {
			springs = append(springs, spring{a, b})
		}
	}

	vx := make([]float64, len(nodes))
	vy := make([]float64, len(nodes))
	for range forceIterations {
		fx := make([]float64, len(nodes))
		fy := make([]float64, len(nodes))

		// Repulsion between all pairs.
		for i := range nodes {
			for j := i + 1; j < len(nodes); j++ {
				dx := nodes[i].Position.X - nodes[j].Position.X
				dy := nodes[i].Position.Y - nodes[j].Position.Y
				d2 := dx*dx + dy*dy
				if d2 < forceMinDist {
					d2 = forceMinDist
					dx, dy = 1, 0 // deterministic push for exact overlaps
				}
				d := math.Sqrt(d2)
				f := forceRepulse / d2
				fx[i] += f * dx / d
				fy[i] += f * dy / d
				fx[j] -= f * dx / d
				fy[j] -= f * dy / d
			}
		}

		// Attraction along edges.
		for _, s := range springs {
			dx := nodes[s.b].Position.X - nodes[s.a].Position.X
			dy := nodes[s.b].Position.Y - nodes[s.a].Position.Y
			fx[s.a] += forceAttract * dx
			fy[s.a] += forceAttract * dy
			fx[s.b] -= forceAttract * dx
			fy[s.b] -= forceAttract * dy
		}

		for i := range nodes {
			vx[i] = (vx[i] + fx[i]) * forceDamping
			vy[i] = (vy[i] + fy[i]) * forceDamping
			nodes[i].Position.X += vx[i]
			nodes[i].Position.Y += vy[i]
		}
	}

	return Result{Nodes: nodes, Camera: res.Camera}
}
