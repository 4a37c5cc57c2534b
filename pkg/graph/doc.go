// Package graph defines the canonical in-memory graph model for one canvas
// view: nodes, edges, camera, and the graph-level metadata that tracks the
// display mode and the structural version.
//
// # Ownership model
//
// Canonical node ownership is a flat arena keyed by GUID. The parent/child
// tree that the renderer walks is a derived index rebuilt from ParentGUID on
// every mutation - parent pointers and child lists cannot drift apart
// because only one of them is authoritative.
//
// The layout runtime (package runtime) is the single writer. Everything
// else - renderer, server handlers, exporters - holds read-only views and
// routes mutation intent through the runtime's public operations.
//
// # Versioning
//
// Every structural mutation bumps ViewMeta.Version and stamps the new value
// onto the touched node. The delta pipeline compares an incoming delta's
// version against the target node's stamp to discard stale or re-ordered
// deliveries, and snapshot load carries the persisted version through
// unchanged to prove that no layout ran.
//
// # Invariants
//
// At every observable point:
//   - Edge endpoints resolve to live nodes; dangling edges are dropped on
//     entry (AddEdge) or swept (PruneDanglingEdges), never rendered.
//   - A node's GUID never changes identity; flatten, unflatten, and delta
//     merge rewrite only ParentGUID, Expanded, and Meta.
//   - A node with Meta.PerNodeFlattened set carries enough state in
//     Meta.FlattenedChildren to reconstruct its pre-flatten subtree exactly.
//
// # Usage
//
//	g := graph.New(graph.DisplayModeContainment)
//	g.Put(graph.Node{GUID: "a", GroupType: graph.GroupContainer, Expanded: true})
//	g.Put(graph.Node{GUID: "b", ParentGUID: "a"})
//
//	pos := graph.Point{X: 48, Y: 48}
//	g.UpsertNode(graph.NodePatch{GUID: "b", Position: &pos})
//
//	for _, child := range g.Children("a") {
//	    fmt.Println(child.GUID, child.Position)
//	}
package graph
