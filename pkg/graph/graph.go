package graph

import (
	"errors"
	"maps"
	"slices"
)

var (
	// ErrInvalidGUID is returned by [ViewGraph.UpsertNode] when the node
	// GUID is empty. All nodes must have non-empty identifiers.
	ErrInvalidGUID = errors.New("node GUID must not be empty")

	// ErrUnknownNode is returned by mutation primitives when the referenced
	// node does not exist in the graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownSourceNode is returned by [ViewGraph.AddEdge] when the
	// FromGUID does not resolve to a live node.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [ViewGraph.AddEdge] when the
	// ToGUID does not resolve to a live node.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrDuplicateEdgeID is returned by [ViewGraph.AddEdge] when an edge
	// with the same ID already exists.
	ErrDuplicateEdgeID = errors.New("duplicate edge ID")

	// ErrUnknownEdge is returned by [ViewGraph.PatchEdge] when the edge ID
	// does not resolve to a live edge.
	ErrUnknownEdge = errors.New("unknown edge")
)

// ViewGraph is the in-memory aggregate of nodes, edges, and camera for one
// view instance. Canonical node ownership is a flat map keyed by GUID; the
// parent/child tree is a derived index recomputed from ParentGUID, never an
// independent set of mutable pointers.
//
// Every structural mutation bumps the graph version and stamps it onto the
// touched node, so stale deltas can be detected per node.
//
// The zero value is not usable - use New. ViewGraph is not safe for
// concurrent use; the layout runtime serializes all access.
type ViewGraph struct {
	nodes  map[string]*Node
	edges  []Edge
	camera Camera
	meta   ViewMeta

	children map[string][]string // parent GUID -> ordered child GUIDs
	nextSeq  uint64
}

// New creates an empty ViewGraph with the given display-mode fallback.
// An empty displayMode defaults to containment. Zoom starts at 1.
func New(displayMode string) *ViewGraph {
	if displayMode == "" {
		displayMode = DisplayModeContainment
	}
	return &ViewGraph{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		camera:   Camera{Zoom: 1},
		meta:     ViewMeta{DisplayMode: displayMode},
	}
}

// Meta returns the graph-level metadata (display mode and version).
func (g *ViewGraph) Meta() ViewMeta { return g.meta }

// Version returns the current graph version.
func (g *ViewGraph) Version() uint64 { return g.meta.Version }

// SetVersion overwrites the graph version. Snapshot load uses this to carry
// the persisted version through unchanged; nothing else should call it.
func (g *ViewGraph) SetVersion(v uint64) { g.meta.Version = v }

// SetDisplayMode sets the global display-mode fallback.
func (g *ViewGraph) SetDisplayMode(mode string) { g.meta.DisplayMode = mode }

// Camera returns the current camera.
func (g *ViewGraph) Camera() Camera { return g.camera }

// SetCamera replaces the camera. Camera moves are cosmetic and do not bump
// the structural version.
func (g *ViewGraph) SetCamera(c Camera) { g.camera = c }

// Len returns the number of live nodes.
func (g *ViewGraph) Len() int { return len(g.nodes) }

// bump advances the graph version and returns the new value.
func (g *ViewGraph) bump() uint64 {
	g.meta.Version++
	return g.meta.Version
}

// =============================================================================
// Node primitives
// =============================================================================

// Node returns the live node with the given GUID, or nil if absent.
// Callers outside the runtime must treat the result as read-only.
func (g *ViewGraph) Node(guid string) *Node {
	return g.nodes[guid]
}

// Nodes returns all live nodes sorted by GUID for deterministic iteration.
func (g *ViewGraph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *Node) int {
		switch {
		case a.GUID < b.GUID:
			return -1
		case a.GUID > b.GUID:
			return 1
		default:
			return 0
		}
	})
	return out
}

// NodesByCreation returns all live nodes in creation order. Snapshots dump
// nodes in this order so sibling tie-breaks survive a save/load round trip.
func (g *ViewGraph) NodesByCreation() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *Node) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})
	return out
}

// NodePatch is a partial node update. Nil pointer fields are left untouched
// on the existing node - a patch carrying only {GUID, Position} must not
// erase metadata. Meta entries are merged key-wise into Extra.
type NodePatch struct {
	GUID       string
	ParentGUID *string
	Label      *string
	Position   *Point
	Size       *Size
	GroupType  *string
	Expanded   *bool
	SortKey    *float64
	Meta       Metadata
}

// Put inserts a fully specified node, replacing any previous node with the
// same GUID. The node's Meta.Extra map is initialized if nil. Bumps the
// graph version and stamps it on the node.
func (g *ViewGraph) Put(n Node) error {
	if n.GUID == "" {
		return ErrInvalidGUID
	}
	if n.Meta.Extra == nil {
		n.Meta.Extra = Metadata{}
	}
	node := &n
	if prev, ok := g.nodes[n.GUID]; ok {
		node.seq = prev.seq
	} else {
		g.nextSeq++
		node.seq = g.nextSeq
	}
	node.Version = g.bump()
	g.nodes[node.GUID] = node
	g.reindex()
	return nil
}

// UpsertNode applies a partial update, creating the node when absent.
// Fields not present in the patch are preserved exactly as they were; this
// is the partial-update contract the delta pipeline depends on.
func (g *ViewGraph) UpsertNode(p NodePatch) (*Node, error) {
	if p.GUID == "" {
		return nil, ErrInvalidGUID
	}
	n, ok := g.nodes[p.GUID]
	if !ok {
		g.nextSeq++
		n = &Node{
			GUID:      p.GUID,
			GroupType: GroupItem,
			Expanded:  true,
			Meta:      NodeMeta{Extra: Metadata{}},
			seq:       g.nextSeq,
		}
		g.nodes[p.GUID] = n
	}
	if p.ParentGUID != nil {
		n.ParentGUID = *p.ParentGUID
	}
	if p.Label != nil {
		n.Label = *p.Label
	}
	if p.Position != nil {
		n.Position = *p.Position
	}
	if p.Size != nil {
		n.Size = *p.Size
	}
	if p.GroupType != nil {
		n.GroupType = *p.GroupType
	}
	if p.Expanded != nil {
		n.Expanded = *p.Expanded
	}
	if p.SortKey != nil {
		n.SortKey = *p.SortKey
	}
	if len(p.Meta) > 0 {
		if n.Meta.Extra == nil {
			n.Meta.Extra = Metadata{}
		}
		maps.Copy(n.Meta.Extra, p.Meta)
	}
	n.Version = g.bump()
	g.reindex()
	return n, nil
}

// RemoveNode deletes a node from the arena. Edges touching the node are NOT
// removed here - callers pair this with RemoveEdgesTouching so dangling
// cleanup stays an explicit step. Returns ErrUnknownNode if absent.
func (g *ViewGraph) RemoveNode(guid string) error {
	if _, ok := g.nodes[guid]; !ok {
		return ErrUnknownNode
	}
	delete(g.nodes, guid)
	g.bump()
	g.reindex()
	return nil
}

// =============================================================================
// Edge primitives
// =============================================================================

// Edges returns a copy of the edge list.
func (g *ViewGraph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Edge returns the edge with the given ID, or nil if absent.
func (g *ViewGraph) Edge(id string) *Edge {
	for i := range g.edges {
		if g.edges[i].ID == id {
			return &g.edges[i]
		}
	}
	return nil
}

// AddEdge adds an edge between two live nodes. Returns ErrUnknownSourceNode
// or ErrUnknownTargetNode for dangling endpoints - dangling edges are never
// admitted into the graph. The edge's Style map is initialized if nil.
func (g *ViewGraph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.FromGUID]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := g.nodes[e.ToGUID]; !ok {
		return ErrUnknownTargetNode
	}
	if e.ID != "" && g.Edge(e.ID) != nil {
		return ErrDuplicateEdgeID
	}
	if e.Style == nil {
		e.Style = Metadata{}
	}
	g.edges = append(g.edges, e)
	g.bump()
	return nil
}

// EdgePatch is a partial edge update. Nil fields are left untouched;
// Style entries are merged key-wise into the existing map.
type EdgePatch struct {
	ID           string
	Label        *string
	RelationType *string
	Style        Metadata
}

// PatchEdge applies a partial update to an existing edge and bumps the
// graph version. Returns ErrUnknownEdge if the ID does not resolve.
func (g *ViewGraph) PatchEdge(p EdgePatch) error {
	e := g.Edge(p.ID)
	if e == nil {
		return ErrUnknownEdge
	}
	if p.Label != nil {
		e.Label = *p.Label
	}
	if p.RelationType != nil {
		e.RelationType = *p.RelationType
	}
	if len(p.Style) > 0 {
		if e.Style == nil {
			e.Style = Metadata{}
		}
		maps.Copy(e.Style, p.Style)
	}
	g.bump()
	return nil
}

// RemoveEdge deletes the edge with the given ID. Unknown IDs are a no-op.
func (g *ViewGraph) RemoveEdge(id string) {
	before := len(g.edges)
	g.edges = slices.DeleteFunc(g.edges, func(e Edge) bool { return e.ID == id })
	if len(g.edges) != before {
		g.bump()
	}
}

// RemoveEdgesTouching deletes every edge with the given node as either
// endpoint and returns the number removed.
func (g *ViewGraph) RemoveEdgesTouching(guid string) int {
	before := len(g.edges)
	g.edges = slices.DeleteFunc(g.edges, func(e Edge) bool { return e.Touches(guid) })
	removed := before - len(g.edges)
	if removed > 0 {
		g.bump()
	}
	return removed
}

// PruneDanglingEdges drops every edge whose endpoints no longer resolve to
// live nodes and returns the dropped edges. Used after snapshot load and
// batched removals to restore the no-dangling-edges invariant.
func (g *ViewGraph) PruneDanglingEdges() []Edge {
	var dropped []Edge
	kept := g.edges[:0]
	for _, e := range g.edges {
		_, fromOK := g.nodes[e.FromGUID]
		_, toOK := g.nodes[e.ToGUID]
		if fromOK && toOK {
			kept = append(kept, e)
		} else {
			dropped = append(dropped, e)
		}
	}
	g.edges = kept
	if len(dropped) > 0 {
		g.bump()
	}
	return dropped
}

// =============================================================================
// Flatten bookkeeping
// =============================================================================

// SetFlatten marks a node as flattened, recording deep copies of the
// captured pre-flatten subtree and the synthesized CONTAINS edges. Bumps
// the graph version and stamps the node.
func (g *ViewGraph) SetFlatten(guid string, captured []Node, generated []Edge) error {
	n, ok := g.nodes[guid]
	if !ok {
		return ErrUnknownNode
	}
	n.Meta.PerNodeFlattened = true
	n.Meta.FlattenedChildren = make([]Node, len(captured))
	for i, c := range captured {
		cc := *cloneNode(&c)
		n.Meta.FlattenedChildren[i] = cc
	}
	n.Meta.GeneratedEdges = make([]Edge, len(generated))
	for i, e := range generated {
		n.Meta.GeneratedEdges[i] = cloneEdge(e)
	}
	n.Version = g.bump()
	return nil
}

// ClearFlatten removes a node's flatten bookkeeping. Bumps the graph
// version and stamps the node.
func (g *ViewGraph) ClearFlatten(guid string) error {
	n, ok := g.nodes[guid]
	if !ok {
		return ErrUnknownNode
	}
	n.Meta.PerNodeFlattened = false
	n.Meta.FlattenedChildren = nil
	n.Meta.GeneratedEdges = nil
	n.Version = g.bump()
	return nil
}

// RepairFlattenBookkeeping removes a destroyed node from every flattened
// ancestor's captured subtree and generated-edge list, so a later
// unflatten doesn't resurrect it. Returns the number of entries repaired.
func (g *ViewGraph) RepairFlattenBookkeeping(guid string) int {
	repaired := 0
	for _, n := range g.nodes {
		if !n.Meta.PerNodeFlattened {
			continue
		}
		before := len(n.Meta.FlattenedChildren) + len(n.Meta.GeneratedEdges)
		n.Meta.FlattenedChildren = slices.DeleteFunc(n.Meta.FlattenedChildren, func(c Node) bool {
			return c.GUID == guid
		})
		n.Meta.GeneratedEdges = slices.DeleteFunc(n.Meta.GeneratedEdges, func(e Edge) bool {
			return e.Touches(guid)
		})
		if diff := before - len(n.Meta.FlattenedChildren) - len(n.Meta.GeneratedEdges); diff > 0 {
			repaired += diff
			n.Version = g.bump()
		}
	}
	return repaired
}

// StampNodeVersion overwrites a node's version stamp and raises the graph
// version to at least the same value. The delta pipeline uses this to align
// the model with source-issued version stamps after a merge.
func (g *ViewGraph) StampNodeVersion(guid string, version uint64) {
	n, ok := g.nodes[guid]
	if !ok {
		return
	}
	n.Version = version
	if g.meta.Version < version {
		g.meta.Version = version
	}
}

// =============================================================================
// Derived tree view
// =============================================================================

// Children returns the ordered children of the given node. Ordering is by
// sort key, with creation order as the stable tie-break.
func (g *ViewGraph) Children(guid string) []*Node {
	ids := g.children[guid]
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodes[id])
	}
	return out
}

// Roots returns the ordered top-level nodes (ParentGUID empty).
func (g *ViewGraph) Roots() []*Node {
	return g.Children("")
}

// Subtree returns the node and all its descendants in depth-first order.
// Returns nil if the node does not exist.
func (g *ViewGraph) Subtree(guid string) []*Node {
	root, ok := g.nodes[guid]
	if !ok {
		return nil
	}
	out := []*Node{root}
	for _, child := range g.Children(guid) {
		out = append(out, g.Subtree(child.GUID)...)
	}
	return out
}

// reindex rebuilds the parent -> children index from ParentGUID. The index
// is derived state: it is thrown away and recomputed on every structural
// mutation so it can never drift from the arena.
func (g *ViewGraph) reindex() {
	g.children = make(map[string][]string, len(g.children))
	byParent := make(map[string][]*Node)
	for _, n := range g.nodes {
		parent := n.ParentGUID
		if parent != "" {
			if _, ok := g.nodes[parent]; !ok {
				parent = "" // orphaned by a remove; treat as root
			}
		}
		byParent[parent] = append(byParent[parent], n)
	}
	for parent, siblings := range byParent {
		slices.SortStableFunc(siblings, func(a, b *Node) int {
			switch {
			case a.SortKey < b.SortKey:
				return -1
			case a.SortKey > b.SortKey:
				return 1
			case a.seq < b.seq:
				return -1
			case a.seq > b.seq:
				return 1
			default:
				return 0
			}
		})
		ids := make([]string, len(siblings))
		for i, n := range siblings {
			ids[i] = n.GUID
		}
		g.children[parent] = ids
	}
}

// =============================================================================
// Rebuilding
// =============================================================================

// Rebuild reconstructs a ViewGraph directly from persisted state without
// invoking any layout engine. Node version stamps are kept as persisted,
// creation order follows slice order, dangling edges are dropped, and the
// graph version ends exactly at the supplied value - proving no structural
// mutation happened during load.
func Rebuild(meta ViewMeta, camera Camera, nodes []Node, edges []Edge) *ViewGraph {
	if meta.DisplayMode == "" {
		meta.DisplayMode = DisplayModeContainment
	}
	if camera.Zoom <= 0 {
		camera.Zoom = 1
	}
	g := &ViewGraph{
		nodes:    make(map[string]*Node, len(nodes)),
		children: make(map[string][]string),
		camera:   camera,
		meta:     meta,
	}
	for _, n := range nodes {
		if n.GUID == "" {
			continue
		}
		if n.Meta.Extra == nil {
			n.Meta.Extra = Metadata{}
		}
		g.nextSeq++
		node := n
		node.seq = g.nextSeq
		g.nodes[node.GUID] = &node
	}
	for _, e := range edges {
		_, fromOK := g.nodes[e.FromGUID]
		_, toOK := g.nodes[e.ToGUID]
		if !fromOK || !toOK {
			continue
		}
		if e.Style == nil {
			e.Style = Metadata{}
		}
		g.edges = append(g.edges, e)
	}
	g.reindex()
	return g
}

// =============================================================================
// Copying
// =============================================================================

// Clone returns a deep copy of the graph. Save uses this to serialize a
// consistent point-in-time state while the original stays mutable.
func (g *ViewGraph) Clone() *ViewGraph {
	out := &ViewGraph{
		nodes:    make(map[string]*Node, len(g.nodes)),
		edges:    make([]Edge, len(g.edges)),
		camera:   g.camera,
		meta:     g.meta,
		children: make(map[string][]string),
		nextSeq:  g.nextSeq,
	}
	for guid, n := range g.nodes {
		out.nodes[guid] = cloneNode(n)
	}
	for i, e := range g.edges {
		out.edges[i] = cloneEdge(e)
	}
	out.reindex()
	return out
}

func cloneNode(n *Node) *Node {
	c := *n
	c.Meta = cloneMeta(n.Meta)
	return &c
}

// cloneMeta deep-copies node metadata. Captured flatten children carry
// metadata of their own (a flattened container can itself hold a
// flattened container), so the copy recurses all the way down.
func cloneMeta(m NodeMeta) NodeMeta {
	out := m
	out.Extra = maps.Clone(m.Extra)
	if m.FlattenedChildren != nil {
		out.FlattenedChildren = make([]Node, len(m.FlattenedChildren))
		for i, child := range m.FlattenedChildren {
			child.Meta = cloneMeta(child.Meta)
			out.FlattenedChildren[i] = child
		}
	}
	if m.GeneratedEdges != nil {
		out.GeneratedEdges = make([]Edge, len(m.GeneratedEdges))
		for i, e := range m.GeneratedEdges {
			out.GeneratedEdges[i] = cloneEdge(e)
		}
	}
	return out
}

func cloneEdge(e Edge) Edge {
	e.Style = maps.Clone(e.Style)
	return e
}
