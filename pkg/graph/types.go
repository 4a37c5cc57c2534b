package graph

import (
	"strings"
)

// =============================================================================
// Constants - Single Source of Truth
// =============================================================================

// Group types distinguishing containers from leaf items.
const (
	GroupContainer = "container"
	GroupItem      = "item"
)

// Display modes. DisplayModeContainment nests children inside their parent;
// DisplayModeFlat lays every entity out as a top-level node. The view-level
// mode is a global fallback only - per-node flatten state always wins.
const (
	DisplayModeContainment = "containment"
	DisplayModeFlat        = "flat"
)

// RelationContains is the relation type of edges synthesized when a subtree
// is flattened. Relation types compare case-insensitively - use RelationIs.
const RelationContains = "CONTAINS"

// =============================================================================
// Geometry
// =============================================================================

// Point is a position on the canvas in world coordinates.
type Point struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Size is a node's width and height in world coordinates.
type Size struct {
	W float64 `json:"w" bson:"w"`
	H float64 `json:"h" bson:"h"`
}

// Camera is the view transform: pan offset plus zoom factor.
// Zoom is a positive float; bounds are enforced by the UI, not here.
type Camera struct {
	PanX float64 `json:"pan_x" bson:"pan_x"`
	PanY float64 `json:"pan_y" bson:"pan_y"`
	Zoom float64 `json:"zoom" bson:"zoom"`
}

// =============================================================================
// Node
// =============================================================================

// Metadata stores arbitrary key-value pairs attached to nodes or the graph.
// Metadata maps on live nodes are never nil - they are automatically
// initialized to empty maps when needed.
type Metadata map[string]any

// NodeMeta holds the recognized per-node metadata keys plus an open map for
// everything else. The typed fields are the flatten bookkeeping: when
// PerNodeFlattened is true, FlattenedChildren holds an exact copy of the
// pre-flatten subtree (hierarchy and positions) and GeneratedEdges lists the
// CONTAINS edges synthesized in its place.
type NodeMeta struct {
	PerNodeFlattened  bool     `json:"perNodeFlattened,omitempty" bson:"per_node_flattened,omitempty"`
	FlattenedChildren []Node   `json:"flattenedChildren,omitempty" bson:"flattened_children,omitempty"`
	GeneratedEdges    []Edge   `json:"generatedEdges,omitempty" bson:"generated_edges,omitempty"`
	Extra             Metadata `json:"extra,omitempty" bson:"extra,omitempty"`
}

// Node is a vertex in the view graph. Identity is the GUID, which never
// changes across flatten/unflatten/delta-merge; only ParentGUID, Expanded,
// and Meta may be rewritten after creation.
//
// Children are not stored on the node - they are a derived index owned by
// the ViewGraph, recomputed from ParentGUID so parent and child references
// can never drift out of sync.
type Node struct {
	GUID       string   `json:"guid" bson:"guid"`
	ParentGUID string   `json:"parentGuid,omitempty" bson:"parent_guid,omitempty"` // empty = root
	Label      string   `json:"label,omitempty" bson:"label,omitempty"`
	Position   Point    `json:"position" bson:"position"`
	Size       Size     `json:"size" bson:"size"`
	GroupType  string   `json:"groupType" bson:"group_type"`
	Expanded   bool     `json:"expanded,omitempty" bson:"expanded,omitempty"` // containers only
	SortKey    float64  `json:"sortKey,omitempty" bson:"sort_key,omitempty"`  // sibling ordering
	Version    uint64   `json:"version,omitempty" bson:"version,omitempty"`   // graph version at last mutation
	Meta       NodeMeta `json:"meta,omitempty" bson:"meta,omitempty"`

	// seq is the creation sequence number, used as the stable tie-break for
	// sibling ordering. Not serialized; reassigned on load in input order.
	seq uint64
}

// IsContainer reports whether the node can hold children.
func (n *Node) IsContainer() bool { return n.GroupType == GroupContainer }

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool { return n.ParentGUID == "" }

// IsFlattened reports whether this node's subtree is currently presented
// flat (children re-homed as siblings with synthesized CONTAINS edges).
func (n *Node) IsFlattened() bool { return n.Meta.PerNodeFlattened }

// DisplayLabel returns the label if set, otherwise the GUID.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.GUID
}

// =============================================================================
// Edge
// =============================================================================

// Edge is a directed relationship between two live nodes.
type Edge struct {
	ID           string   `json:"id" bson:"id"`
	FromGUID     string   `json:"fromGuid" bson:"from_guid"`
	ToGUID       string   `json:"toGuid" bson:"to_guid"`
	Label        string   `json:"label,omitempty" bson:"label,omitempty"`
	RelationType string   `json:"relationType,omitempty" bson:"relation_type,omitempty"`
	Style        Metadata `json:"style,omitempty" bson:"style,omitempty"` // cosmetic only
	Generated    bool     `json:"generated,omitempty" bson:"generated,omitempty"`
}

// RelationIs reports whether the edge has the given relation type.
// Relation types are free-form and compare case-insensitively.
func (e *Edge) RelationIs(relation string) bool {
	return strings.EqualFold(e.RelationType, relation)
}

// Touches reports whether either endpoint of the edge is the given node.
func (e *Edge) Touches(guid string) bool {
	return e.FromGUID == guid || e.ToGUID == guid
}

// =============================================================================
// ViewGraph metadata
// =============================================================================

// ViewMeta is graph-level metadata: the global display-mode fallback and the
// monotonically increasing version, bumped on every structural mutation.
// The version is how stale deltas are detected and how "no layout ran" is
// proven after a snapshot load.
type ViewMeta struct {
	DisplayMode string `json:"displayMode" bson:"display_mode"`
	Version     uint64 `json:"version" bson:"version"`
}
