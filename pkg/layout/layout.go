package layout

import (
	"math"
	"slices"
	"strings"

	"github.com/viewgrid/viewgrid/pkg/errors"
	"github.com/viewgrid/viewgrid/pkg/graph"
)

// =============================================================================
// Constants - Single Source of Truth
// =============================================================================

// Geometry defaults shared by both engines. All values are world units.
const (
	DefaultItemW      = 176.0 // leaf node width
	DefaultItemH      = 96.0  // leaf node height
	DefaultContainerW = 272.0 // empty container width
	DefaultContainerH = 176.0 // empty container height

	Margin      = 48.0  // padding between a container's bounds and its children
	CellGap     = 32.0  // spacing between grid cells
	RootSpacing = 112.0 // horizontal spacing between packed root containers
)

// Engine kinds. The set is closed: selection is a total function from kind
// to implementation, and unknown tags are an explicit error rather than a
// silent fallback.
type Kind string

const (
	// KindContainment nests children inside their parents and grows each
	// container to the minimum bounding box of its children.
	KindContainment Kind = "containment"

	// KindFlat ignores hierarchy and places every entity on a deterministic
	// grid. This is the default flat strategy - it must stay deterministic
	// because golden positions in tests depend on it.
	KindFlat Kind = "flat"

	// KindForce is the flat grid refined by damped force-directed
	// relaxation over a fixed iteration budget. Deterministic (seeded from
	// the grid) but not grid-aligned; opt-in for organic layouts.
	KindForce Kind = "force"
)

// ParseKind maps a tag to an engine kind, rejecting unknown tags.
func ParseKind(tag string) (Kind, error) {
	switch Kind(strings.ToLower(tag)) {
	case KindContainment:
		return KindContainment, nil
	case KindFlat:
		return KindFlat, nil
	case KindForce:
		return KindForce, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidEngine, "unknown layout engine %q", tag)
	}
}

// =============================================================================
// Inputs and outputs
// =============================================================================

// Entity is the raw input record for one node, as delivered by the backing
// store. Size and SortKey are optional; zero values get defaults.
type Entity struct {
	GUID      string     `json:"guid"`
	Label     string     `json:"label,omitempty"`
	GroupType string     `json:"groupType,omitempty"`
	SortKey   float64    `json:"sortKey,omitempty"`
	Size      graph.Size `json:"size,omitempty"`
}

// Relationship is the raw input record for one edge. Relationships with a
// containment relation type define the parent/child tree for the
// containment engine; everything else becomes a plain edge.
type Relationship struct {
	ID           string `json:"id,omitempty"`
	FromGUID     string `json:"fromGuid"`
	ToGUID       string `json:"toGuid"`
	Label        string `json:"label,omitempty"`
	RelationType string `json:"relationType,omitempty"`
}

// IsContainment reports whether the relationship nests ToGUID inside
// FromGUID. Comparison is case-insensitive.
func (r *Relationship) IsContainment() bool {
	return strings.EqualFold(r.RelationType, graph.RelationContains)
}

// Result is the output of one engine pass: positioned nodes plus an initial
// camera. Engines never emit edges - edge construction from relationships
// is the runtime's job and is independent of positioning.
type Result struct {
	Nodes  []graph.Node
	Camera graph.Camera
}

// =============================================================================
// Dispatch
// =============================================================================

// Apply runs the engine selected by kind over the raw inputs. Both engines
// are pure: the same inputs always produce the same node positions, which is
// what makes "no relayout after load" a testable property.
func Apply(kind Kind, entities []Entity, relationships []Relationship) (Result, error) {
	switch kind {
	case KindContainment:
		return applyContainment(entities, relationships), nil
	case KindFlat:
		return applyFlatGrid(entities), nil
	case KindForce:
		return applyForce(entities, relationships), nil
	default:
		return Result{}, errors.New(errors.ErrCodeInvalidEngine, "unknown layout engine %q", string(kind))
	}
}

// =============================================================================
// Shared helpers
// =============================================================================

// orderEntities returns entities sorted by sort key with input order as the
// stable tie-break. Required for reproducible golden positions.
func orderEntities(entities []Entity) []Entity {
	out := slices.Clone(entities)
	slices.SortStableFunc(out, func(a, b Entity) int {
		switch {
		case a.SortKey < b.SortKey:
			return -1
		case a.SortKey > b.SortKey:
			return 1
		default:
			return 0
		}
	})
	return out
}

// baseSize returns the entity's declared size, or the default for its
// group type.
func baseSize(e Entity) graph.Size {
	if e.Size.W > 0 && e.Size.H > 0 {
		return e.Size
	}
	if e.GroupType == graph.GroupContainer {
		return graph.Size{W: DefaultContainerW, H: DefaultContainerH}
	}
	return graph.Size{W: DefaultItemW, H: DefaultItemH}
}

// gridColumns returns the column count for an n-cell grid: the smallest
// square-ish arrangement.
func gridColumns(n int) int {
	if n <= 1 {
		return 1
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

// GridSlot returns the deterministic position for the i-th cell of a flat
// grid anchored at the origin. The delta pipeline uses this to place a
// single added node without re-running layout over the whole graph.
func GridSlot(i int, total int) graph.Point {
	cols := gridColumns(total)
	if cols < 1 {
		cols = 1
	}
	row, col := i/cols, i%cols
	return graph.Point{
		X: Margin + float64(col)*(DefaultItemW+CellGap),
		Y: Margin + float64(row)*(DefaultItemH+CellGap),
	}
}

// ChildSlot returns the position for the i-th child inside a parent's
// bounds, used when a delta adds a node beneath an existing container.
func ChildSlot(parent *graph.Node, i int) graph.Point {
	cols := gridColumns(i + 1)
	row, col := i/cols, i%cols
	return graph.Point{
		X: parent.Position.X + Margin + float64(col)*(DefaultItemW+CellGap),
		Y: parent.Position.Y + Margin + float64(row)*(DefaultItemH+CellGap),
	}
}
