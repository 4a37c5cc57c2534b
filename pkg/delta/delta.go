// Package delta defines the wire format for incremental graph change
// notifications and the transports that carry them: a websocket subscriber
// for clients and a Redis channel publisher for the server side.
//
// A delta describes one add/update/remove of one node or edge, stamped
// with a monotonically increasing version from the source; a frame may
// coalesce several deltas into a batch, applied in order. The
// merge semantics (stale detection, partial patching, locality) live in
// package runtime; this package is transport and schema only.
//
// # Protocol
//
// The client opens a websocket and sends:
//
//	{"type": "subscribe_graph_changes", "viewId": "..."}
//
// The server acknowledges:
//
//	{"type": "graph_subscription_ack", "viewId": "..."}
//
// and then pushes frames:
//
//	{"type": "graph_delta", "version": 7, "op": "update",
//	 "target": "node", "guid": "...", "patch": {...}}
package delta

import (
	"github.com/viewgrid/viewgrid/pkg/graph"
)

// Message types on the wire.
const (
	TypeSubscribe = "subscribe_graph_changes"
	TypeAck       = "graph_subscription_ack"
	TypeDelta     = "graph_delta"
)

// Op is the kind of structural change a delta carries.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Target selects whether the delta addresses a node or an edge.
type Target string

const (
	TargetNode Target = "node"
	TargetEdge Target = "edge"
)

// Patch is the partial payload of an add or update delta. Nil fields mean
// "leave untouched" - the merge pipeline must never treat an absent field
// as a reset. Node and edge fields share the struct; Target decides which
// subset is meaningful.
type Patch struct {
	// Node fields
	ParentGUID *string        `json:"parentGuid,omitempty"`
	Label      *string        `json:"label,omitempty"`
	Position   *graph.Point   `json:"position,omitempty"`
	Size       *graph.Size    `json:"size,omitempty"`
	GroupType  *string        `json:"groupType,omitempty"`
	Expanded   *bool          `json:"expanded,omitempty"`
	SortKey    *float64       `json:"sortKey,omitempty"`
	Meta       graph.Metadata `json:"meta,omitempty"`

	// Edge fields
	FromGUID     *string        `json:"fromGuid,omitempty"`
	ToGUID       *string        `json:"toGuid,omitempty"`
	RelationType *string        `json:"relationType,omitempty"`
	Style        graph.Metadata `json:"style,omitempty"`
}

// Delta is one versioned change notification. Fields are omitempty so the
// shared Frame envelope serializes subscribe/ack messages without noise.
type Delta struct {
	Version uint64 `json:"version,omitempty"`
	Op      Op     `json:"op,omitempty"`
	Target  Target `json:"target,omitempty"`
	GUID    string `json:"guid,omitempty"`
	Patch   *Patch `json:"patch,omitempty"`
}

// Frame is the websocket envelope. Subscribe requests carry Type and
// ViewID only; delta pushes embed either a single Delta or a Batch of
// them (a source may coalesce several changes into one frame).
type Frame struct {
	Type   string `json:"type"`
	ViewID string `json:"viewId,omitempty"`
	Delta
	Batch []Delta `json:"batch,omitempty"`
}

// Deltas returns the frame's changes in application order: the batch when
// present, otherwise the single embedded delta.
func (f Frame) Deltas() []Delta {
	if len(f.Batch) > 0 {
		return f.Batch
	}
	return []Delta{f.Delta}
}

// SubscribeFrame builds the client's subscription request for a view.
func SubscribeFrame(viewID string) Frame {
	return Frame{Type: TypeSubscribe, ViewID: viewID}
}

// AckFrame builds the server's subscription acknowledgement.
func AckFrame(viewID string) Frame {
	return Frame{Type: TypeAck, ViewID: viewID}
}

// DeltaFrame wraps a delta in its push envelope.
func DeltaFrame(viewID string, d Delta) Frame {
	return Frame{Type: TypeDelta, ViewID: viewID, Delta: d}
}

// BatchFrame wraps several deltas in one push envelope. Order is
// preserved end to end.
func BatchFrame(viewID string, ds []Delta) Frame {
	return Frame{Type: TypeDelta, ViewID: viewID, Batch: ds}
}
