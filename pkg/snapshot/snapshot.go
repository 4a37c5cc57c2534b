// Package snapshot serializes a view graph's positions, sizes, containment
// state, and camera to storage and restores them without ever invoking a
// layout engine.
//
// The contract that matters most: a flattened child dragged to a new
// position must come back at exactly that position after save and load.
// Capture therefore deep-copies node metadata (including the
// flattenedChildren subtree snapshots), and Restore rebuilds the graph
// byte-for-byte from the persisted data, carrying the version through
// unchanged so "no layout ran" is provable.
//
// Storage backends implement [Store]: in-memory for tests, JSON files for
// CLI use, MongoDB and Redis for server deployments.
package snapshot

import (
	"time"

	"github.com/viewgrid/viewgrid/pkg/errors"
	"github.com/viewgrid/viewgrid/pkg/graph"
)

// Snapshot is the persisted form of one ViewGraph. Nodes appear in
// creation order so equal-sort-key siblings keep their order across a
// round trip. Transient interaction state (selection, hover, drag offsets)
// never reaches this struct - it lives on the runtime, not the graph.
type Snapshot struct {
	ViewID      string       `json:"viewId,omitempty" bson:"view_id,omitempty"`
	DisplayMode string       `json:"displayMode" bson:"display_mode"`
	Version     uint64       `json:"version" bson:"version"`
	Camera      graph.Camera `json:"camera" bson:"camera"`
	Nodes       []graph.Node `json:"nodes" bson:"nodes"`
	Edges       []graph.Edge `json:"edges" bson:"edges"`
	SavedAt     time.Time    `json:"savedAt,omitempty" bson:"saved_at,omitempty"`
}

// Capture produces a point-in-time Snapshot of the graph. The graph is
// deep-copied first, so the caller may keep mutating the original while
// the snapshot is serialized or in flight.
//
// Every node is retained, including nodes currently hidden by a collapsed
// ancestor - hiding is presentation, not structure.
func Capture(g *graph.ViewGraph) Snapshot {
	c := g.Clone()

	nodes := make([]graph.Node, 0, c.Len())
	for _, n := range c.NodesByCreation() {
		nodes = append(nodes, *n)
	}

	return Snapshot{
		DisplayMode: c.Meta().DisplayMode,
		Version:     c.Meta().Version,
		Camera:      c.Camera(),
		Nodes:       nodes,
		Edges:       c.Edges(),
		SavedAt:     time.Now().UTC(),
	}
}

// Restore reconstructs a ViewGraph from a Snapshot. No layout engine runs:
// positions, sizes, flatten bookkeeping, and the version come back exactly
// as persisted. Returns a CORRUPT_SNAPSHOT error when required fields are
// missing, leaving the caller's previous graph untouched.
func Restore(s *Snapshot) (*graph.ViewGraph, error) {
	if err := Validate(s); err != nil {
		return nil, err
	}
	g := graph.Rebuild(
		graph.ViewMeta{DisplayMode: s.DisplayMode, Version: s.Version},
		s.Camera,
		s.Nodes,
		s.Edges,
	)
	return g, nil
}

// Validate rejects snapshots missing required fields. Position data may
// legitimately be all zeros, so only structural requirements are checked.
func Validate(s *Snapshot) error {
	if s == nil {
		return errors.New(errors.ErrCodeCorruptSnapshot, "snapshot is nil")
	}
	if s.Nodes == nil {
		return errors.New(errors.ErrCodeCorruptSnapshot, "snapshot has no node list")
	}
	seen := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.GUID == "" {
			return errors.New(errors.ErrCodeCorruptSnapshot, "node %d has empty guid", i)
		}
		if seen[n.GUID] {
			return errors.New(errors.ErrCodeCorruptSnapshot, "duplicate node guid %q", n.GUID)
		}
		seen[n.GUID] = true
		if n.Meta.PerNodeFlattened && len(n.Meta.FlattenedChildren) == 0 {
			return errors.New(errors.ErrCodeCorruptSnapshot,
				"node %q is flattened but carries no flattenedChildren", n.GUID)
		}
	}
	return nil
}
