package runtime

import (
	"github.com/google/uuid"

	"github.com/viewgrid/viewgrid/pkg/errors"
	"github.com/viewgrid/viewgrid/pkg/graph"
)

// Flatten converts a container's subtree into siblings of the container,
// with one synthesized CONTAINS edge per elided parent-child relation so
// the flattened view still shows containment visually.
//
// The full pre-flatten subtree (hierarchy and positions) is captured into
// the node's metadata first; Unflatten restores it exactly. Only direct
// children are re-homed - a child that is itself a container keeps its own
// subtree nested beneath it.
//
// Flattening an already-flattened node, a non-container, or a childless
// container is a no-op.
func (r *Runtime) Flatten(guid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.g.Node(guid)
	if n == nil {
		return errors.New(errors.ErrCodeNodeNotFound, "flatten target %q", guid)
	}
	if n.IsFlattened() {
		return nil // idempotent
	}
	children := r.g.Children(guid)
	if len(children) == 0 {
		return nil
	}

	// Capture the subtree before touching anything. Copies, not
	// references: the live nodes are about to be re-homed.
	var captured []graph.Node
	for _, sub := range r.g.Subtree(guid)[1:] {
		captured = append(captured, *sub)
	}

	newParent := n.ParentGUID
	changed := []string{guid}
	var generated []graph.Edge
	for _, child := range children {
		if _, err := r.g.UpsertNode(graph.NodePatch{GUID: child.GUID, ParentGUID: &newParent}); err != nil {
			return err
		}
		e := graph.Edge{
			ID:           uuid.NewString(),
			FromGUID:     guid,
			ToGUID:       child.GUID,
			RelationType: graph.RelationContains,
			Generated:    true,
		}
		if err := r.g.AddEdge(e); err != nil {
			return err
		}
		generated = append(generated, e)
		changed = append(changed, child.GUID)
	}

	if err := r.g.SetFlatten(guid, captured, generated); err != nil {
		return err
	}

	r.logger.Debug("flattened node", "guid", guid, "children", len(children))
	r.notify(Change{NodeGUIDs: changed, EdgeIDs: edgeIDs(generated)})
	return nil
}

// Unflatten restores a flattened node's subtree from its captured
// metadata: original parents and positions come back exactly, and the
// synthesized CONTAINS edges are removed. Unflattening a node that is not
// flattened is a no-op.
//
// Captured children that were destroyed by a remove delta while flattened
// stay gone - bookkeeping repair at merge time already dropped them.
func (r *Runtime) Unflatten(guid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.g.Node(guid)
	if n == nil {
		return errors.New(errors.ErrCodeNodeNotFound, "unflatten target %q", guid)
	}
	if !n.IsFlattened() {
		return nil // idempotent
	}

	generated := n.Meta.GeneratedEdges
	captured := n.Meta.FlattenedChildren

	for _, e := range generated {
		r.g.RemoveEdge(e.ID)
	}

	changed := []string{guid}
	for _, c := range captured {
		if r.g.Node(c.GUID) == nil {
			continue
		}
		parent := c.ParentGUID
		pos := c.Position
		size := c.Size
		expanded := c.Expanded
		if _, err := r.g.UpsertNode(graph.NodePatch{
			GUID:       c.GUID,
			ParentGUID: &parent,
			Position:   &pos,
			Size:       &size,
			Expanded:   &expanded,
		}); err != nil {
			return err
		}
		changed = append(changed, c.GUID)
	}

	if err := r.g.ClearFlatten(guid); err != nil {
		return err
	}

	r.logger.Debug("unflattened node", "guid", guid, "restored", len(captured))
	r.notify(Change{NodeGUIDs: changed, EdgeIDs: edgeIDs(generated)})
	return nil
}

func edgeIDs(edges []graph.Edge) []string {
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.ID
	}
	return ids
}
