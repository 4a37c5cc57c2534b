package runtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/viewgrid/viewgrid/pkg/delta"
	"github.com/viewgrid/viewgrid/pkg/errors"
	"github.com/viewgrid/viewgrid/pkg/graph"
	"github.com/viewgrid/viewgrid/pkg/layout"
)

// SubState is the delta subscription state for this runtime's view.
type SubState int

const (
	SubIdle SubState = iota
	SubSubscribed
	SubReceiving
	SubUnsubscribed
)

// String returns the state name for logging.
func (s SubState) String() string {
	switch s {
	case SubIdle:
		return "idle"
	case SubSubscribed:
		return "subscribed"
	case SubReceiving:
		return "receiving"
	case SubUnsubscribed:
		return "unsubscribed"
	default:
		return "unknown"
	}
}

// SubscriptionState returns the current delta subscription state.
func (r *Runtime) SubscriptionState() SubState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subState
}

// Subscribe attaches the runtime to a delta feed for its view. Frames are
// applied strictly in arrival order. The subscription lives until ctx is
// cancelled or Unsubscribe is called; frames arriving after teardown are
// dropped by the feed itself.
func (r *Runtime) Subscribe(ctx context.Context, feed <-chan delta.Delta) {
	subCtx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if r.subCancel != nil {
		r.subCancel()
	}
	r.subCancel = cancel
	r.subState = SubSubscribed
	r.firstDelta = true
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			r.subState = SubUnsubscribed
			r.mu.Unlock()
		}()
		for {
			select {
			case <-subCtx.Done():
				return
			case d, ok := <-feed:
				if !ok {
					return
				}
				if err := r.ApplyDelta(d); err != nil {
					// Node-local failures must never block the stream.
					r.logger.Warn("delta apply failed", "guid", d.GUID, "op", d.Op, "err", err)
				}
			}
		}
	}()
}

// Unsubscribe tears the delta subscription down immediately.
func (r *Runtime) Unsubscribe() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subCancel != nil {
		r.subCancel()
		r.subCancel = nil
	}
	r.subState = SubUnsubscribed
}

// ApplyDelta folds one versioned change into the graph.
//
// Correctness properties, in priority order:
//   - Stale deltas (version at or below the target node's stamp) are
//     discarded silently; re-applying a delta is a no-op.
//   - Updates patch only the fields present in the payload; everything
//     else on the node stays byte-identical.
//   - A delta naming node A never changes position, size, or metadata of
//     any node B != A.
//   - One bad delta never corrupts or blocks the pipeline: dangling
//     references warn and drop, they don't error out.
func (r *Runtime) ApplyDelta(d delta.Delta) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.subState == SubSubscribed {
		r.subState = SubReceiving
	}

	var change Change
	var applied bool
	var err error

	switch d.Target {
	case delta.TargetNode:
		applied, change, err = r.mergeNode(d)
	case delta.TargetEdge:
		applied, change, err = r.mergeEdge(d)
	default:
		return errors.New(errors.ErrCodeInvalidDelta, "unknown delta target %q", string(d.Target))
	}
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	// The first applied delta after subscribing repaints everything; after
	// that, only the touched region.
	if r.firstDelta {
		change = Change{Full: true}
		r.firstDelta = false
	}
	r.notify(change)
	return nil
}

// ApplyBatch folds a multi-element frame element-wise, in arrival order.
// Each element gets its own stale check; a failing element is logged and
// skipped, never blocking the rest of the batch. The first element error
// is returned after the whole batch has been attempted.
func (r *Runtime) ApplyBatch(ds []delta.Delta) error {
	var firstErr error
	for _, d := range ds {
		if err := r.ApplyDelta(d); err != nil {
			r.logger.Warn("batch element failed", "guid", d.GUID, "op", d.Op, "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Runtime) mergeNode(d delta.Delta) (bool, Change, error) {
	n := r.g.Node(d.GUID)

	// Stale or duplicate delivery: idempotent no-op.
	if n != nil && d.Version <= n.Version {
		r.logger.Debug("discarding stale delta",
			"guid", d.GUID, "delta_version", d.Version, "node_version", n.Version)
		return false, Change{}, nil
	}

	switch d.Op {
	case delta.OpUpdate:
		if n == nil {
			r.logger.Warn("update delta for unknown node", "guid", d.GUID)
			return false, Change{}, nil
		}
		if _, err := r.g.UpsertNode(patchFor(d)); err != nil {
			return false, Change{}, err
		}
		r.g.StampNodeVersion(d.GUID, d.Version)
		return true, Change{NodeGUIDs: []string{d.GUID}}, nil

	case delta.OpAdd:
		if n != nil {
			// Duplicate add with a newer stamp: treat as update.
			if _, err := r.g.UpsertNode(patchFor(d)); err != nil {
				return false, Change{}, err
			}
			r.g.StampNodeVersion(d.GUID, d.Version)
			return true, Change{NodeGUIDs: []string{d.GUID}}, nil
		}
		return r.addNode(d)

	case delta.OpRemove:
		if n == nil {
			return false, Change{}, nil // already gone
		}
		removedEdges := r.g.RemoveEdgesTouching(d.GUID)
		if err := r.g.RemoveNode(d.GUID); err != nil {
			return false, Change{}, err
		}
		r.g.RepairFlattenBookkeeping(d.GUID)
		r.logger.Debug("removed node", "guid", d.GUID, "cascaded_edges", removedEdges)
		return true, Change{NodeGUIDs: []string{d.GUID}}, nil

	default:
		return false, Change{}, errors.New(errors.ErrCodeInvalidDelta, "unknown delta op %q", string(d.Op))
	}
}

// addNode inserts a brand-new node from an add delta. When the payload
// carries no position, the active engine places only this node - layout is
// never re-run over the rest of the graph.
func (r *Runtime) addNode(d delta.Delta) (bool, Change, error) {
	patch := patchFor(d)

	parentGUID := ""
	if patch.ParentGUID != nil {
		parentGUID = *patch.ParentGUID
	}

	var parent *graph.Node
	if parentGUID != "" {
		parent = r.g.Node(parentGUID)
		if parent == nil {
			r.logger.Warn("add delta references unknown parent, inserting as root",
				"guid", d.GUID, "parent", parentGUID)
			parentGUID = ""
			patch.ParentGUID = &parentGUID
		}
	}

	// Adds beneath a flattened ancestor follow the configured policy:
	// by default the node lands as a sibling, matching the flattened
	// presentation, and is recorded for a later unflatten.
	asSibling := parent != nil && parent.IsFlattened() && !r.addNested
	if asSibling {
		flatParent := parent.ParentGUID
		patch.ParentGUID = &flatParent
		if patch.Position == nil {
			pos := layout.ChildSlot(parent, len(parent.Meta.FlattenedChildren))
			patch.Position = &pos
		}
	}

	if patch.Position == nil {
		var pos graph.Point
		switch {
		case parent != nil && !parent.IsFlattened():
			pos = layout.ChildSlot(parent, len(r.g.Children(parent.GUID)))
		default:
			roots := len(r.g.Roots())
			pos = layout.GridSlot(roots, roots+1)
		}
		patch.Position = &pos
	}

	inserted, err := r.g.UpsertNode(patch)
	if err != nil {
		return false, Change{}, err
	}
	r.g.StampNodeVersion(d.GUID, d.Version)

	change := Change{NodeGUIDs: []string{d.GUID}}
	if asSibling {
		e := graph.Edge{
			ID:           uuid.NewString(),
			FromGUID:     parent.GUID,
			ToGUID:       d.GUID,
			RelationType: graph.RelationContains,
			Generated:    true,
		}
		// The bookkeeping entry carries the node as it would nest, so
		// unflatten re-homes it under the flattened parent.
		captured := *inserted
		captured.ParentGUID = parent.GUID
		parent.Meta.FlattenedChildren = append(parent.Meta.FlattenedChildren, captured)
		parent.Meta.GeneratedEdges = append(parent.Meta.GeneratedEdges, e)
		if err := r.g.AddEdge(e); err == nil {
			change.EdgeIDs = []string{e.ID}
		}
	}
	return true, change, nil
}

func (r *Runtime) mergeEdge(d delta.Delta) (bool, Change, error) {
	switch d.Op {
	case delta.OpAdd:
		if r.g.Edge(d.GUID) != nil {
			return false, Change{}, nil // duplicate delivery
		}
		if d.Patch == nil || d.Patch.FromGUID == nil || d.Patch.ToGUID == nil {
			r.logger.Warn("edge add delta missing endpoints", "id", d.GUID)
			return false, Change{}, nil
		}
		e := graph.Edge{ID: d.GUID, FromGUID: *d.Patch.FromGUID, ToGUID: *d.Patch.ToGUID}
		if d.Patch.Label != nil {
			e.Label = *d.Patch.Label
		}
		if d.Patch.RelationType != nil {
			e.RelationType = *d.Patch.RelationType
		}
		if len(d.Patch.Style) > 0 {
			e.Style = d.Patch.Style
		}
		if err := r.g.AddEdge(e); err != nil {
			// Dangling reference: recoverable, edge-local.
			r.logger.Warn("dropping dangling edge delta", "id", d.GUID, "err", err)
			return false, Change{}, nil
		}
		return true, Change{EdgeIDs: []string{d.GUID}}, nil

	case delta.OpUpdate:
		p := graph.EdgePatch{ID: d.GUID}
		if d.Patch != nil {
			p.Label = d.Patch.Label
			p.RelationType = d.Patch.RelationType
			p.Style = d.Patch.Style
		}
		if err := r.g.PatchEdge(p); err != nil {
			r.logger.Warn("update delta for unknown edge", "id", d.GUID)
			return false, Change{}, nil
		}
		return true, Change{EdgeIDs: []string{d.GUID}}, nil

	case delta.OpRemove:
		if r.g.Edge(d.GUID) == nil {
			return false, Change{}, nil
		}
		r.g.RemoveEdge(d.GUID)
		return true, Change{EdgeIDs: []string{d.GUID}}, nil

	default:
		return false, Change{}, errors.New(errors.ErrCodeInvalidDelta, "unknown delta op %q", string(d.Op))
	}
}

// patchFor converts a delta payload to a graph patch.
func patchFor(d delta.Delta) graph.NodePatch {
	p := graph.NodePatch{GUID: d.GUID}
	if d.Patch == nil {
		return p
	}
	p.ParentGUID = d.Patch.ParentGUID
	p.Label = d.Patch.Label
	p.Position = d.Patch.Position
	p.Size = d.Patch.Size
	p.GroupType = d.Patch.GroupType
	p.Expanded = d.Patch.Expanded
	p.SortKey = d.Patch.SortKey
	p.Meta = d.Patch.Meta
	return p
}
