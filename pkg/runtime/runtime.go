// Package runtime implements the layout runtime: the single owner and
// single writer of one view's graph model.
//
// The runtime holds the ViewGraph, the transient interaction state (drag,
// selection, hover), and the delta subscription. Everything outside -
// renderer, server handlers, CLI - reads through [Runtime.Graph] and routes
// mutation intent through the runtime's public operations; nothing else
// ever mutates the model.
//
// Three sources of truth flow through here and must never clobber each
// other: user-dragged positions, server-pushed structural deltas, and
// per-node flatten/collapse state. The merge pipeline (merge.go) patches
// only the fields a delta names, the flatten transform (flatten.go) keeps
// exact pre-flatten subtree copies, and save/load (snapshot package) moves
// all of it to storage without running layout.
//
// All public operations are serialized by an internal mutex, preserving
// the one-logical-writer model even when delta frames and UI events arrive
// on different goroutines.
package runtime

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/viewgrid/viewgrid/pkg/errors"
	"github.com/viewgrid/viewgrid/pkg/graph"
	"github.com/viewgrid/viewgrid/pkg/layout"
	"github.com/viewgrid/viewgrid/pkg/snapshot"
)

// Zoom bounds enforced on camera updates. These are interaction guards,
// not layout constraints.
const (
	MinZoom = 0.05
	MaxZoom = 8.0
)

// Change describes the minimal region an operation touched, so observers
// can redraw incrementally. Full is set only when everything must be
// repainted: initial layout, snapshot load, and the first delta after a
// subscription.
type Change struct {
	Full      bool
	NodeGUIDs []string
	EdgeIDs   []string
}

// Observer receives change notifications. Called synchronously with the
// runtime lock held - observers must only schedule work, never call back
// into the runtime.
type Observer func(Change)

// Config configures a Runtime.
type Config struct {
	// Engine selects the layout engine for initial load and single-node
	// placement. Defaults to KindContainment.
	Engine layout.Kind

	// Store persists snapshots. Defaults to an in-memory store.
	Store snapshot.Store

	// Logger receives structured runtime logs. Defaults to a discard
	// logger.
	Logger *log.Logger

	// AddNestedUnderFlattened controls where a delta "add" lands when its
	// parent is currently flattened. False (default): the new node appears
	// as a sibling with a synthesized CONTAINS edge, matching the
	// flattened presentation, and is recorded in the parent's bookkeeping
	// so a later unflatten nests it. True: the node nests under the
	// flattened parent in its pre-flatten shape.
	AddNestedUnderFlattened bool
}

// Runtime owns and mutates one view's graph.
type Runtime struct {
	mu     sync.Mutex
	logger *log.Logger
	g      *graph.ViewGraph
	engine layout.Kind
	store  snapshot.Store

	addNested bool

	// Transient interaction state; stripped from snapshots by construction
	// because it never lives on the graph.
	selection map[string]bool
	hover     string

	observers []Observer

	subState   SubState
	subCancel  context.CancelFunc
	firstDelta bool
}

// New creates a runtime with an empty graph.
func New(cfg Config) *Runtime {
	if cfg.Engine == "" {
		cfg.Engine = layout.KindContainment
	}
	if cfg.Store == nil {
		cfg.Store = snapshot.NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	mode := graph.DisplayModeContainment
	if cfg.Engine != layout.KindContainment {
		mode = graph.DisplayModeFlat
	}
	return &Runtime{
		logger:    cfg.Logger,
		g:         graph.New(mode),
		engine:    cfg.Engine,
		store:     cfg.Store,
		addNested: cfg.AddNestedUnderFlattened,
		selection: make(map[string]bool),
		subState:  SubIdle,
	}
}

// Graph returns the owned graph. Callers must treat it as read-only;
// mutation goes through the runtime's operations.
func (r *Runtime) Graph() *graph.ViewGraph { return r.g }

// Engine returns the active layout engine kind.
func (r *Runtime) Engine() layout.Kind { return r.engine }

// Observe registers an observer for change notifications.
func (r *Runtime) Observe(fn Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

func (r *Runtime) notify(c Change) {
	for _, fn := range r.observers {
		fn(c)
	}
}

// =============================================================================
// Initial load
// =============================================================================

// LoadInitial runs the configured layout engine over raw entity and
// relationship data and replaces the graph with the result. This is the
// only operation that positions more than one node at a time.
func (r *Runtime) LoadInitial(entities []layout.Entity, relationships []layout.Relationship) error {
	res, err := layout.Apply(r.engine, entities, relationships)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	mode := graph.DisplayModeContainment
	if r.engine != layout.KindContainment {
		mode = graph.DisplayModeFlat
	}
	g := graph.New(mode)
	for _, n := range res.Nodes {
		if err := g.Put(n); err != nil {
			return err
		}
	}
	g.SetCamera(res.Camera)

	for _, rel := range relationships {
		if rel.IsContainment() && r.engine == layout.KindContainment {
			continue // nesting already expresses it
		}
		id := rel.ID
		if id == "" {
			id = uuid.NewString()
		}
		e := graph.Edge{
			ID:           id,
			FromGUID:     rel.FromGUID,
			ToGUID:       rel.ToGUID,
			Label:        rel.Label,
			RelationType: rel.RelationType,
		}
		if err := g.AddEdge(e); err != nil {
			r.logger.Warn("dropping dangling relationship",
				"from", rel.FromGUID, "to", rel.ToGUID, "err", err)
		}
	}

	r.g = g
	r.selection = make(map[string]bool)
	r.hover = ""
	r.notify(Change{Full: true})
	return nil
}

// =============================================================================
// Interaction
// =============================================================================

// DragNode moves a node to a new position.
func (r *Runtime) DragNode(guid string, pos graph.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.g.Node(guid) == nil {
		return errors.New(errors.ErrCodeNodeNotFound, "drag target %q", guid)
	}
	if _, err := r.g.UpsertNode(graph.NodePatch{GUID: guid, Position: &pos}); err != nil {
		return err
	}
	r.notify(Change{NodeGUIDs: []string{guid}})
	return nil
}

// ResizeNode changes a node's size.
func (r *Runtime) ResizeNode(guid string, size graph.Size) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.g.Node(guid) == nil {
		return errors.New(errors.ErrCodeNodeNotFound, "resize target %q", guid)
	}
	if _, err := r.g.UpsertNode(graph.NodePatch{GUID: guid, Size: &size}); err != nil {
		return err
	}
	r.notify(Change{NodeGUIDs: []string{guid}})
	return nil
}

// Select replaces the selection with the given nodes. Selection is
// transient interaction state and never reaches snapshots.
func (r *Runtime) Select(guids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selection = make(map[string]bool, len(guids))
	for _, guid := range guids {
		if r.g.Node(guid) != nil {
			r.selection[guid] = true
		}
	}
}

// Selected reports whether a node is currently selected.
func (r *Runtime) Selected(guid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selection[guid]
}

// SetHover records the hovered node, or clears it with an empty GUID.
func (r *Runtime) SetHover(guid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hover = guid
}

// ToggleExpand flips a container's expanded flag. Collapse/expand is
// presentation only: it never creates, drops, or regenerates edges, in
// particular not the CONTAINS edges synthesized by a flatten.
func (r *Runtime) ToggleExpand(guid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.g.Node(guid)
	if n == nil {
		return errors.New(errors.ErrCodeNodeNotFound, "expand target %q", guid)
	}
	if !n.IsContainer() {
		return errors.New(errors.ErrCodeInvalidInput, "node %q is not a container", guid)
	}
	expanded := !n.Expanded
	if _, err := r.g.UpsertNode(graph.NodePatch{GUID: guid, Expanded: &expanded}); err != nil {
		return err
	}
	r.notify(Change{NodeGUIDs: []string{guid}})
	return nil
}

// SetCamera applies a pan/zoom update with the zoom clamped to the
// interaction bounds.
func (r *Runtime) SetCamera(c graph.Camera) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Zoom < MinZoom {
		c.Zoom = MinZoom
	}
	if c.Zoom > MaxZoom {
		c.Zoom = MaxZoom
	}
	r.g.SetCamera(c)
}

// HitTest returns the GUID of the topmost node under the given world
// point, or empty if none. Smaller nodes win over the containers that
// enclose them, so items inside a box stay clickable.
func (r *Runtime) HitTest(p graph.Point) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	best := ""
	bestArea := 0.0
	for _, n := range r.g.Nodes() {
		if p.X < n.Position.X || p.X > n.Position.X+n.Size.W ||
			p.Y < n.Position.Y || p.Y > n.Position.Y+n.Size.H {
			continue
		}
		area := n.Size.W * n.Size.H
		if best == "" || area < bestArea {
			best, bestArea = n.GUID, area
		}
	}
	return best
}

// =============================================================================
// Persistence
// =============================================================================

// Save captures a point-in-time snapshot and persists it. The capture
// happens under the runtime lock; the store call does not, so deltas and
// drags proceeding during a slow save cannot tear the serialized state.
// Storage failures leave the in-memory graph untouched.
func (r *Runtime) Save(ctx context.Context, viewID string) (string, error) {
	r.mu.Lock()
	snap := snapshot.Capture(r.g)
	r.mu.Unlock()

	id, err := r.store.Save(ctx, viewID, snap)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodePersistence, err, "save view %s", viewID)
	}
	r.logger.Debug("saved snapshot", "view", viewID, "id", id, "nodes", len(snap.Nodes))
	return id, nil
}

// Load restores the view's persisted snapshot, replacing the in-memory
// graph without invoking any layout engine. Returns false when the view
// has no snapshot. A corrupt snapshot is rejected and the previous graph
// stays active.
func (r *Runtime) Load(ctx context.Context, viewID string) (bool, error) {
	snap, err := r.store.Load(ctx, viewID)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodePersistence, err, "load view %s", viewID)
	}
	if snap == nil {
		return false, nil
	}
	g, err := snapshot.Restore(snap)
	if err != nil {
		return false, err // previous graph stays active
	}

	r.mu.Lock()
	r.g = g
	r.selection = make(map[string]bool)
	r.hover = ""
	r.notify(Change{Full: true})
	r.mu.Unlock()

	r.logger.Debug("loaded snapshot", "view", viewID, "nodes", len(snap.Nodes), "version", snap.Version)
	return true, nil
}
