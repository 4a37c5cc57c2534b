package delta

import (
	"encoding/json"
	"testing"

	"github.com/viewgrid/viewgrid/pkg/graph"
)

func TestSubscribeFrameWire(t *testing.T) {
	data, err := json.Marshal(SubscribeFrame("view-1"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"type":"subscribe_graph_changes","viewId":"view-1"}`
	if string(data) != want {
		t.Errorf("wire = %s, want %s", data, want)
	}
}

func TestAckFrameWire(t *testing.T) {
	data, err := json.Marshal(AckFrame("view-1"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"type":"graph_subscription_ack","viewId":"view-1"}`
	if string(data) != want {
		t.Errorf("wire = %s, want %s", data, want)
	}
}

func TestDeltaFrameWire(t *testing.T) {
	label := "Renamed"
	frame := DeltaFrame("view-1", Delta{
		Version: 7,
		Op:      OpUpdate,
		Target:  TargetNode,
		GUID:    "abc",
		Patch:   &Patch{Label: &label},
	})
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Frame
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Type != TypeDelta || decoded.ViewID != "view-1" {
		t.Errorf("envelope = %+v", decoded)
	}
	if decoded.Version != 7 || decoded.Op != OpUpdate || decoded.Target != TargetNode || decoded.GUID != "abc" {
		t.Errorf("delta = %+v", decoded.Delta)
	}
	if decoded.Patch == nil || decoded.Patch.Label == nil || *decoded.Patch.Label != "Renamed" {
		t.Errorf("patch = %+v", decoded.Patch)
	}
}

func TestPatchAbsentFieldsStayNil(t *testing.T) {
	// A position-only patch must decode with every other field nil, so the
	// merge pipeline can tell "absent" from "zero".
	raw := `{"position":{"x":10,"y":20}}`
	var p Patch
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.Position == nil || *p.Position != (graph.Point{X: 10, Y: 20}) {
		t.Errorf("position = %+v", p.Position)
	}
	if p.Label != nil || p.Size != nil || p.ParentGUID != nil || p.Expanded != nil {
		t.Errorf("absent fields decoded non-nil: %+v", p)
	}
}

func TestDeltaWireFieldNames(t *testing.T) {
	// The consumer contract is camelCase field names.
	pos := graph.Point{X: 1, Y: 2}
	parent := "p1"
	frame := DeltaFrame("v", Delta{
		Version: 1, Op: OpAdd, Target: TargetNode, GUID: "n1",
		Patch: &Patch{ParentGUID: &parent, Position: &pos},
	})
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"type", "viewId", "version", "op", "target", "guid", "patch"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing wire field %q in %s", key, data)
		}
	}
	patch := m["patch"].(map[string]any)
	for _, key := range []string{"parentGuid", "position"} {
		if _, ok := patch[key]; !ok {
			t.Errorf("missing patch field %q in %s", key, data)
		}
	}
}

func TestBatchFrameWire(t *testing.T) {
	frame := BatchFrame("v1", []Delta{
		{Version: 4, Op: OpAdd, Target: TargetNode, GUID: "n1"},
		{Version: 5, Op: OpRemove, Target: TargetEdge, GUID: "e1"},
	})
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got Frame
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	ds := got.Deltas()
	if len(ds) != 2 {
		t.Fatalf("Deltas() = %d elements, want 2", len(ds))
	}
	if ds[0].GUID != "n1" || ds[1].GUID != "e1" {
		t.Errorf("batch order = %q,%q, want n1,e1", ds[0].GUID, ds[1].GUID)
	}
}

func TestFrameDeltasSingle(t *testing.T) {
	frame := DeltaFrame("v1", Delta{Version: 2, Op: OpUpdate, Target: TargetNode, GUID: "n1"})
	ds := frame.Deltas()
	if len(ds) != 1 || ds[0].GUID != "n1" {
		t.Errorf("Deltas() = %+v, want the single embedded delta", ds)
	}
}
