package delta

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// deltaServer acks the subscription and pushes the given frames.
func deltaServer(t *testing.T, frames []Frame) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var sub Frame
		if err := conn.ReadJSON(&sub); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if sub.Type != TypeSubscribe {
			t.Errorf("first frame type = %q, want %s", sub.Type, TypeSubscribe)
			return
		}
		if err := conn.WriteJSON(AckFrame(sub.ViewID)); err != nil {
			return
		}
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscribeDeliversInOrder(t *testing.T) {
	label1, label2 := "one", "two"
	srv := deltaServer(t, []Frame{
		DeltaFrame("view-1", Delta{Version: 1, Op: OpUpdate, Target: TargetNode, GUID: "a",
			Patch: &Patch{Label: &label1}}),
		{Type: "unrelated_frame"}, // must be skipped, not delivered
		DeltaFrame("view-1", Delta{Version: 2, Op: OpUpdate, Target: TargetNode, GUID: "a",
			Patch: &Patch{Label: &label2}}),
	})
	defer srv.Close()

	sub, err := Subscribe(context.Background(), log.New(io.Discard), wsURL(srv), "view-1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if sub.ViewID() != "view-1" {
		t.Errorf("view = %q", sub.ViewID())
	}

	first := recvDelta(t, sub.C)
	if first.Version != 1 || *first.Patch.Label != "one" {
		t.Errorf("first delta = %+v", first)
	}
	second := recvDelta(t, sub.C)
	if second.Version != 2 || *second.Patch.Label != "two" {
		t.Errorf("second delta = %+v", second)
	}
}

func TestSubscribeCloseDropsLateFrames(t *testing.T) {
	srv := deltaServer(t, nil)
	defer srv.Close()

	sub, err := Subscribe(context.Background(), log.New(io.Discard), wsURL(srv), "view-1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	sub.Close()

	// Channel closes on teardown; a clean close reports no error.
	select {
	case _, ok := <-sub.C:
		if ok {
			t.Error("received a delta after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after Close")
	}
	if err := sub.Err(); err != nil {
		t.Errorf("Err after clean close = %v", err)
	}
}

func TestSubscribeRejectsBadAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub Frame
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		conn.WriteJSON(Frame{Type: "graph_subscription_denied"})
	}))
	defer srv.Close()

	_, err := Subscribe(context.Background(), log.New(io.Discard), wsURL(srv), "view-1")
	if err == nil {
		t.Fatal("Subscribe succeeded without an ack")
	}
}

func TestSubscribeRejectsInvalidViewID(t *testing.T) {
	_, err := Subscribe(context.Background(), log.New(io.Discard), "ws://unused", "")
	if err == nil {
		t.Fatal("Subscribe accepted empty view ID")
	}
}

func recvDelta(t *testing.T, ch <-chan Delta) Delta {
	t.Helper()
	select {
	case d, ok := <-ch:
		if !ok {
			t.Fatal("delta channel closed early")
		}
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delta")
		return Delta{}
	}
}
