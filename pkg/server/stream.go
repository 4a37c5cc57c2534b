package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/viewgrid/viewgrid/pkg/delta"
	"github.com/viewgrid/viewgrid/pkg/errors"
)

const (
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = (streamPongWait * 9) / 10
)

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// handleStream upgrades to a websocket and speaks the delta protocol: the
// client sends subscribe_graph_changes, the server acks, then pushes
// graph_delta frames as they arrive on the hub.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	viewID := chi.URLParam(r, "viewID")
	if err := errors.ValidateViewID(viewID); err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var sub delta.Frame
	if err := conn.ReadJSON(&sub); err != nil {
		return
	}
	if sub.Type != delta.TypeSubscribe {
		s.logger.Warn("stream opened without subscribe", "view", viewID, "type", sub.Type)
		return
	}

	// Register with the hub before acking, so a delta ingested right
	// after the client sees the ack cannot slip past this subscriber.
	feed, unsubscribe := s.hub.Subscribe(viewID)
	defer unsubscribe()
	s.logger.Debug("stream subscribed", "view", viewID, "subscribers", s.hub.Subscribers(viewID))

	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(delta.AckFrame(viewID)); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader drains control frames and detects the peer going away.
	go func() {
		defer cancel()
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case d, ok := <-feed:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(delta.DeltaFrame(viewID, d)); err != nil {
				return
			}
		}
	}
}
