// Package server exposes the layout runtime's persistence and delta feed
// over HTTP: snapshot save/load/delete per view, a delta ingest endpoint,
// and a websocket stream implementing the subscribe/ack/push protocol.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/viewgrid/viewgrid/pkg/delta"
	"github.com/viewgrid/viewgrid/pkg/errors"
	"github.com/viewgrid/viewgrid/pkg/snapshot"
)

// Server serves snapshot persistence and delta streaming for views.
type Server struct {
	logger *log.Logger
	store  snapshot.Store
	hub    *Hub

	// publisher, when set, mirrors ingested deltas to Redis so other
	// server instances see them too.
	publisher *delta.Publisher
}

// Config configures a Server.
type Config struct {
	Store     snapshot.Store
	Logger    *log.Logger
	Publisher *delta.Publisher
}

// New creates a server. Store is required.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Server{
		logger:    cfg.Logger,
		store:     cfg.Store,
		hub:       NewHub(cfg.Logger),
		publisher: cfg.Publisher,
	}
}

// Hub returns the server's delta hub, so in-process producers can publish
// without going through HTTP.
func (s *Server) Hub() *Hub { return s.hub }

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/views/{viewID}", func(r chi.Router) {
		r.Get("/snapshot", s.handleLoadSnapshot)
		r.Post("/snapshot", s.handleSaveSnapshot)
		r.Delete("/snapshot", s.handleDeleteSnapshot)
		r.Post("/deltas", s.handleIngestDelta)
		r.Get("/stream", s.handleStream)
	})
	return r
}

// =============================================================================
// Snapshot handlers
// =============================================================================

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	viewID := chi.URLParam(r, "viewID")

	var snap snapshot.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode snapshot body"))
		return
	}
	if err := snapshot.Validate(&snap); err != nil {
		s.writeError(w, err)
		return
	}

	id, err := s.store.Save(r.Context(), viewID, snap)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("saved snapshot", "view", viewID, "nodes", len(snap.Nodes))
	s.writeJSON(w, http.StatusOK, map[string]string{
		"id":      id,
		"message": fmt.Sprintf("saved view %s (%d nodes, %d edges)", viewID, len(snap.Nodes), len(snap.Edges)),
	})
}

func (s *Server) handleLoadSnapshot(w http.ResponseWriter, r *http.Request) {
	viewID := chi.URLParam(r, "viewID")

	snap, err := s.store.Load(r.Context(), viewID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if snap == nil {
		s.writeError(w, errors.New(errors.ErrCodeViewNotFound, "no snapshot for view %s", viewID))
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	viewID := chi.URLParam(r, "viewID")
	if err := s.store.Delete(r.Context(), viewID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Delta ingest
// =============================================================================

// handleIngestDelta accepts one delta and fans it out to stream
// subscribers, plus Redis when configured.
func (s *Server) handleIngestDelta(w http.ResponseWriter, r *http.Request) {
	viewID := chi.URLParam(r, "viewID")
	if err := errors.ValidateViewID(viewID); err != nil {
		s.writeError(w, err)
		return
	}

	var d delta.Delta
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidDelta, err, "decode delta body"))
		return
	}
	if d.Target != delta.TargetNode && d.Target != delta.TargetEdge {
		s.writeError(w, errors.New(errors.ErrCodeInvalidDelta, "unknown target %q", string(d.Target)))
		return
	}
	if d.Op != delta.OpAdd && d.Op != delta.OpUpdate && d.Op != delta.OpRemove {
		s.writeError(w, errors.New(errors.ErrCodeInvalidDelta, "unknown op %q", string(d.Op)))
		return
	}

	s.hub.Publish(viewID, d)
	if s.publisher != nil {
		if err := s.publisher.Publish(r.Context(), viewID, d); err != nil {
			s.logger.Warn("redis publish failed", "view", viewID, "err", err)
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

// =============================================================================
// Responses
// =============================================================================

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidGUID, errors.ErrCodeInvalidViewID,
		errors.ErrCodeInvalidEngine, errors.ErrCodeInvalidDelta, errors.ErrCodeCorruptSnapshot:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeNodeNotFound, errors.ErrCodeViewNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	}
	s.writeJSON(w, status, map[string]string{
		"code":  string(code),
		"error": errors.UserMessage(err),
	})
}

// ListenAndServe runs the server until ctx ends, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.logger.Info("server listening", "addr", addr)
	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
