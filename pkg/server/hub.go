package server

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/viewgrid/viewgrid/pkg/delta"
)

// Hub fans deltas out to every websocket subscriber of a view. Publishes
// never block: a subscriber that cannot keep up has its buffer dropped on
// the floor and will catch up from the next snapshot load.
type Hub struct {
	mu     sync.RWMutex
	logger *log.Logger
	subs   map[string]map[chan delta.Delta]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[string]map[chan delta.Delta]struct{}),
	}
}

// Subscribe registers a new subscriber for a view and returns its channel
// plus an unsubscribe function.
func (h *Hub) Subscribe(viewID string) (<-chan delta.Delta, func()) {
	ch := make(chan delta.Delta, 64)

	h.mu.Lock()
	if h.subs[viewID] == nil {
		h.subs[viewID] = make(map[chan delta.Delta]struct{})
	}
	h.subs[viewID][ch] = struct{}{}
	h.mu.Unlock()

	once := sync.Once{}
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[viewID], ch)
			if len(h.subs[viewID]) == 0 {
				delete(h.subs, viewID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Publish delivers a delta to every subscriber of the view.
func (h *Hub) Publish(viewID string, d delta.Delta) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[viewID] {
		select {
		case ch <- d:
		default:
			h.logger.Warn("dropping delta for slow subscriber", "view", viewID)
		}
	}
}

// Subscribers returns the subscriber count for a view.
func (h *Hub) Subscribers(viewID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[viewID])
}

// RelayFromRedis pumps deltas published on the view's Redis channel into
// the hub, so multiple server instances share one delta feed. Blocks until
// ctx ends.
func (h *Hub) RelayFromRedis(ctx context.Context, pub *delta.Publisher, viewID string) error {
	ch, err := pub.Listen(ctx, viewID)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-ch:
			if !ok {
				return nil
			}
			h.Publish(viewID, d)
		}
	}
}
