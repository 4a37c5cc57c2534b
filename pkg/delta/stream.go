package delta

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	vgerrors "github.com/viewgrid/viewgrid/pkg/errors"
	"github.com/viewgrid/viewgrid/pkg/retry"
)

// Websocket timing. Pings keep intermediaries from closing idle
// subscriptions; the pong deadline detects dead peers.
const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

// Subscription is a live delta feed for one view. Frames arrive on C in
// the order the server sent them. Cancelling the context passed to
// Subscribe tears the feed down immediately; frames arriving after
// teardown are dropped, never delivered late.
type Subscription struct {
	// C delivers deltas until the subscription ends, then is closed.
	C <-chan Delta

	viewID string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// ViewID returns the view this subscription follows.
func (s *Subscription) ViewID() string { return s.viewID }

// Close tears the subscription down and waits for the reader to exit.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Err returns the terminal error after C is closed, or nil for a clean
// teardown.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Subscribe dials the delta stream endpoint, requests changes for viewID,
// and waits for the server's acknowledgement before returning. The feed
// lives until ctx is cancelled, Close is called, or the connection fails.
func Subscribe(ctx context.Context, logger *log.Logger, url, viewID string) (*Subscription, error) {
	if err := vgerrors.ValidateViewID(viewID); err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, vgerrors.Wrap(vgerrors.ErrCodeNetwork, err, "dial delta stream %s", url)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		conn.Close()
		return nil, vgerrors.Wrap(vgerrors.ErrCodeNetwork, err, "set write deadline")
	}
	if err := conn.WriteJSON(SubscribeFrame(viewID)); err != nil {
		conn.Close()
		return nil, vgerrors.Wrap(vgerrors.ErrCodeNetwork, err, "send subscribe for view %s", viewID)
	}

	var ack Frame
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, vgerrors.Wrap(vgerrors.ErrCodeNetwork, err, "read subscription ack")
	}
	if ack.Type != TypeAck {
		conn.Close()
		return nil, vgerrors.New(vgerrors.ErrCodeInvalidDelta, "expected %s, got %q", TypeAck, ack.Type)
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Delta, 64)
	sub := &Subscription{
		C:      ch,
		viewID: viewID,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go sub.run(subCtx, logger, conn, ch)
	return sub, nil
}

// SubscribeWithRetry is [Subscribe] with reconnect-style backoff on
// transient dial failures. Validation errors still fail immediately.
func SubscribeWithRetry(ctx context.Context, logger *log.Logger, url, viewID string) (*Subscription, error) {
	var sub *Subscription
	err := retry.WithBackoff(ctx, func() error {
		var err error
		sub, err = Subscribe(ctx, logger, url, viewID)
		if err != nil {
			logger.Warn("delta stream connect failed", "url", url, "err", err)
		}
		return err
	})
	return sub, err
}

func (s *Subscription) run(ctx context.Context, logger *log.Logger, conn *websocket.Conn, ch chan<- Delta) {
	defer close(s.done)
	defer close(ch)
	defer conn.Close()

	// Close the connection as soon as the context ends so the blocked
	// ReadJSON below unblocks and late frames are dropped with it.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go pingLoop(ctx, conn)

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.err = err
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() == nil {
				s.err = vgerrors.Wrap(vgerrors.ErrCodeNetwork, err, "delta stream closed")
			}
			return
		}
		if frame.Type != TypeDelta {
			logger.Debug("ignoring non-delta frame", "type", frame.Type)
			continue
		}
		for _, d := range frame.Deltas() {
			select {
			case ch <- d:
			case <-ctx.Done():
				return
			}
		}
	}
}

func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
