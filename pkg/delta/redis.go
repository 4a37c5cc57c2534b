package delta

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	vgerrors "github.com/viewgrid/viewgrid/pkg/errors"
)

// channelPrefix namespaces per-view delta channels in Redis.
const channelPrefix = "viewgrid:deltas:"

// Channel returns the Redis pub/sub channel for a view's delta feed.
func Channel(viewID string) string {
	return channelPrefix + viewID
}

// Publisher fans deltas out through a Redis channel per view. The server's
// websocket hub subscribes to the same channel, so mutations made by any
// gateway instance reach every connected client.
type Publisher struct {
	client *redis.Client
}

// NewPublisher wraps an existing Redis client.
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish sends one delta to every subscriber of the view's channel.
func (p *Publisher) Publish(ctx context.Context, viewID string, d Delta) error {
	if err := vgerrors.ValidateViewID(viewID); err != nil {
		return err
	}
	payload, err := json.Marshal(DeltaFrame(viewID, d))
	if err != nil {
		return vgerrors.Wrap(vgerrors.ErrCodeInternal, err, "marshal delta for view %s", viewID)
	}
	if err := p.client.Publish(ctx, Channel(viewID), payload).Err(); err != nil {
		return vgerrors.Wrap(vgerrors.ErrCodeNetwork, err, "publish delta for view %s", viewID)
	}
	return nil
}

// Listen subscribes to a view's Redis channel and delivers decoded deltas
// until the context is cancelled. Undecodable payloads are skipped - one
// bad message must not kill the feed.
func (p *Publisher) Listen(ctx context.Context, viewID string) (<-chan Delta, error) {
	if err := vgerrors.ValidateViewID(viewID); err != nil {
		return nil, err
	}
	pubsub := p.client.Subscribe(ctx, Channel(viewID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, vgerrors.Wrap(vgerrors.ErrCodeNetwork, err, "subscribe to view %s", viewID)
	}

	out := make(chan Delta, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var frame Frame
				if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
					continue
				}
				if frame.Type != TypeDelta {
					continue
				}
				select {
				case out <- frame.Delta:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
