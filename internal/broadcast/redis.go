package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster implements Broadcaster over Redis Pub/Sub, one channel
// per auction. This is what lets the bid-acceptance path scale out: any
// instance can accept a bid, and every instance's connected clients see
// the event.
type RedisBroadcaster struct {
	rdb *redis.Client
}

// NewRedisBroadcaster creates a Broadcaster backed by the given client.
func NewRedisBroadcaster(rdb *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, channelName(evt.AuctionID), data).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channelName(evt.AuctionID), err)
	}
	return nil
}

func (b *RedisBroadcaster) Subscribe(ctx context.Context, auctionID string) (<-chan Event, error) {
	pubsub := b.rdb.Subscribe(ctx, channelName(auctionID))

	// Receive the subscription confirmation before handing the channel
	// over, so the caller's snapshot race starts from an established
	// subscription.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channelName(auctionID), err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					slog.Warn("broadcast: dropping malformed event", "channel", msg.Channel, "err", err)
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
