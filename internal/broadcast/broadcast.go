// Package broadcast fans round, bid and result changes out to every
// subscribed client on a per-auction channel. The engine publishes three
// event kinds; delivery is best effort — durable storage is the bid's
// source of truth, and a client that misses an event reconciles through
// the snapshot query path, which serves the identical structure.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
)

// EventType names the event kinds published on an auction channel.
type EventType string

const (
	// EventAuctionState is the full snapshot: queue, current round,
	// per-team budgets and squads, sale history.
	EventAuctionState EventType = "auction-state"

	// EventAuctionBids is the sealed-mode bid map, delivered only to
	// operator-authorized connections.
	EventAuctionBids EventType = "auction-bids"

	// EventBidUpdate is a single public bid delta: round, team, amount.
	// Deliberately not the bid history, to keep the hot path small.
	EventBidUpdate EventType = "bid-update"
)

// Event is one message on an auction channel.
type Event struct {
	Type      EventType       `json:"type"`
	AuctionID string          `json:"auction_id"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent marshals payload into an Event of the given type.
func NewEvent(typ EventType, auctionID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("broadcast: marshal %s: %w", typ, err)
	}
	return Event{Type: typ, AuctionID: auctionID, Payload: data}, nil
}

// Broadcaster is the publish/subscribe abstraction between the engine and
// whatever transport carries events (Redis across instances, an in-process
// fan-out on a single node).
type Broadcaster interface {
	// Publish sends evt to every subscriber of evt.AuctionID.
	Publish(ctx context.Context, evt Event) error

	// Subscribe returns a channel of events for one auction. The channel
	// is closed when ctx is cancelled. Slow consumers may lose events;
	// they recover via the snapshot pull.
	Subscribe(ctx context.Context, auctionID string) (<-chan Event, error)
}

// channelName is the transport topic for one auction.
func channelName(auctionID string) string {
	return "auction-" + auctionID
}
