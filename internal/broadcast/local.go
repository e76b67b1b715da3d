package broadcast

import (
	"context"
	"sync"
)

// LocalBroadcaster is an in-process Broadcaster for single-node
// deployments and tests. Publishing never blocks: a subscriber whose
// buffer is full misses the event and reconciles via the snapshot pull.
type LocalBroadcaster struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewLocalBroadcaster creates an empty in-process broadcaster.
func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

func (b *LocalBroadcaster) Publish(_ context.Context, evt Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[evt.AuctionID] {
		select {
		case ch <- evt:
		default:
			// Drop rather than block the bid hot path.
		}
	}
	return nil
}

func (b *LocalBroadcaster) Subscribe(ctx context.Context, auctionID string) (<-chan Event, error) {
	ch := make(chan Event, 64)

	b.mu.Lock()
	if b.subs[auctionID] == nil {
		b.subs[auctionID] = make(map[chan Event]struct{})
	}
	b.subs[auctionID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[auctionID], ch)
		if len(b.subs[auctionID]) == 0 {
			delete(b.subs, auctionID)
		}
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}
