package broadcast

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/draftroom/auction-engine/internal/metrics"
)

const (
	// snapshotWait bounds how long a fresh subscriber waits for the
	// channel to deliver an auction-state event before the hub pulls one
	// explicitly. Covers the cold-start case where no event fires.
	snapshotWait = 3 * time.Second

	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// RoleOperator marks connections allowed to receive the sealed-mode
// auction-bids event. The identity provider upstream vouches for the
// role; the engine only enforces the gate.
const RoleOperator = "operator"

// SnapshotFunc builds the full auction-state event on demand, used when a
// subscriber must be served before (or instead of) a pushed event. It
// must produce the same structure the engine publishes, so a client
// cannot tell which path served it.
type SnapshotFunc func(ctx context.Context, auctionID string) (Event, error)

// Hub bridges Broadcaster subscriptions onto WebSocket connections. The
// per-connection subscription is the only process-wide mutable state the
// engine holds, and it is torn down on disconnect.
type Hub struct {
	bc           Broadcaster
	snapshot     SnapshotFunc
	snapshotWait time.Duration
}

// NewHub creates a hub over the given broadcaster and snapshot source.
func NewHub(bc Broadcaster, snapshot SnapshotFunc) *Hub {
	return &Hub{bc: bc, snapshot: snapshot, snapshotWait: snapshotWait}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // origin checks are the proxy's concern
	},
}

// HandleWS handles GET /api/v1/ws?auction={id}&role={viewer|operator}.
// The handler blocks for the lifetime of the connection: it subscribes to
// the auction channel, races the first auction-state event against the
// snapshot timeout, and relays events until either side disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	auctionID := r.URL.Query().Get("auction")
	if auctionID == "" {
		http.Error(w, "auction query parameter is required", http.StatusBadRequest)
		return
	}
	role := r.URL.Query().Get("role")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := h.bc.Subscribe(ctx, auctionID)
	if err != nil {
		slog.Error("ws subscribe failed", "auction", auctionID, "err", err)
		return
	}

	metrics.WebSocketClients.Inc()
	defer metrics.WebSocketClients.Dec()
	slog.Info("ws client connected", "auction", auctionID, "role", role)

	// Read pump: keep the connection alive and detect disconnects.
	go func() {
		defer cancel()
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(readTimeout))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	snapshotTimer := time.NewTimer(h.snapshotWait)
	defer snapshotTimer.Stop()
	gotState := false

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-snapshotTimer.C:
			if gotState {
				continue
			}
			// Channel did not confirm delivery in time: pull the state
			// explicitly so the cold subscriber still gets a snapshot.
			// A failed pull re-arms the timer; the subscriber must not
			// be left snapshotless until some event happens to fire.
			evt, err := h.snapshot(ctx, auctionID)
			if err != nil {
				slog.Error("ws snapshot pull failed", "auction", auctionID, "err", err)
				snapshotTimer.Reset(h.snapshotWait)
				continue
			}
			metrics.SnapshotPulls.Inc()
			if !h.write(conn, evt) {
				return
			}
			gotState = true

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case evt, ok := <-events:
			if !ok {
				return
			}
			if evt.Type == EventAuctionBids && role != RoleOperator {
				// Sealed bid map is for authorized viewers only.
				continue
			}
			if evt.Type == EventAuctionState {
				gotState = true
			}
			if !h.write(conn, evt) {
				return
			}
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, evt Event) bool {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(evt); err != nil {
		return false
	}
	return true
}
