package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/draftroom/auction-engine/internal/broadcast"
	"github.com/draftroom/auction-engine/internal/increment"
	"github.com/draftroom/auction-engine/internal/ledger"
	"github.com/draftroom/auction-engine/internal/metrics"
	"github.com/draftroom/auction-engine/internal/model"
	"github.com/draftroom/auction-engine/internal/store"
)

// Service is the auction round engine. Handlers are stateless: all round
// and bid state lives in the store, so any instance can accept any bid.
type Service struct {
	store  store.Store
	ledger *ledger.Ledger
	bc     broadcast.Broadcaster
}

// NewService creates the engine over a store and a broadcaster.
func NewService(st store.Store, bc broadcast.Broadcaster) *Service {
	return &Service{
		store:  st,
		ledger: ledger.New(st),
		bc:     bc,
	}
}

// --- Request/Response types ---

// BidRequest is the JSON body for POST /bid/{sessionId}.
type BidRequest struct {
	RoundID  string `json:"roundId"`
	PlayerID string `json:"playerId"`
	Amount   int64  `json:"amount"`
}

// BidView is the accepted bid as returned to the bidder.
type BidView struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	SubmittedAt time.Time `json:"submittedAt"`
	Team        string    `json:"team"`
	Player      string    `json:"player"`
}

// BidResponse is the JSON body returned from POST /bid/{sessionId}.
type BidResponse struct {
	Success bool    `json:"success"`
	Bid     BidView `json:"bid"`
}

// OpenRoundRequest is the JSON body for opening a round.
type OpenRoundRequest struct {
	PlayerID     string `json:"playerId"`
	TimerSeconds int    `json:"timerSeconds"`
}

// ResolveResponse reports a round's resolution.
type ResolveResponse struct {
	RoundID string               `json:"roundId"`
	Outcome string               `json:"outcome"` // "SOLD" or "UNSOLD"
	Result  *model.AuctionResult `json:"result,omitempty"`
}

// bidUpdatePayload is the public bid delta published after acceptance.
// Deliberately not the full bid history, to keep the hot path small.
type bidUpdatePayload struct {
	RoundID  string `json:"round_id"`
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	Amount   int64  `json:"amount"`
}

// bidMapPayload is the sealed-mode bid map, delivered only to operator
// connections by the hub.
type bidMapPayload struct {
	RoundID string           `json:"round_id"`
	Bids    map[string]int64 `json:"bids"` // teamID → amount
}

// --- HTTP handlers ---

// SubmitBid handles POST /api/v1/bid/{sessionId}.
func (s *Service) SubmitBid(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	sid, err := ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, model.NotFoundf("session not found"))
		return
	}

	var req BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.InvalidBidf("invalid request body"))
		return
	}

	ctx := r.Context()
	bid, auction, team, err := s.submitBid(ctx, sid.AuctionID, sid.TeamID, req.RoundID, req.PlayerID, req.Amount)
	if err != nil {
		metrics.BidsTotal.WithLabelValues(string(model.KindOf(err))).Inc()
		writeError(w, err)
		return
	}

	metrics.BidsTotal.WithLabelValues("accepted").Inc()
	metrics.BidLatency.Observe(time.Since(start).Seconds())

	player, _ := s.store.GetPlayer(ctx, bid.PlayerID)
	playerName := bid.PlayerID
	if player != nil {
		playerName = player.Name
	}

	slog.Info("bid accepted",
		"bid_id", bid.ID,
		"auction", sid.AuctionID,
		"team", team.Name,
		"round", bid.RoundID,
		"amount", bid.Amount,
		"mode", auction.Mode,
	)

	// Best-effort notification; the stored bid is the source of truth
	// and clients that miss the event reconcile via the snapshot pull.
	s.publish(ctx, broadcast.EventBidUpdate, auction.ID, bidUpdatePayload{
		RoundID:  bid.RoundID,
		TeamID:   team.ID,
		TeamName: team.Name,
		Amount:   bid.Amount,
	})
	if auction.Mode == model.ModeSealed {
		s.publishBidMap(ctx, auction.ID, bid.RoundID)
	}

	writeJSON(w, http.StatusOK, BidResponse{
		Success: true,
		Bid: BidView{
			ID:          bid.ID,
			Amount:      bid.Amount,
			SubmittedAt: bid.SubmittedAt,
			Team:        team.Name,
			Player:      playerName,
		},
	})
}

// submitBid runs the validation chain in order — fail fast, first failure
// wins — then performs the mode-appropriate atomic write.
func (s *Service) submitBid(ctx context.Context, auctionID, teamID, roundID, playerID string, amount int64) (*model.Bid, *model.Auction, *model.Team, error) {
	// 1. Team belongs to the auction.
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil || team.AuctionID != auctionID {
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return nil, nil, nil, model.Internal("loading team", err)
		}
		return nil, nil, nil, model.NotFoundf("team not found")
	}

	// 2. Auction is LIVE.
	auction, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil, nil, model.NotFoundf("auction not found")
		}
		return nil, nil, nil, model.Internal("loading auction", err)
	}
	if auction.Status != model.AuctionLive {
		return nil, nil, nil, model.InvalidStatef("auction not live")
	}

	// 3. Round exists, belongs to the auction, and is OPEN. A round id
	// that does not resolve is the legacy placeholder path: find or
	// create the real round for this auction/player.
	round, err := s.store.GetRound(ctx, roundID)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrNotFound):
		round, err = s.materializeRound(ctx, auction, playerID)
		if err != nil {
			return nil, nil, nil, err
		}
	default:
		return nil, nil, nil, model.Internal("loading round", err)
	}
	if round.AuctionID != auctionID || round.PlayerID != playerID || round.Status != model.RoundOpen {
		return nil, nil, nil, model.NotFoundf("round not active")
	}

	// 4. Amount meets the tier's minimum.
	tier, err := s.store.GetTier(ctx, round.TierID)
	if err != nil {
		return nil, nil, nil, model.Internal("loading tier", err)
	}
	if amount < tier.BasePrice {
		return nil, nil, nil, model.InvalidBidf("minimum bid is %d", tier.BasePrice)
	}

	// 5. Amount within remaining budget, computed fresh from the ledger.
	remaining, err := s.ledger.Remaining(ctx, team)
	if err != nil {
		return nil, nil, nil, model.Internal("computing budget", err)
	}
	if amount > remaining {
		return nil, nil, nil, model.InvalidBidf("insufficient budget")
	}

	// 6. The bidding window has not passed. Closing is cooperative: a
	// late bid is rejected here, not by preempting the request.
	now := time.Now().UTC()
	if round.Expired(now) {
		return nil, nil, nil, model.InvalidStatef("bidding time expired")
	}

	// 7. Atomic write, per mode.
	bid := &model.Bid{
		ID:          uuid.New().String(),
		RoundID:     round.ID,
		TeamID:      team.ID,
		PlayerID:    playerID,
		Amount:      amount,
		SubmittedAt: now,
	}

	switch auction.Mode {
	case model.ModeOpenOutcry:
		if err := s.appendOutcryBid(ctx, auction, tier, bid); err != nil {
			return nil, nil, nil, err
		}
	default:
		// Sealed: last-writer-wins upsert on (round, team, player).
		if err := s.store.UpsertBid(ctx, bid); err != nil {
			return nil, nil, nil, model.Internal("storing bid", err)
		}
	}

	return bid, auction, team, nil
}

// appendOutcryBid enforces the increment policy and claims the next
// sequence number. A sequence collision means another raise landed first;
// it is retried exactly once with a refetch, since re-reading the top bid
// is enough for the client's amount to be judged again.
func (s *Service) appendOutcryBid(ctx context.Context, auction *model.Auction, tier *model.Tier, bid *model.Bid) error {
	brackets := auction.Brackets
	if len(brackets) == 0 {
		brackets = increment.DefaultBrackets()
	}

	for attempt := 0; attempt < 2; attempt++ {
		expected := tier.BasePrice
		var seq int64 = 1

		top, err := s.store.TopBid(ctx, bid.RoundID)
		switch {
		case err == nil:
			expected = increment.NextBid(top.Amount, tier.BasePrice, brackets)
			seq = top.SequenceNumber + 1
		case errors.Is(err, model.ErrNotFound):
			// Opening bid: the tier's base price.
		default:
			return model.Internal("loading top bid", err)
		}

		if bid.Amount != expected {
			return model.InvalidBidf("stale increment")
		}

		bid.SequenceNumber = seq
		err = s.store.AppendBid(ctx, bid)
		if err == nil {
			return nil
		}
		if errors.Is(err, model.ErrSequenceConflict) {
			metrics.SequenceRetries.Inc()
			continue
		}
		return model.Internal("storing bid", err)
	}
	return model.InvalidBidf("stale increment")
}

// materializeRound backs the legacy placeholder-id path: atomically find
// or create the OPEN round for this auction/player. Race-safe — two
// concurrent requests converge on one round, the loser reusing the
// winner's row.
func (s *Service) materializeRound(ctx context.Context, auction *model.Auction, playerID string) (*model.Round, error) {
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil || player.AuctionID != auction.ID {
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return nil, model.Internal("loading player", err)
		}
		return nil, model.NotFoundf("player not found")
	}
	if player.Status == model.PlayerSold {
		return nil, model.InvalidStatef("player already sold")
	}

	round, err := s.store.FindOrCreateOpenRound(ctx, &model.Round{
		ID:        uuid.New().String(),
		AuctionID: auction.ID,
		PlayerID:  playerID,
		TierID:    player.TierID,
		Status:    model.RoundOpen,
		OpenedAt:  time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NotFoundf("round not active")
		}
		return nil, model.Internal("materializing round", err)
	}
	return round, nil
}

// OpenRound handles POST /api/v1/auctions/{auctionID}/rounds.
func (s *Service) OpenRound(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionID")

	var req OpenRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, model.InvalidBidf("invalid request body"))
		return
	}

	ctx := r.Context()
	round, err := s.openRound(ctx, auctionID, req.PlayerID, req.TimerSeconds)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("round opened",
		"round", round.ID,
		"auction", auctionID,
		"player", round.PlayerID,
		"timer_seconds", round.TimerSeconds,
	)

	s.publishState(ctx, auctionID)
	writeJSON(w, http.StatusCreated, round)
}

func (s *Service) openRound(ctx context.Context, auctionID, playerID string, timerSeconds int) (*model.Round, error) {
	auction, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NotFoundf("auction not found")
		}
		return nil, model.Internal("loading auction", err)
	}
	if auction.Status != model.AuctionLive {
		return nil, model.InvalidStatef("auction not live")
	}

	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil || player.AuctionID != auctionID {
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return nil, model.Internal("loading player", err)
		}
		return nil, model.NotFoundf("player not found")
	}
	if player.Status == model.PlayerSold {
		return nil, model.InvalidStatef("player already sold")
	}

	now := time.Now().UTC()
	round := &model.Round{
		ID:           uuid.New().String(),
		AuctionID:    auctionID,
		PlayerID:     playerID,
		TierID:       player.TierID,
		Status:       model.RoundOpen,
		OpenedAt:     now,
		TimerSeconds: timerSeconds,
	}
	if timerSeconds > 0 {
		deadline := now.Add(time.Duration(timerSeconds) * time.Second)
		round.ClosedAt = &deadline
	}

	if err := s.store.CreateOpenRound(ctx, round); err != nil {
		if errors.Is(err, model.ErrRoundConflict) {
			return nil, model.InvalidStatef("another round is already open")
		}
		return nil, model.Internal("creating round", err)
	}
	return round, nil
}

// CloseRound handles POST /api/v1/rounds/{roundID}/close. Closing is
// terminal; a closed round is never reopened.
func (s *Service) CloseRound(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundID")
	ctx := r.Context()

	round, err := s.store.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, model.NotFoundf("round not found"))
			return
		}
		writeError(w, model.Internal("loading round", err))
		return
	}

	if err := s.store.CloseRound(ctx, roundID, time.Now().UTC()); err != nil {
		writeError(w, model.Internal("closing round", err))
		return
	}

	slog.Info("round closed", "round", roundID, "auction", round.AuctionID)
	s.publishState(ctx, round.AuctionID)

	round, _ = s.store.GetRound(ctx, roundID)
	writeJSON(w, http.StatusOK, round)
}

// ResolveRound handles POST /api/v1/rounds/{roundID}/resolve: closes the
// round if still open, then records the sale — or the no-sale.
func (s *Service) ResolveRound(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundID")
	ctx := r.Context()

	resp, auctionID, err := s.resolveRound(ctx, roundID)
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.RoundsResolved.WithLabelValues(strings.ToLower(resp.Outcome)).Inc()
	slog.Info("round resolved",
		"round", roundID,
		"auction", auctionID,
		"outcome", resp.Outcome,
	)

	s.publishState(ctx, auctionID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) resolveRound(ctx context.Context, roundID string) (*ResolveResponse, string, error) {
	round, err := s.store.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, "", model.NotFoundf("round not found")
		}
		return nil, "", model.Internal("loading round", err)
	}

	// Accepting a result closes the round.
	if round.Status == model.RoundOpen {
		if err := s.store.CloseRound(ctx, round.ID, time.Now().UTC()); err != nil {
			return nil, "", model.Internal("closing round", err)
		}
	}

	top, err := s.store.TopBid(ctx, round.ID)
	if errors.Is(err, model.ErrNotFound) {
		// No bids: UNSOLD, no AuctionResult; the player can be
		// renominated in a future round.
		return &ResolveResponse{RoundID: round.ID, Outcome: "UNSOLD"}, round.AuctionID, nil
	}
	if err != nil {
		return nil, "", model.Internal("loading top bid", err)
	}

	res := &model.AuctionResult{
		AuctionID:        round.AuctionID,
		PlayerID:         round.PlayerID,
		TeamID:           top.TeamID,
		WinningBidAmount: top.Amount,
		AssignedAt:       time.Now().UTC(),
	}
	if err := s.store.InsertResult(ctx, res); err != nil {
		if errors.Is(err, model.ErrDuplicateResult) {
			return nil, "", model.InvalidStatef("player already sold")
		}
		return nil, "", model.Internal("recording result", err)
	}

	return &ResolveResponse{RoundID: round.ID, Outcome: "SOLD", Result: res}, round.AuctionID, nil
}

// --- Broadcast helpers ---

func (s *Service) publish(ctx context.Context, typ broadcast.EventType, auctionID string, payload any) {
	evt, err := broadcast.NewEvent(typ, auctionID, payload)
	if err == nil {
		err = s.bc.Publish(ctx, evt)
	}
	if err != nil {
		metrics.BroadcastErrors.Inc()
		slog.Error("broadcast failed", "type", typ, "auction", auctionID, "err", err)
	}
}

func (s *Service) publishState(ctx context.Context, auctionID string) {
	snap, err := s.BuildSnapshot(ctx, auctionID)
	if err != nil {
		metrics.BroadcastErrors.Inc()
		slog.Error("snapshot build failed", "auction", auctionID, "err", err)
		return
	}
	s.publish(ctx, broadcast.EventAuctionState, auctionID, snap)
}

func (s *Service) publishBidMap(ctx context.Context, auctionID, roundID string) {
	bids, err := s.store.ListBids(ctx, roundID)
	if err != nil {
		metrics.BroadcastErrors.Inc()
		slog.Error("bid map build failed", "round", roundID, "err", err)
		return
	}
	m := make(map[string]int64, len(bids))
	for _, b := range bids {
		m[b.TeamID] = b.Amount
	}
	s.publish(ctx, broadcast.EventAuctionBids, auctionID, bidMapPayload{RoundID: roundID, Bids: m})
}

// SnapshotEvent adapts BuildSnapshot to the hub's SnapshotFunc, so the
// pushed and pulled snapshots share one structure.
func (s *Service) SnapshotEvent(ctx context.Context, auctionID string) (broadcast.Event, error) {
	snap, err := s.BuildSnapshot(ctx, auctionID)
	if err != nil {
		return broadcast.Event{}, err
	}
	return broadcast.NewEvent(broadcast.EventAuctionState, auctionID, snap)
}

// --- HTTP plumbing ---

// writeError maps the error kind to an HTTP status and returns the
// bidder-facing message verbatim; the server never retries a bid on the
// caller's behalf.
func writeError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case model.KindNotFound:
		status = http.StatusNotFound
	case model.KindInvalidBid:
		status = http.StatusBadRequest
	case model.KindInvalidState:
		status = http.StatusConflict
	case model.KindUnauthorized:
		status = http.StatusForbidden
	}

	msg := err.Error()
	if kind == model.KindInternal {
		slog.Error("internal error", "err", err)
		msg = "internal error"
	}

	writeJSON(w, status, map[string]string{"error": msg, "kind": string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
