package engine

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/draftroom/auction-engine/internal/increment"
	"github.com/draftroom/auction-engine/internal/ledger"
	"github.com/draftroom/auction-engine/internal/model"
)

// The projector assembles bidder- and viewer-facing read models on demand
// from the ledger and the round state — never cached, so every view
// reflects the durable store at query time.

// SquadPlayer is one acquired player in a team's squad.
type SquadPlayer struct {
	PlayerID   string    `json:"player_id"`
	Name       string    `json:"name"`
	Price      int64     `json:"price"`
	AssignedAt time.Time `json:"assigned_at"`
}

// TeamSummary is the redacted per-team view safe for every client: name,
// acquired players, derived budget. It never carries a sealed in-flight
// bid.
type TeamSummary struct {
	TeamID          string        `json:"team_id"`
	Name            string        `json:"name"`
	Spent           int64         `json:"spent"`
	BudgetRemaining int64         `json:"budget_remaining"`
	AcquiredCount   int           `json:"acquired_count"`
	Squad           []SquadPlayer `json:"squad"`
}

// CurrentRound is the open round joined with its player and tier. The
// top bid is exposed only in open-outcry mode, where bidding is public.
type CurrentRound struct {
	Round         *model.Round  `json:"round"`
	Player        *model.Player `json:"player"`
	Tier          *model.Tier   `json:"tier"`
	CurrentBid    *int64        `json:"current_bid,omitempty"`
	CurrentBidder string        `json:"current_bidder,omitempty"`
	NextBid       *int64        `json:"next_bid,omitempty"`
}

// SoldRecord is one line of the sale history.
type SoldRecord struct {
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	TeamID     string    `json:"team_id"`
	TeamName   string    `json:"team_name"`
	Amount     int64     `json:"amount"`
	AssignedAt time.Time `json:"assigned_at"`
}

// AuctionSnapshot is the full viewer state: the auction-state event
// payload and the body of the snapshot query fallback. Both paths build
// this one structure, so a client cannot tell which served it.
type AuctionSnapshot struct {
	Auction      *model.Auction `json:"auction"`
	Queue        []model.Player `json:"queue"`
	CurrentIndex int            `json:"current_index"`
	CurrentRound *CurrentRound  `json:"current_round,omitempty"`
	Teams        []TeamSummary  `json:"teams"`
	History      []SoldRecord   `json:"history"`
}

// BidStatus reports where the requesting team's bid stands.
type BidStatus string

const (
	BidWinning   BidStatus = "WINNING"
	BidSubmitted BidStatus = "SUBMITTED"
)

// MyBid is the requesting team's own bid with its standing.
type MyBid struct {
	Bid    *model.Bid `json:"bid"`
	Status BidStatus  `json:"status"`
}

// Progress summarizes how far the auction has run.
type Progress struct {
	TotalPlayers int `json:"total_players"`
	Sold         int `json:"sold"`
	Unsold       int `json:"unsold"`
	Remaining    int `json:"remaining"`
}

// SessionView is the bidder-facing read model for GET /session/{id}.
type SessionView struct {
	Auction         *model.Auction `json:"auction"`
	Team            *model.Team    `json:"team"`
	CurrentRound    *CurrentRound  `json:"current_round,omitempty"`
	MyBid           *MyBid         `json:"my_bid,omitempty"`
	BudgetSummary   ledger.Summary `json:"budget_summary"`
	Squad           []SquadPlayer  `json:"squad"`
	AuctionProgress Progress       `json:"auction_progress"`
	AllTeamSquads   []TeamSummary  `json:"all_team_squads"`
}

// GetSession handles GET /api/v1/session/{sessionID}.
func (s *Service) GetSession(w http.ResponseWriter, r *http.Request) {
	sid, err := ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, model.NotFoundf("session not found"))
		return
	}

	view, err := s.buildSessionView(r.Context(), sid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetAuctionState handles GET /api/v1/auctions/{auctionID}/state — the
// request/response fallback for clients without a working channel.
func (s *Service) GetAuctionState(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "auctionID")

	snap, err := s.BuildSnapshot(r.Context(), auctionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// BuildSnapshot assembles the full auction-state view from the store.
func (s *Service) BuildSnapshot(ctx context.Context, auctionID string) (*AuctionSnapshot, error) {
	auction, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NotFoundf("auction not found")
		}
		return nil, model.Internal("loading auction", err)
	}

	players, err := s.store.ListPlayers(ctx, auctionID)
	if err != nil {
		return nil, model.Internal("loading players", err)
	}
	playerNames := make(map[string]string, len(players))
	for _, p := range players {
		playerNames[p.ID] = p.Name
	}

	teams, err := s.store.ListTeams(ctx, auctionID)
	if err != nil {
		return nil, model.Internal("loading teams", err)
	}
	teamNames := make(map[string]string, len(teams))
	for _, t := range teams {
		teamNames[t.ID] = t.Name
	}

	// Queue: the remaining auctionable pool, tier order.
	var queue []model.Player
	for _, p := range players {
		if p.Status != model.PlayerSold {
			queue = append(queue, p)
		}
	}

	current, err := s.currentRound(ctx, auction)
	if err != nil {
		return nil, err
	}

	currentIndex := -1
	if current != nil {
		for i, p := range queue {
			if p.ID == current.Round.PlayerID {
				currentIndex = i
				break
			}
		}
	}

	summaries := make([]TeamSummary, 0, len(teams))
	for i := range teams {
		sum, err := s.teamSummary(ctx, &teams[i], playerNames)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}

	results, err := s.store.ListResultsByAuction(ctx, auctionID)
	if err != nil {
		return nil, model.Internal("loading results", err)
	}
	history := make([]SoldRecord, 0, len(results))
	for _, r := range results {
		history = append(history, SoldRecord{
			PlayerID:   r.PlayerID,
			PlayerName: playerNames[r.PlayerID],
			TeamID:     r.TeamID,
			TeamName:   teamNames[r.TeamID],
			Amount:     r.WinningBidAmount,
			AssignedAt: r.AssignedAt,
		})
	}

	return &AuctionSnapshot{
		Auction:      auction,
		Queue:        queue,
		CurrentIndex: currentIndex,
		CurrentRound: current,
		Teams:        summaries,
		History:      history,
	}, nil
}

func (s *Service) buildSessionView(ctx context.Context, sid SessionID) (*SessionView, error) {
	team, err := s.store.GetTeam(ctx, sid.TeamID)
	if err != nil || team.AuctionID != sid.AuctionID {
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return nil, model.Internal("loading team", err)
		}
		return nil, model.NotFoundf("team not found")
	}
	auction, err := s.store.GetAuction(ctx, sid.AuctionID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NotFoundf("auction not found")
		}
		return nil, model.Internal("loading auction", err)
	}

	current, err := s.currentRound(ctx, auction)
	if err != nil {
		return nil, err
	}

	var myBid *MyBid
	if current != nil {
		bid, err := s.store.GetTeamBid(ctx, current.Round.ID, team.ID)
		switch {
		case err == nil:
			status := BidSubmitted
			if top, terr := s.store.TopBid(ctx, current.Round.ID); terr == nil && top.TeamID == team.ID {
				status = BidWinning
			}
			myBid = &MyBid{Bid: bid, Status: status}
		case errors.Is(err, model.ErrNotFound):
		default:
			return nil, model.Internal("loading bid", err)
		}
	}

	budget, err := s.ledger.Summary(ctx, auction, team)
	if err != nil {
		return nil, model.Internal("computing budget", err)
	}

	players, err := s.store.ListPlayers(ctx, sid.AuctionID)
	if err != nil {
		return nil, model.Internal("loading players", err)
	}
	playerNames := make(map[string]string, len(players))
	progress := Progress{TotalPlayers: len(players)}
	for _, p := range players {
		playerNames[p.ID] = p.Name
		switch p.Status {
		case model.PlayerSold:
			progress.Sold++
		case model.PlayerUnsold:
			progress.Unsold++
		default:
			progress.Remaining++
		}
	}

	squadSummary, err := s.teamSummary(ctx, team, playerNames)
	if err != nil {
		return nil, err
	}

	teams, err := s.store.ListTeams(ctx, sid.AuctionID)
	if err != nil {
		return nil, model.Internal("loading teams", err)
	}
	all := make([]TeamSummary, 0, len(teams))
	for i := range teams {
		sum, err := s.teamSummary(ctx, &teams[i], playerNames)
		if err != nil {
			return nil, err
		}
		all = append(all, sum)
	}

	return &SessionView{
		Auction:         auction,
		Team:            team,
		CurrentRound:    current,
		MyBid:           myBid,
		BudgetSummary:   budget,
		Squad:           squadSummary.Squad,
		AuctionProgress: progress,
		AllTeamSquads:   all,
	}, nil
}

// currentRound joins the open round (if any) with its player and tier.
// In sealed mode the top bid stays hidden; each team only ever sees its
// own bid through the session view.
func (s *Service) currentRound(ctx context.Context, auction *model.Auction) (*CurrentRound, error) {
	round, err := s.store.GetOpenRound(ctx, auction.ID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, model.Internal("loading open round", err)
	}

	player, err := s.store.GetPlayer(ctx, round.PlayerID)
	if err != nil {
		return nil, model.Internal("loading player", err)
	}
	tier, err := s.store.GetTier(ctx, round.TierID)
	if err != nil {
		return nil, model.Internal("loading tier", err)
	}

	current := &CurrentRound{Round: round, Player: player, Tier: tier}

	if auction.Mode == model.ModeOpenOutcry {
		brackets := auction.Brackets
		if len(brackets) == 0 {
			brackets = increment.DefaultBrackets()
		}
		next := tier.BasePrice
		top, err := s.store.TopBid(ctx, round.ID)
		switch {
		case err == nil:
			amount := top.Amount
			current.CurrentBid = &amount
			current.CurrentBidder = top.TeamID
			next = increment.NextBid(top.Amount, tier.BasePrice, brackets)
		case errors.Is(err, model.ErrNotFound):
		default:
			return nil, model.Internal("loading top bid", err)
		}
		current.NextBid = &next
	}

	return current, nil
}

// teamSummary folds a team's results into the redacted per-team view.
func (s *Service) teamSummary(ctx context.Context, team *model.Team, playerNames map[string]string) (TeamSummary, error) {
	results, err := s.store.ListResultsByTeam(ctx, team.ID)
	if err != nil {
		return TeamSummary{}, model.Internal("loading results", err)
	}
	spent, remaining, acquired := ledger.Fold(team.TotalBudget, results)

	squad := make([]SquadPlayer, 0, len(results))
	for _, r := range results {
		squad = append(squad, SquadPlayer{
			PlayerID:   r.PlayerID,
			Name:       playerNames[r.PlayerID],
			Price:      r.WinningBidAmount,
			AssignedAt: r.AssignedAt,
		})
	}

	return TeamSummary{
		TeamID:          team.ID,
		Name:            team.Name,
		Spent:           spent,
		BudgetRemaining: remaining,
		AcquiredCount:   acquired,
		Squad:           squad,
	}, nil
}
