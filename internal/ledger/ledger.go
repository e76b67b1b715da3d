// Package ledger derives each team's spend, remaining budget and bid
// headroom from the append-only AuctionResult set. Nothing here is ever
// cached persistently: budgetRemaining is recomputed on every query, so a
// stored copy can never drift from the recorded sales.
//
// The read-mostly design needs no locking — AuctionResults are append-only
// and unique per player, and placing a bid alone never moves a budget.
package ledger

import (
	"context"

	"github.com/draftroom/auction-engine/internal/model"
	"github.com/draftroom/auction-engine/internal/store"
)

// Summary is a team's derived budget view.
type Summary struct {
	TeamID          string `json:"team_id"`
	TotalBudget     int64  `json:"total_budget"`
	Spent           int64  `json:"spent"`
	BudgetRemaining int64  `json:"budget_remaining"`
	AcquiredCount   int    `json:"acquired_count"`
	MaxAllowableBid int64  `json:"max_allowable_bid"`
}

// Ledger reads budget state through the store.
type Ledger struct {
	store store.Store
}

// New creates a Ledger over the given store.
func New(st store.Store) *Ledger {
	return &Ledger{store: st}
}

// Fold computes spend and acquisition count from a team's results.
func Fold(totalBudget int64, results []model.AuctionResult) (spent int64, remaining int64, acquired int) {
	for _, r := range results {
		spent += r.WinningBidAmount
	}
	return spent, totalBudget - spent, len(results)
}

// Reserve returns the budget a team must hold back to fill its mandatory
// remaining slots: minSlotsToFill × the cheapest tier base price, where
// minSlotsToFill = max(0, floor(auctionablePlayers/numTeams) − acquired − 1).
// One slot is left out of the reserve for the bid under consideration.
func Reserve(auctionablePlayers, numTeams, acquired int, minBasePrice int64) int64 {
	if numTeams <= 0 {
		return 0
	}
	minSlots := auctionablePlayers/numTeams - acquired - 1
	if minSlots < 0 {
		minSlots = 0
	}
	return int64(minSlots) * minBasePrice
}

// MaxBid is the largest single bid a team may place without jeopardizing
// its ability to fill the remaining mandatory slots.
func MaxBid(remaining, reserve int64) int64 {
	max := remaining - reserve
	if max < 0 {
		return 0
	}
	return max
}

// Summary assembles the full derived budget view for one team. It depends
// on global auction progress (player count, team count, cheapest tier), so
// it is recomputed on every call.
func (l *Ledger) Summary(ctx context.Context, auction *model.Auction, team *model.Team) (Summary, error) {
	results, err := l.store.ListResultsByTeam(ctx, team.ID)
	if err != nil {
		return Summary{}, err
	}
	spent, remaining, acquired := Fold(team.TotalBudget, results)

	players, err := l.store.ListPlayers(ctx, auction.ID)
	if err != nil {
		return Summary{}, err
	}
	teams, err := l.store.ListTeams(ctx, auction.ID)
	if err != nil {
		return Summary{}, err
	}
	tiers, err := l.store.ListTiers(ctx, auction.ID)
	if err != nil {
		return Summary{}, err
	}

	var minBase int64
	for i, t := range tiers {
		if i == 0 || t.BasePrice < minBase {
			minBase = t.BasePrice
		}
	}

	reserve := Reserve(len(players), len(teams), acquired, minBase)

	return Summary{
		TeamID:          team.ID,
		TotalBudget:     team.TotalBudget,
		Spent:           spent,
		BudgetRemaining: remaining,
		AcquiredCount:   acquired,
		MaxAllowableBid: MaxBid(remaining, reserve),
	}, nil
}

// Remaining returns just budgetRemaining for a team, computed fresh from
// the result set; bid validation reads this, never a cached field.
func (l *Ledger) Remaining(ctx context.Context, team *model.Team) (int64, error) {
	results, err := l.store.ListResultsByTeam(ctx, team.ID)
	if err != nil {
		return 0, err
	}
	_, remaining, _ := Fold(team.TotalBudget, results)
	return remaining, nil
}
