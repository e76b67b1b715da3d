package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/draftroom/auction-engine/internal/model"
	"github.com/draftroom/auction-engine/internal/store"
)

func TestFold(t *testing.T) {
	results := []model.AuctionResult{
		{WinningBidAmount: 150},
		{WinningBidAmount: 220},
		{WinningBidAmount: 80},
	}
	spent, remaining, acquired := Fold(1000, results)
	if spent != 450 {
		t.Errorf("spent = %d, want 450", spent)
	}
	if remaining != 550 {
		t.Errorf("remaining = %d, want 550", remaining)
	}
	if acquired != 3 {
		t.Errorf("acquired = %d, want 3", acquired)
	}
}

func TestFold_NoResults(t *testing.T) {
	spent, remaining, acquired := Fold(1000, nil)
	if spent != 0 || remaining != 1000 || acquired != 0 {
		t.Errorf("empty fold = (%d, %d, %d), want (0, 1000, 0)", spent, remaining, acquired)
	}
}

func TestReserve(t *testing.T) {
	// 4 teams, 40 auctionable players, 8 acquired, min base 50:
	// minSlotsToFill = floor(40/4) - 8 - 1 = 1, reserve = 50.
	if got := Reserve(40, 4, 8, 50); got != 50 {
		t.Errorf("Reserve = %d, want 50", got)
	}
}

func TestReserve_ClampsAtZero(t *testing.T) {
	// Squad already at or past target: no reserve required.
	if got := Reserve(40, 4, 10, 50); got != 0 {
		t.Errorf("Reserve past target = %d, want 0", got)
	}
	if got := Reserve(40, 4, 9, 50); got != 0 {
		t.Errorf("Reserve at last slot = %d, want 0", got)
	}
}

func TestReserve_ZeroTeams(t *testing.T) {
	if got := Reserve(40, 0, 0, 50); got != 0 {
		t.Errorf("Reserve with no teams = %d, want 0", got)
	}
}

func TestMaxBid(t *testing.T) {
	if got := MaxBid(300, 50); got != 250 {
		t.Errorf("MaxBid = %d, want 250", got)
	}
	if got := MaxBid(30, 50); got != 0 {
		t.Errorf("MaxBid below reserve = %d, want 0", got)
	}
}

// seedLedgerEnv builds the §8 maxAllowableBid scenario: 4 teams, 40
// auctionable players, lowest base price 50, the team holding 8 players
// with 300 budget units left.
func seedLedgerEnv(t *testing.T) (*store.MemoryStore, *model.Auction, *model.Team) {
	t.Helper()
	ms := store.NewMemoryStore()

	auction := &model.Auction{
		ID: "a1", Name: "test", Mode: model.ModeSealed,
		BudgetPerTeam: 1000, SquadSize: 10, Status: model.AuctionLive,
	}
	ms.PutAuction(auction)

	ms.PutTier(&model.Tier{ID: "t-low", AuctionID: "a1", Name: "Base", BasePrice: 50, Rank: 2})
	ms.PutTier(&model.Tier{ID: "t-high", AuctionID: "a1", Name: "Star", BasePrice: 200, Rank: 1})

	for i := 0; i < 4; i++ {
		ms.PutTeam(&model.Team{
			ID: fmt.Sprintf("team%d", i), AuctionID: "a1",
			Name: fmt.Sprintf("Team %d", i), TotalBudget: 1000,
		})
	}
	for i := 0; i < 40; i++ {
		ms.PutPlayer(&model.Player{
			ID: fmt.Sprintf("p%02d", i), AuctionID: "a1",
			TierID: "t-low", Name: fmt.Sprintf("Player %02d", i),
		})
	}

	// team0 has acquired 8 players for 700 total → 300 remaining.
	amounts := []int64{100, 100, 100, 100, 100, 50, 50, 100}
	for i, amt := range amounts {
		err := ms.InsertResult(context.Background(), &model.AuctionResult{
			AuctionID: "a1", PlayerID: fmt.Sprintf("p%02d", i),
			TeamID: "team0", WinningBidAmount: amt,
			AssignedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("seed result: %v", err)
		}
	}

	team, _ := ms.GetTeam(context.Background(), "team0")
	return ms, auction, team
}

func TestSummary_MaxAllowableBidScenario(t *testing.T) {
	ms, auction, team := seedLedgerEnv(t)

	sum, err := New(ms).Summary(context.Background(), auction, team)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sum.Spent != 700 {
		t.Errorf("spent = %d, want 700", sum.Spent)
	}
	if sum.BudgetRemaining != 300 {
		t.Errorf("remaining = %d, want 300", sum.BudgetRemaining)
	}
	if sum.AcquiredCount != 8 {
		t.Errorf("acquired = %d, want 8", sum.AcquiredCount)
	}
	// minSlotsToFill = floor(40/4) - 8 - 1 = 1; reserve = 1 × 50 = 50.
	if sum.MaxAllowableBid != 250 {
		t.Errorf("maxAllowableBid = %d, want 250", sum.MaxAllowableBid)
	}
}

func TestRemaining_RecomputedAfterEachResult(t *testing.T) {
	ms := store.NewMemoryStore()
	ms.PutTeam(&model.Team{ID: "team1", AuctionID: "a1", Name: "T", TotalBudget: 1000})
	team, _ := ms.GetTeam(context.Background(), "team1")
	l := New(ms)

	rem, err := l.Remaining(context.Background(), team)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rem != 1000 {
		t.Errorf("remaining = %d, want 1000", rem)
	}

	ms.InsertResult(context.Background(), &model.AuctionResult{
		AuctionID: "a1", PlayerID: "p1", TeamID: "team1",
		WinningBidAmount: 150, AssignedAt: time.Now().UTC(),
	})

	rem, _ = l.Remaining(context.Background(), team)
	if rem != 850 {
		t.Errorf("remaining after sale = %d, want 850", rem)
	}
}
