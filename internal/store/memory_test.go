package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/draftroom/auction-engine/internal/model"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	ms := NewMemoryStore()
	ms.PutAuction(&model.Auction{ID: "auc1", Mode: model.ModeSealed, Status: model.AuctionLive})
	ms.PutTier(&model.Tier{ID: "tier1", AuctionID: "auc1", BasePrice: 100, Rank: 1})
	ms.PutPlayer(&model.Player{ID: "p1", AuctionID: "auc1", TierID: "tier1", Name: "Alpha"})
	return ms
}

func openRound(id, playerID string) *model.Round {
	return &model.Round{
		ID:        id,
		AuctionID: "auc1",
		PlayerID:  playerID,
		TierID:    "tier1",
		Status:    model.RoundOpen,
		OpenedAt:  time.Now().UTC(),
	}
}

func TestCreateOpenRound_Conflict(t *testing.T) {
	ms := seedStore(t)
	ctx := context.Background()

	if err := ms.CreateOpenRound(ctx, openRound("r1", "p1")); err != nil {
		t.Fatalf("first round: %v", err)
	}
	if err := ms.CreateOpenRound(ctx, openRound("r2", "p1")); !errors.Is(err, model.ErrRoundConflict) {
		t.Fatalf("expected ErrRoundConflict, got %v", err)
	}

	// A closed round frees the slot.
	if err := ms.CloseRound(ctx, "r1", time.Now().UTC()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := ms.CreateOpenRound(ctx, openRound("r2", "p1")); err != nil {
		t.Fatalf("round after close: %v", err)
	}
}

func TestFindOrCreateOpenRound_Converges(t *testing.T) {
	ms := seedStore(t)
	ctx := context.Background()

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := ms.FindOrCreateOpenRound(ctx, openRound(uuid.New().String(), "p1"))
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			ids[i] = r.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("workers diverged on rounds: %q vs %q", ids[0], ids[i])
		}
	}
}

func TestAppendBid_SequenceConflict(t *testing.T) {
	ms := seedStore(t)
	ctx := context.Background()
	ms.CreateOpenRound(ctx, openRound("r1", "p1"))

	first := &model.Bid{
		ID: "b1", RoundID: "r1", TeamID: "team1", PlayerID: "p1",
		Amount: 100, SubmittedAt: time.Now().UTC(), SequenceNumber: 1,
	}
	if err := ms.AppendBid(ctx, first); err != nil {
		t.Fatalf("first append: %v", err)
	}

	// Same sequence from another team loses the race.
	racer := &model.Bid{
		ID: "b2", RoundID: "r1", TeamID: "team2", PlayerID: "p1",
		Amount: 100, SubmittedAt: time.Now().UTC(), SequenceNumber: 1,
	}
	if err := ms.AppendBid(ctx, racer); !errors.Is(err, model.ErrSequenceConflict) {
		t.Fatalf("expected ErrSequenceConflict, got %v", err)
	}

	// A raise by the same team replaces its row rather than adding one.
	raise := &model.Bid{
		ID: "b3", RoundID: "r1", TeamID: "team1", PlayerID: "p1",
		Amount: 110, SubmittedAt: time.Now().UTC(), SequenceNumber: 2,
	}
	if err := ms.AppendBid(ctx, raise); err != nil {
		t.Fatalf("raise: %v", err)
	}
	bids, _ := ms.ListBids(ctx, "r1")
	if len(bids) != 1 || bids[0].Amount != 110 || bids[0].ID != "b3" {
		t.Errorf("expected one row carrying the raise's id, got %+v", bids)
	}
}

func TestInsertResult_DuplicateRejected(t *testing.T) {
	ms := seedStore(t)
	ctx := context.Background()

	res := &model.AuctionResult{
		AuctionID: "auc1", PlayerID: "p1", TeamID: "team1",
		WinningBidAmount: 200, AssignedAt: time.Now().UTC(),
	}
	if err := ms.InsertResult(ctx, res); err != nil {
		t.Fatalf("insert: %v", err)
	}

	dup := &model.AuctionResult{
		AuctionID: "auc1", PlayerID: "p1", TeamID: "team2",
		WinningBidAmount: 300, AssignedAt: time.Now().UTC(),
	}
	if err := ms.InsertResult(ctx, dup); !errors.Is(err, model.ErrDuplicateResult) {
		t.Fatalf("expected ErrDuplicateResult, got %v", err)
	}
}

func TestPlayerStatus_Derived(t *testing.T) {
	ms := seedStore(t)
	ctx := context.Background()

	p, _ := ms.GetPlayer(ctx, "p1")
	if p.Status != model.PlayerAvailable {
		t.Fatalf("fresh player should be AVAILABLE, got %s", p.Status)
	}

	ms.CreateOpenRound(ctx, openRound("r1", "p1"))
	p, _ = ms.GetPlayer(ctx, "p1")
	if p.Status != model.PlayerAvailable {
		t.Fatalf("open round keeps the player AVAILABLE, got %s", p.Status)
	}

	ms.CloseRound(ctx, "r1", time.Now().UTC())
	p, _ = ms.GetPlayer(ctx, "p1")
	if p.Status != model.PlayerUnsold {
		t.Fatalf("closed round without a sale means UNSOLD, got %s", p.Status)
	}

	// Renomination: a newer open round supersedes the closed one.
	r2 := openRound("r2", "p1")
	r2.OpenedAt = time.Now().UTC().Add(time.Second)
	ms.CreateOpenRound(ctx, r2)
	p, _ = ms.GetPlayer(ctx, "p1")
	if p.Status != model.PlayerAvailable {
		t.Fatalf("renominated player should be AVAILABLE, got %s", p.Status)
	}

	ms.InsertResult(ctx, &model.AuctionResult{
		AuctionID: "auc1", PlayerID: "p1", TeamID: "team1",
		WinningBidAmount: 200, AssignedAt: time.Now().UTC(),
	})
	p, _ = ms.GetPlayer(ctx, "p1")
	if p.Status != model.PlayerSold {
		t.Fatalf("result means SOLD, got %s", p.Status)
	}
}

func TestTopBid_TieGoesToEarliest(t *testing.T) {
	ms := seedStore(t)
	ctx := context.Background()
	ms.CreateOpenRound(ctx, openRound("r1", "p1"))

	now := time.Now().UTC()
	ms.UpsertBid(ctx, &model.Bid{ID: "b1", RoundID: "r1", TeamID: "team2", PlayerID: "p1", Amount: 200, SubmittedAt: now})
	ms.UpsertBid(ctx, &model.Bid{ID: "b2", RoundID: "r1", TeamID: "team1", PlayerID: "p1", Amount: 200, SubmittedAt: now.Add(time.Second)})

	top, err := ms.TopBid(ctx, "r1")
	if err != nil {
		t.Fatalf("TopBid: %v", err)
	}
	if top.TeamID != "team2" {
		t.Errorf("tie should go to the earliest submission, got %s", top.TeamID)
	}
}
