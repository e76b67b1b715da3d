package engine_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/draftroom/auction-engine/internal/engine"
	"github.com/draftroom/auction-engine/internal/model"
)

func TestGetSession_SealedRedaction(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAuction(t, ms, model.ModeSealed)
	seedRound(t, ms)

	doBid(t, router, "auc1_team1", engine.BidRequest{RoundID: "round1", PlayerID: "p1", Amount: 150})
	doBid(t, router, "auc1_team2", engine.BidRequest{RoundID: "round1", PlayerID: "p1", Amount: 200})

	view := sessionView(t, router, "auc1_team1")

	if view.CurrentRound == nil {
		t.Fatal("expected a current round")
	}
	// Sealed mode: no top bid or next-bid hint for anyone.
	if view.CurrentRound.CurrentBid != nil || view.CurrentRound.NextBid != nil {
		t.Error("sealed round must not expose bid amounts")
	}
	if view.CurrentRound.CurrentBidder != "" {
		t.Error("sealed round must not expose the leading team")
	}

	// The team still sees its own bid, marked SUBMITTED since team2
	// leads.
	if view.MyBid == nil {
		t.Fatal("expected my_bid for a team that has bid")
	}
	if view.MyBid.Status != engine.BidSubmitted {
		t.Errorf("expected SUBMITTED, got %s", view.MyBid.Status)
	}
	if view.MyBid.Bid.Amount != 150 {
		t.Errorf("expected own amount 150, got %d", view.MyBid.Bid.Amount)
	}

	// Other teams' summaries carry no in-flight bids either.
	for _, ts := range view.AllTeamSquads {
		if ts.Spent != 0 {
			t.Errorf("no sale yet, team %s shows spent %d", ts.TeamID, ts.Spent)
		}
	}

	leader := sessionView(t, router, "auc1_team2")
	if leader.MyBid == nil || leader.MyBid.Status != engine.BidWinning {
		t.Errorf("highest sealed bidder should see WINNING, got %+v", leader.MyBid)
	}
}

func TestGetSession_OutcryExposesTopBid(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAuction(t, ms, model.ModeOpenOutcry)
	seedRound(t, ms)

	doBid(t, router, "auc1_team1", engine.BidRequest{RoundID: "round1", PlayerID: "p1", Amount: 100})

	view := sessionView(t, router, "auc1_team2")

	if view.CurrentRound == nil {
		t.Fatal("expected a current round")
	}
	if view.CurrentRound.CurrentBid == nil || *view.CurrentRound.CurrentBid != 100 {
		t.Fatalf("expected public top bid 100, got %v", view.CurrentRound.CurrentBid)
	}
	if view.CurrentRound.CurrentBidder != "team1" {
		t.Errorf("expected team1 leading, got %q", view.CurrentRound.CurrentBidder)
	}
	// Base 100 at 1x: the published legal next raise is 110.
	if view.CurrentRound.NextBid == nil || *view.CurrentRound.NextBid != 110 {
		t.Fatalf("expected next bid 110, got %v", view.CurrentRound.NextBid)
	}
}

func TestGetSession_OutcryNoBidsShowsBaseAsNext(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAuction(t, ms, model.ModeOpenOutcry)
	seedRound(t, ms)

	view := sessionView(t, router, "auc1_team1")

	if view.CurrentRound.CurrentBid != nil {
		t.Error("no bids yet, current_bid should be absent")
	}
	if view.CurrentRound.NextBid == nil || *view.CurrentRound.NextBid != 100 {
		t.Fatalf("opening bid hint should be the base price, got %v", view.CurrentRound.NextBid)
	}
	if view.MyBid != nil {
		t.Error("no bid submitted, my_bid should be absent")
	}
}

func TestGetSession_Progress(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAuction(t, ms, model.ModeSealed)
	ms.InsertResult(context.Background(), &model.AuctionResult{
		AuctionID: "auc1", PlayerID: "p1", TeamID: "team1",
		WinningBidAmount: 300, AssignedAt: time.Now().UTC(),
	})

	view := sessionView(t, router, "auc1_team1")

	want := engine.Progress{TotalPlayers: 2, Sold: 1, Remaining: 1}
	if view.AuctionProgress != want {
		t.Errorf("progress = %+v, want %+v", view.AuctionProgress, want)
	}
	if len(view.Squad) != 1 || view.Squad[0].PlayerID != "p1" {
		t.Errorf("unexpected squad: %+v", view.Squad)
	}
	if view.Squad[0].Name != "Alpha Striker" {
		t.Errorf("squad entry should resolve the player name, got %q", view.Squad[0].Name)
	}
}

func TestGetAuctionState_QueueAndHistory(t *testing.T) {
	_, ms, router := newTestEnv(t)
	seedAuction(t, ms, model.ModeSealed)
	ms.InsertResult(context.Background(), &model.AuctionResult{
		AuctionID: "auc1", PlayerID: "p1", TeamID: "team2",
		WinningBidAmount: 250, AssignedAt: time.Now().UTC(),
	})

	req := httptest.NewRequest("GET", "/api/v1/auctions/auc1/state", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var snap engine.AuctionSnapshot
	json.Unmarshal(w.Body.Bytes(), &snap)

	// Sold players leave the queue.
	if len(snap.Queue) != 1 || snap.Queue[0].ID != "p2" {
		t.Errorf("unexpected queue: %+v", snap.Queue)
	}
	if len(snap.History) != 1 {
		t.Fatalf("expected one sale in history, got %d", len(snap.History))
	}
	h := snap.History[0]
	if h.PlayerName != "Alpha Striker" || h.TeamName != "Team Two" || h.Amount != 250 {
		t.Errorf("unexpected history record: %+v", h)
	}

	for _, ts := range snap.Teams {
		if ts.TeamID == "team2" {
			if ts.Spent != 250 || ts.BudgetRemaining != 750 || ts.AcquiredCount != 1 {
				t.Errorf("unexpected buyer summary: %+v", ts)
			}
		}
	}
}

func TestGetAuctionState_UnknownAuction(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/v1/auctions/nope/state", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != 404 {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

// The pushed auction-state event and the pulled snapshot must be the
// same structure: a client cannot tell which path served it.
func TestSnapshotEvent_MatchesPulledState(t *testing.T) {
	svc, ms, router := newTestEnv(t)
	seedAuction(t, ms, model.ModeOpenOutcry)
	seedRound(t, ms)
	doBid(t, router, "auc1_team1", engine.BidRequest{RoundID: "round1", PlayerID: "p1", Amount: 100})

	evt, err := svc.SnapshotEvent(context.Background(), "auc1")
	if err != nil {
		t.Fatalf("SnapshotEvent: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/auctions/auc1/state", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var pushed, pulled map[string]any
	if err := json.Unmarshal(evt.Payload, &pushed); err != nil {
		t.Fatalf("decoding event payload: %v", err)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &pulled); err != nil {
		t.Fatalf("decoding pulled state: %v", err)
	}

	if !reflect.DeepEqual(pushed, pulled) {
		t.Errorf("push and pull snapshots diverge:\npush: %v\npull: %v", pushed, pulled)
	}
}
