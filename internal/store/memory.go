package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/draftroom/auction-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence). A single
// RWMutex stands in for the database's uniqueness constraints, so the
// same race outcomes hold: one open round per auction, one bid row per
// key, one result per player.
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[string]*model.Auction
	teams    map[string]*model.Team
	tiers    map[string]*model.Tier
	players  map[string]*model.Player
	rounds   map[string]*model.Round
	bids     []model.Bid
	results  []model.AuctionResult
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[string]*model.Auction),
		teams:    make(map[string]*model.Team),
		tiers:    make(map[string]*model.Tier),
		players:  make(map[string]*model.Player),
		rounds:   make(map[string]*model.Round),
	}
}

// --- Seeding (stands in for the external CRUD collaborator) ---

func (s *MemoryStore) PutAuction(a *model.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.auctions[a.ID] = &cp
}

func (s *MemoryStore) PutTeam(t *model.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.teams[t.ID] = &cp
}

func (s *MemoryStore) PutTier(t *model.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tiers[t.ID] = &cp
}

func (s *MemoryStore) PutPlayer(p *model.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.players[p.ID] = &cp
}

// --- Reference data ---

func (s *MemoryStore) GetAuction(_ context.Context, id string) (*model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) GetTeam(_ context.Context, id string) (*model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.teams[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListTeams(_ context.Context, auctionID string) ([]model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var teams []model.Team
	for _, t := range s.teams {
		if t.AuctionID == auctionID {
			teams = append(teams, *t)
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

func (s *MemoryStore) GetTier(_ context.Context, id string) (*model.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tiers[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) ListTiers(_ context.Context, auctionID string) ([]model.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tiers []model.Tier
	for _, t := range s.tiers {
		if t.AuctionID == auctionID {
			tiers = append(tiers, *t)
		}
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Rank < tiers[j].Rank })
	return tiers, nil
}

func (s *MemoryStore) GetPlayer(_ context.Context, id string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.players[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *p
	cp.Status = s.playerStatusLocked(p.AuctionID, p.ID)
	return &cp, nil
}

func (s *MemoryStore) ListPlayers(_ context.Context, auctionID string) ([]model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var players []model.Player
	for _, p := range s.players {
		if p.AuctionID != auctionID {
			continue
		}
		cp := *p
		cp.Status = s.playerStatusLocked(p.AuctionID, p.ID)
		players = append(players, cp)
	}
	sort.Slice(players, func(i, j int) bool {
		ri, rj := 0, 0
		if t, ok := s.tiers[players[i].TierID]; ok {
			ri = t.Rank
		}
		if t, ok := s.tiers[players[j].TierID]; ok {
			rj = t.Rank
		}
		if ri != rj {
			return ri < rj
		}
		return players[i].Name < players[j].Name
	})
	return players, nil
}

// playerStatusLocked derives the player's status: SOLD when a result
// exists, UNSOLD when the most recent round closed without one, else
// AVAILABLE. Caller holds at least the read lock.
func (s *MemoryStore) playerStatusLocked(auctionID, playerID string) model.PlayerStatus {
	for _, res := range s.results {
		if res.AuctionID == auctionID && res.PlayerID == playerID {
			return model.PlayerSold
		}
	}

	var latest *model.Round
	for _, r := range s.rounds {
		if r.AuctionID != auctionID || r.PlayerID != playerID {
			continue
		}
		if latest == nil || r.OpenedAt.After(latest.OpenedAt) {
			latest = r
		}
	}
	if latest != nil && latest.Status == model.RoundClosed {
		return model.PlayerUnsold
	}
	return model.PlayerAvailable
}

// --- Rounds ---

func (s *MemoryStore) CreateOpenRound(_ context.Context, round *model.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rounds {
		if r.AuctionID == round.AuctionID && r.Status == model.RoundOpen {
			return model.ErrRoundConflict
		}
	}
	cp := *round
	s.rounds[round.ID] = &cp
	return nil
}

func (s *MemoryStore) GetRound(_ context.Context, id string) (*model.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rounds[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) GetOpenRound(_ context.Context, auctionID string) (*model.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rounds {
		if r.AuctionID == auctionID && r.Status == model.RoundOpen {
			cp := *r
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *MemoryStore) FindOrCreateOpenRound(_ context.Context, round *model.Round) (*model.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reuse whichever open round won the race, matching player or not;
	// the engine validates player identity afterwards.
	for _, r := range s.rounds {
		if r.AuctionID == round.AuctionID && r.Status == model.RoundOpen {
			cp := *r
			return &cp, nil
		}
	}
	cp := *round
	s.rounds[round.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) CloseRound(_ context.Context, roundID string, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rounds[roundID]
	if !ok {
		return model.ErrNotFound
	}
	if r.Status == model.RoundClosed {
		return nil
	}
	r.Status = model.RoundClosed
	r.ClosedAt = &closedAt
	return nil
}

// --- Bids ---

func (s *MemoryStore) UpsertBid(_ context.Context, bid *model.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Resubmission replaces the row wholesale, id included, so the id
	// returned to the bidder always names the surviving row.
	for i, b := range s.bids {
		if b.RoundID == bid.RoundID && b.TeamID == bid.TeamID && b.PlayerID == bid.PlayerID {
			s.bids[i] = *bid
			return nil
		}
	}
	s.bids = append(s.bids, *bid)
	return nil
}

func (s *MemoryStore) AppendBid(_ context.Context, bid *model.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.bids {
		if b.RoundID == bid.RoundID && b.SequenceNumber == bid.SequenceNumber {
			return model.ErrSequenceConflict
		}
	}
	// One row per (round, team, player): a raise replaces the team's
	// prior bid, carrying the new id, amount and sequence number.
	for i, b := range s.bids {
		if b.RoundID == bid.RoundID && b.TeamID == bid.TeamID && b.PlayerID == bid.PlayerID {
			s.bids[i] = *bid
			return nil
		}
	}
	s.bids = append(s.bids, *bid)
	return nil
}

func (s *MemoryStore) GetTeamBid(_ context.Context, roundID, teamID string) (*model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.Bid
	for i := range s.bids {
		b := &s.bids[i]
		if b.RoundID != roundID || b.TeamID != teamID {
			continue
		}
		if latest == nil || b.SequenceNumber > latest.SequenceNumber {
			latest = b
		}
	}
	if latest == nil {
		return nil, model.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) ListBids(_ context.Context, roundID string) ([]model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bids []model.Bid
	for _, b := range s.bids {
		if b.RoundID == roundID {
			bids = append(bids, b)
		}
	}
	sort.Slice(bids, func(i, j int) bool {
		if bids[i].SequenceNumber != bids[j].SequenceNumber {
			return bids[i].SequenceNumber < bids[j].SequenceNumber
		}
		return bids[i].SubmittedAt.Before(bids[j].SubmittedAt)
	})
	return bids, nil
}

func (s *MemoryStore) TopBid(_ context.Context, roundID string) (*model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var top *model.Bid
	for i := range s.bids {
		b := &s.bids[i]
		if b.RoundID != roundID {
			continue
		}
		if top == nil ||
			b.Amount > top.Amount ||
			(b.Amount == top.Amount && b.SubmittedAt.Before(top.SubmittedAt)) {
			top = b
		}
	}
	if top == nil {
		return nil, model.ErrNotFound
	}
	cp := *top
	return &cp, nil
}

// --- Immutable results ---

func (s *MemoryStore) InsertResult(_ context.Context, res *model.AuctionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.results {
		if r.AuctionID == res.AuctionID && r.PlayerID == res.PlayerID {
			return model.ErrDuplicateResult
		}
	}
	s.results = append(s.results, *res)
	return nil
}

func (s *MemoryStore) ListResultsByAuction(_ context.Context, auctionID string) ([]model.AuctionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AuctionResult
	for _, r := range s.results {
		if r.AuctionID == auctionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

func (s *MemoryStore) ListResultsByTeam(_ context.Context, teamID string) ([]model.AuctionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AuctionResult
	for _, r := range s.results {
		if r.TeamID == teamID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

func (s *MemoryStore) GetResultForPlayer(_ context.Context, auctionID, playerID string) (*model.AuctionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.results {
		if r.AuctionID == auctionID && r.PlayerID == playerID {
			cp := r
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}
