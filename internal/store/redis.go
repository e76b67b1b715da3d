package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/draftroom/auction-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for reference data that every bid touches: auctions, tiers and
// teams, which are immutable once the auction is LIVE. Round, bid and
// result reads always pass through — the validator must see live truth,
// and the ledger must recompute from the results on every query.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{primary: primary, rdb: rdb, ttl: ttl}
}

// --- Read-through (reference data) ---

func (s *CachedStore) GetAuction(ctx context.Context, id string) (*model.Auction, error) {
	var a model.Auction
	if s.readCached(ctx, auctionKey(id), &a) {
		return &a, nil
	}
	got, err := s.primary.GetAuction(ctx, id)
	if err != nil {
		return nil, err
	}
	s.writeCached(ctx, auctionKey(id), got)
	return got, nil
}

func (s *CachedStore) GetTeam(ctx context.Context, id string) (*model.Team, error) {
	var t model.Team
	if s.readCached(ctx, teamKey(id), &t) {
		return &t, nil
	}
	got, err := s.primary.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	s.writeCached(ctx, teamKey(id), got)
	return got, nil
}

func (s *CachedStore) GetTier(ctx context.Context, id string) (*model.Tier, error) {
	var t model.Tier
	if s.readCached(ctx, tierKey(id), &t) {
		return &t, nil
	}
	got, err := s.primary.GetTier(ctx, id)
	if err != nil {
		return nil, err
	}
	s.writeCached(ctx, tierKey(id), got)
	return got, nil
}

func (s *CachedStore) ListTiers(ctx context.Context, auctionID string) ([]model.Tier, error) {
	var tiers []model.Tier
	if s.readCached(ctx, tiersKey(auctionID), &tiers) {
		return tiers, nil
	}
	got, err := s.primary.ListTiers(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	s.writeCached(ctx, tiersKey(auctionID), got)
	return got, nil
}

// --- Passthrough (live round/bid/result state, derived statuses) ---

func (s *CachedStore) ListTeams(ctx context.Context, auctionID string) ([]model.Team, error) {
	return s.primary.ListTeams(ctx, auctionID)
}

func (s *CachedStore) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	return s.primary.GetPlayer(ctx, id)
}

func (s *CachedStore) ListPlayers(ctx context.Context, auctionID string) ([]model.Player, error) {
	return s.primary.ListPlayers(ctx, auctionID)
}

func (s *CachedStore) CreateOpenRound(ctx context.Context, r *model.Round) error {
	return s.primary.CreateOpenRound(ctx, r)
}

func (s *CachedStore) GetRound(ctx context.Context, id string) (*model.Round, error) {
	return s.primary.GetRound(ctx, id)
}

func (s *CachedStore) GetOpenRound(ctx context.Context, auctionID string) (*model.Round, error) {
	return s.primary.GetOpenRound(ctx, auctionID)
}

func (s *CachedStore) FindOrCreateOpenRound(ctx context.Context, r *model.Round) (*model.Round, error) {
	return s.primary.FindOrCreateOpenRound(ctx, r)
}

func (s *CachedStore) CloseRound(ctx context.Context, roundID string, closedAt time.Time) error {
	return s.primary.CloseRound(ctx, roundID, closedAt)
}

func (s *CachedStore) UpsertBid(ctx context.Context, b *model.Bid) error {
	return s.primary.UpsertBid(ctx, b)
}

func (s *CachedStore) AppendBid(ctx context.Context, b *model.Bid) error {
	return s.primary.AppendBid(ctx, b)
}

func (s *CachedStore) GetTeamBid(ctx context.Context, roundID, teamID string) (*model.Bid, error) {
	return s.primary.GetTeamBid(ctx, roundID, teamID)
}

func (s *CachedStore) ListBids(ctx context.Context, roundID string) ([]model.Bid, error) {
	return s.primary.ListBids(ctx, roundID)
}

func (s *CachedStore) TopBid(ctx context.Context, roundID string) (*model.Bid, error) {
	return s.primary.TopBid(ctx, roundID)
}

func (s *CachedStore) InsertResult(ctx context.Context, r *model.AuctionResult) error {
	return s.primary.InsertResult(ctx, r)
}

func (s *CachedStore) ListResultsByAuction(ctx context.Context, auctionID string) ([]model.AuctionResult, error) {
	return s.primary.ListResultsByAuction(ctx, auctionID)
}

func (s *CachedStore) ListResultsByTeam(ctx context.Context, teamID string) ([]model.AuctionResult, error) {
	return s.primary.ListResultsByTeam(ctx, teamID)
}

func (s *CachedStore) GetResultForPlayer(ctx context.Context, auctionID, playerID string) (*model.AuctionResult, error) {
	return s.primary.GetResultForPlayer(ctx, auctionID, playerID)
}

// --- Cache helpers ---

// readCached returns true when the key was present and unmarshalled into v.
func (s *CachedStore) readCached(ctx context.Context, key string, v any) bool {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func (s *CachedStore) writeCached(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func auctionKey(id string) string { return fmt.Sprintf("auction:%s", id) }
func teamKey(id string) string    { return fmt.Sprintf("team:%s", id) }
func tierKey(id string) string    { return fmt.Sprintf("tier:%s", id) }
func tiersKey(id string) string   { return fmt.Sprintf("tiers:%s", id) }
