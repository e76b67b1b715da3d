// Package store defines the persistence interface for the auction engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"time"

	"github.com/draftroom/auction-engine/internal/model"
)

// Store is the persistence interface. All round and bid state is
// authoritative here — handlers hold no in-process round state, which is
// what lets the bid-acceptance path scale out horizontally.
//
// Auctions, teams, tiers and players are written by an external
// collaborator; the engine only reads them. Missing rows surface as
// model.ErrNotFound.
type Store interface {
	// --- Reference data (read-only for the engine) ---

	GetAuction(ctx context.Context, id string) (*model.Auction, error)
	GetTeam(ctx context.Context, id string) (*model.Team, error)
	ListTeams(ctx context.Context, auctionID string) ([]model.Team, error)
	GetTier(ctx context.Context, id string) (*model.Tier, error)
	ListTiers(ctx context.Context, auctionID string) ([]model.Tier, error)

	// GetPlayer returns the player with its derived status: SOLD when an
	// AuctionResult exists, UNSOLD when its latest round closed without
	// one, AVAILABLE otherwise.
	GetPlayer(ctx context.Context, id string) (*model.Player, error)

	// ListPlayers returns the auction's players, tier rank order, with
	// derived statuses.
	ListPlayers(ctx context.Context, auctionID string) ([]model.Player, error)

	// --- Rounds ---

	// CreateOpenRound persists a new OPEN round. Returns
	// model.ErrRoundConflict when the auction already has an open round.
	CreateOpenRound(ctx context.Context, round *model.Round) error

	GetRound(ctx context.Context, id string) (*model.Round, error)

	// GetOpenRound returns the auction's single OPEN round, or
	// model.ErrNotFound when none is open.
	GetOpenRound(ctx context.Context, auctionID string) (*model.Round, error)

	// FindOrCreateOpenRound atomically returns the auction's open round
	// for the given player, creating it when absent. Two concurrent calls
	// for the same missing round must converge on one row: the loser of
	// the insert race re-reads and reuses the winner's round.
	FindOrCreateOpenRound(ctx context.Context, round *model.Round) (*model.Round, error)

	// CloseRound transitions OPEN→CLOSED. Closing an already-closed
	// round is a no-op; the state is terminal.
	CloseRound(ctx context.Context, roundID string, closedAt time.Time) error

	// --- Bids ---

	// UpsertBid inserts or replaces the bid at (round, team, player).
	// Sealed mode: last writer wins, never two rows.
	UpsertBid(ctx context.Context, bid *model.Bid) error

	// AppendBid inserts an open-outcry raise carrying the caller's
	// expected SequenceNumber. Returns model.ErrSequenceConflict when
	// another raise claimed that number first.
	AppendBid(ctx context.Context, bid *model.Bid) error

	GetTeamBid(ctx context.Context, roundID, teamID string) (*model.Bid, error)
	ListBids(ctx context.Context, roundID string) ([]model.Bid, error)

	// TopBid returns the current highest bid: maximum amount, ties broken
	// by earliest submission. model.ErrNotFound when the round has none.
	TopBid(ctx context.Context, roundID string) (*model.Bid, error)

	// --- Immutable results ---

	// InsertResult appends the sale record. Returns
	// model.ErrDuplicateResult when the player already has one.
	InsertResult(ctx context.Context, res *model.AuctionResult) error

	ListResultsByAuction(ctx context.Context, auctionID string) ([]model.AuctionResult, error)
	ListResultsByTeam(ctx context.Context, teamID string) ([]model.AuctionResult, error)
	GetResultForPlayer(ctx context.Context, auctionID, playerID string) (*model.AuctionResult, error)
}
