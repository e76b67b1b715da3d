// Package model defines the core domain types shared across the auction
// engine. All budget amounts are opaque integer "budget units" — int64
// end to end, never floats.
package model

import "time"

// AuctionStatus is the lifecycle status of an auction.
type AuctionStatus string

const (
	AuctionDraft     AuctionStatus = "DRAFT"
	AuctionLobby     AuctionStatus = "LOBBY"
	AuctionLive      AuctionStatus = "LIVE"
	AuctionCompleted AuctionStatus = "COMPLETED"
	AuctionArchived  AuctionStatus = "ARCHIVED"
)

// BidMode selects how bids in a round are collected and compared.
type BidMode string

const (
	// ModeSealed collects one final bid per team per round, compared in
	// secret at close time. Resubmitting replaces the prior bid.
	ModeSealed BidMode = "SEALED"

	// ModeOpenOutcry raises bids live in public; each raise must match
	// the increment policy and gets the next sequence number.
	ModeOpenOutcry BidMode = "OPEN_OUTCRY"
)

// RoundStatus is the lifecycle status of a bidding round. CLOSED is
// terminal — a re-auction of an unsold player creates a new round.
type RoundStatus string

const (
	RoundOpen   RoundStatus = "OPEN"
	RoundClosed RoundStatus = "CLOSED"
)

// PlayerStatus is derived from the result set and round history, never
// written directly.
type PlayerStatus string

const (
	PlayerAvailable PlayerStatus = "AVAILABLE"
	PlayerSold      PlayerStatus = "SOLD"
	PlayerUnsold    PlayerStatus = "UNSOLD"
)

// Auction identifies a shared per-team budget, a squad-size target, and a
// bidding mode. Immutable once LIVE except for status transitions.
type Auction struct {
	ID            string             `json:"id" db:"id"`
	Name          string             `json:"name" db:"name"`
	Mode          BidMode            `json:"mode" db:"mode"`
	BudgetPerTeam int64              `json:"budget_per_team" db:"budget_per_team"`
	SquadSize     int                `json:"squad_size" db:"squad_size"`
	Currency      string             `json:"currency" db:"currency"`
	Status        AuctionStatus      `json:"status" db:"status"`
	Brackets      []IncrementBracket `json:"increment_brackets,omitempty" db:"increment_brackets"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
}

// IncrementBracket maps a multiplier range (currentBid / basePrice) to the
// legal raise increment in open-outcry mode. ToMultiplier = 0 means the
// bracket is open-ended.
type IncrementBracket struct {
	FromMultiplier float64 `json:"from_multiplier"`
	ToMultiplier   float64 `json:"to_multiplier"`
	Increment      int64   `json:"increment"`
}

// Tier is an ordered class of players sharing a minimum legal bid.
type Tier struct {
	ID        string `json:"id" db:"id"`
	AuctionID string `json:"auction_id" db:"auction_id"`
	Name      string `json:"name" db:"name"`
	BasePrice int64  `json:"base_price" db:"base_price"`
	Rank      int    `json:"rank" db:"rank"`
	Color     string `json:"color,omitempty" db:"color"`
}

// Player belongs to one auction and one tier. Status is projected from
// the result set and round history; the round engine never mutates it.
type Player struct {
	ID        string       `json:"id" db:"id"`
	AuctionID string       `json:"auction_id" db:"auction_id"`
	TierID    string       `json:"tier_id" db:"tier_id"`
	Name      string       `json:"name" db:"name"`
	Position  string       `json:"position,omitempty" db:"position"`
	Status    PlayerStatus `json:"status"`
}

// Team belongs to one auction. Spent and remaining budget are derived from
// AuctionResults on every query — deliberately not fields here, so a stored
// copy can never drift from the ledger.
type Team struct {
	ID          string `json:"id" db:"id"`
	AuctionID   string `json:"auction_id" db:"auction_id"`
	Name        string `json:"name" db:"name"`
	TotalBudget int64  `json:"total_budget" db:"total_budget"`
}

// Round is the bidding window for exactly one player. A non-nil future
// ClosedAt acts as the deadline; nil means manual close, open indefinitely.
type Round struct {
	ID           string      `json:"id" db:"id"`
	AuctionID    string      `json:"auction_id" db:"auction_id"`
	PlayerID     string      `json:"player_id" db:"player_id"`
	TierID       string      `json:"tier_id" db:"tier_id"`
	Status       RoundStatus `json:"status" db:"status"`
	OpenedAt     time.Time   `json:"opened_at" db:"opened_at"`
	ClosedAt     *time.Time  `json:"closed_at,omitempty" db:"closed_at"`
	TimerSeconds int         `json:"timer_seconds" db:"timer_seconds"`
}

// Expired reports whether the round's bidding window has passed at t.
// A round with no ClosedAt never expires.
func (r *Round) Expired(t time.Time) bool {
	return r.ClosedAt != nil && t.After(*r.ClosedAt)
}

// Bid is keyed by (round, team, player). Sealed mode upserts on that key;
// open-outcry appends with a strictly increasing SequenceNumber per round.
type Bid struct {
	ID             string    `json:"id" db:"id"`
	RoundID        string    `json:"round_id" db:"round_id"`
	TeamID         string    `json:"team_id" db:"team_id"`
	PlayerID       string    `json:"player_id" db:"player_id"`
	Amount         int64     `json:"amount" db:"amount"`
	SubmittedAt    time.Time `json:"submitted_at" db:"submitted_at"`
	SequenceNumber int64     `json:"sequence_number,omitempty" db:"sequence_number"`
}

// AuctionResult is the immutable record of a player's final sale, created
// exactly once when a round resolves to SOLD. The budget ledger folds over
// these; they are never mutated or duplicated for the same player.
type AuctionResult struct {
	AuctionID        string    `json:"auction_id" db:"auction_id"`
	PlayerID         string    `json:"player_id" db:"player_id"`
	TeamID           string    `json:"team_id" db:"team_id"`
	WinningBidAmount int64     `json:"winning_bid_amount" db:"winning_bid_amount"`
	AssignedAt       time.Time `json:"assigned_at" db:"assigned_at"`
}
