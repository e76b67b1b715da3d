package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftroom/auction-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Serialization of concurrent bids rests on three constraints the schema
// must carry:
//
//	UNIQUE (round_id, team_id, player_id)            ON bids
//	UNIQUE (round_id, sequence_number)               ON bids
//	UNIQUE (auction_id) WHERE status = 'OPEN'        ON rounds (partial)
//	PRIMARY KEY (auction_id, player_id)              ON auction_results
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique-constraint violation,
// optionally on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// --- Reference data ---

func (s *PostgresStore) GetAuction(ctx context.Context, id string) (*model.Auction, error) {
	var a model.Auction
	var brackets []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, mode, budget_per_team, squad_size, currency, status,
		        COALESCE(increment_brackets, '[]'::jsonb), created_at
		 FROM auctions WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.Mode, &a.BudgetPerTeam, &a.SquadSize,
			&a.Currency, &a.Status, &brackets, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get auction %s: %w", id, err)
	}

	if err := json.Unmarshal(brackets, &a.Brackets); err != nil {
		return nil, fmt.Errorf("postgres: auction %s brackets: %w", id, err)
	}
	return &a, nil
}

func (s *PostgresStore) GetTeam(ctx context.Context, id string) (*model.Team, error) {
	var t model.Team
	err := s.pool.QueryRow(ctx,
		`SELECT id, auction_id, name, total_budget FROM teams WHERE id = $1`, id).
		Scan(&t.ID, &t.AuctionID, &t.Name, &t.TotalBudget)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get team %s: %w", id, err)
	}
	return &t, nil
}

func (s *PostgresStore) ListTeams(ctx context.Context, auctionID string) ([]model.Team, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, auction_id, name, total_budget
		 FROM teams WHERE auction_id = $1 ORDER BY name`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list teams: %w", err)
	}
	defer rows.Close()

	var teams []model.Team
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.AuctionID, &t.Name, &t.TotalBudget); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (s *PostgresStore) GetTier(ctx context.Context, id string) (*model.Tier, error) {
	var t model.Tier
	err := s.pool.QueryRow(ctx,
		`SELECT id, auction_id, name, base_price, rank, COALESCE(color, '')
		 FROM tiers WHERE id = $1`, id).
		Scan(&t.ID, &t.AuctionID, &t.Name, &t.BasePrice, &t.Rank, &t.Color)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get tier %s: %w", id, err)
	}
	return &t, nil
}

func (s *PostgresStore) ListTiers(ctx context.Context, auctionID string) ([]model.Tier, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, auction_id, name, base_price, rank, COALESCE(color, '')
		 FROM tiers WHERE auction_id = $1 ORDER BY rank`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tiers: %w", err)
	}
	defer rows.Close()

	var tiers []model.Tier
	for rows.Next() {
		var t model.Tier
		if err := rows.Scan(&t.ID, &t.AuctionID, &t.Name, &t.BasePrice, &t.Rank, &t.Color); err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// playerStatusExpr derives the player's status in SQL so reads stay
// consistent with the append-only result set.
const playerStatusExpr = `
	CASE
		WHEN EXISTS (
			SELECT 1 FROM auction_results ar
			WHERE ar.auction_id = p.auction_id AND ar.player_id = p.id
		) THEN 'SOLD'
		WHEN (
			SELECT r.status FROM rounds r
			WHERE r.auction_id = p.auction_id AND r.player_id = p.id
			ORDER BY r.opened_at DESC LIMIT 1
		) = 'CLOSED' THEN 'UNSOLD'
		ELSE 'AVAILABLE'
	END`

func (s *PostgresStore) GetPlayer(ctx context.Context, id string) (*model.Player, error) {
	var p model.Player
	err := s.pool.QueryRow(ctx,
		`SELECT p.id, p.auction_id, p.tier_id, p.name, COALESCE(p.position, ''), `+playerStatusExpr+`
		 FROM players p WHERE p.id = $1`, id).
		Scan(&p.ID, &p.AuctionID, &p.TierID, &p.Name, &p.Position, &p.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get player %s: %w", id, err)
	}
	return &p, nil
}

func (s *PostgresStore) ListPlayers(ctx context.Context, auctionID string) ([]model.Player, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.auction_id, p.tier_id, p.name, COALESCE(p.position, ''), `+playerStatusExpr+`
		 FROM players p
		 JOIN tiers t ON t.id = p.tier_id
		 WHERE p.auction_id = $1
		 ORDER BY t.rank, p.name`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list players: %w", err)
	}
	defer rows.Close()

	var players []model.Player
	for rows.Next() {
		var p model.Player
		if err := rows.Scan(&p.ID, &p.AuctionID, &p.TierID, &p.Name, &p.Position, &p.Status); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// --- Rounds ---

const insertRoundSQL = `
	INSERT INTO rounds (id, auction_id, player_id, tier_id, status, opened_at, closed_at, timer_seconds)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (auction_id) WHERE status = 'OPEN' DO NOTHING`

func (s *PostgresStore) CreateOpenRound(ctx context.Context, r *model.Round) error {
	tag, err := s.pool.Exec(ctx, insertRoundSQL,
		r.ID, r.AuctionID, r.PlayerID, r.TierID, r.Status,
		r.OpenedAt, r.ClosedAt, r.TimerSeconds)
	if err != nil {
		return fmt.Errorf("postgres: create round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrRoundConflict
	}
	return nil
}

func (s *PostgresStore) GetRound(ctx context.Context, id string) (*model.Round, error) {
	r, err := s.scanRound(s.pool.QueryRow(ctx,
		`SELECT id, auction_id, player_id, tier_id, status, opened_at, closed_at, timer_seconds
		 FROM rounds WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get round %s: %w", id, err)
	}
	return r, nil
}

func (s *PostgresStore) GetOpenRound(ctx context.Context, auctionID string) (*model.Round, error) {
	r, err := s.scanRound(s.pool.QueryRow(ctx,
		`SELECT id, auction_id, player_id, tier_id, status, opened_at, closed_at, timer_seconds
		 FROM rounds WHERE auction_id = $1 AND status = 'OPEN'`, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: open round for %s: %w", auctionID, err)
	}
	return r, nil
}

// FindOrCreateOpenRound inserts an OPEN round, deferring to whichever
// round won the partial-unique-index race. On conflict it retries exactly
// once by re-reading the winner instead of erroring.
func (s *PostgresStore) FindOrCreateOpenRound(ctx context.Context, r *model.Round) (*model.Round, error) {
	tag, err := s.pool.Exec(ctx, insertRoundSQL,
		r.ID, r.AuctionID, r.PlayerID, r.TierID, r.Status,
		r.OpenedAt, r.ClosedAt, r.TimerSeconds)
	if err != nil {
		return nil, fmt.Errorf("postgres: find-or-create round: %w", err)
	}
	if tag.RowsAffected() == 1 {
		cp := *r
		return &cp, nil
	}
	return s.GetOpenRound(ctx, r.AuctionID)
}

func (s *PostgresStore) CloseRound(ctx context.Context, roundID string, closedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE rounds SET status = 'CLOSED', closed_at = $2
		 WHERE id = $1 AND status = 'OPEN'`, roundID, closedAt)
	if err != nil {
		return fmt.Errorf("postgres: close round %s: %w", roundID, err)
	}
	if tag.RowsAffected() == 0 {
		// Already closed or absent; check which.
		if _, err := s.GetRound(ctx, roundID); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) scanRound(row pgx.Row) (*model.Round, error) {
	var r model.Round
	if err := row.Scan(&r.ID, &r.AuctionID, &r.PlayerID, &r.TierID,
		&r.Status, &r.OpenedAt, &r.ClosedAt, &r.TimerSeconds); err != nil {
		return nil, err
	}
	return &r, nil
}

// --- Bids ---

func (s *PostgresStore) UpsertBid(ctx context.Context, b *model.Bid) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bids (id, round_id, team_id, player_id, amount, submitted_at, sequence_number)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (round_id, team_id, player_id)
		 DO UPDATE SET id = EXCLUDED.id,
		               amount = EXCLUDED.amount,
		               submitted_at = EXCLUDED.submitted_at`,
		b.ID, b.RoundID, b.TeamID, b.PlayerID, b.Amount, b.SubmittedAt, b.SequenceNumber)
	if err != nil {
		return fmt.Errorf("postgres: upsert bid: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendBid(ctx context.Context, b *model.Bid) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bids (id, round_id, team_id, player_id, amount, submitted_at, sequence_number)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (round_id, team_id, player_id)
		 DO UPDATE SET id = EXCLUDED.id,
		               amount = EXCLUDED.amount,
		               submitted_at = EXCLUDED.submitted_at,
		               sequence_number = EXCLUDED.sequence_number`,
		b.ID, b.RoundID, b.TeamID, b.PlayerID, b.Amount, b.SubmittedAt, b.SequenceNumber)
	if err != nil {
		if isUniqueViolation(err, "ux_bids_round_seq") {
			return model.ErrSequenceConflict
		}
		return fmt.Errorf("postgres: append bid: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTeamBid(ctx context.Context, roundID, teamID string) (*model.Bid, error) {
	b, err := s.scanBid(s.pool.QueryRow(ctx,
		`SELECT id, round_id, team_id, player_id, amount, submitted_at, sequence_number
		 FROM bids WHERE round_id = $1 AND team_id = $2`, roundID, teamID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: team bid: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListBids(ctx context.Context, roundID string) ([]model.Bid, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, round_id, team_id, player_id, amount, submitted_at, sequence_number
		 FROM bids WHERE round_id = $1
		 ORDER BY sequence_number, submitted_at`, roundID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids: %w", err)
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.ID, &b.RoundID, &b.TeamID, &b.PlayerID,
			&b.Amount, &b.SubmittedAt, &b.SequenceNumber); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func (s *PostgresStore) TopBid(ctx context.Context, roundID string) (*model.Bid, error) {
	b, err := s.scanBid(s.pool.QueryRow(ctx,
		`SELECT id, round_id, team_id, player_id, amount, submitted_at, sequence_number
		 FROM bids WHERE round_id = $1
		 ORDER BY amount DESC, submitted_at ASC LIMIT 1`, roundID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: top bid: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) scanBid(row pgx.Row) (*model.Bid, error) {
	var b model.Bid
	if err := row.Scan(&b.ID, &b.RoundID, &b.TeamID, &b.PlayerID,
		&b.Amount, &b.SubmittedAt, &b.SequenceNumber); err != nil {
		return nil, err
	}
	return &b, nil
}

// --- Immutable results ---

func (s *PostgresStore) InsertResult(ctx context.Context, r *model.AuctionResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO auction_results (auction_id, player_id, team_id, winning_bid_amount, assigned_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.AuctionID, r.PlayerID, r.TeamID, r.WinningBidAmount, r.AssignedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return model.ErrDuplicateResult
		}
		return fmt.Errorf("postgres: insert result: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListResultsByAuction(ctx context.Context, auctionID string) ([]model.AuctionResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT auction_id, player_id, team_id, winning_bid_amount, assigned_at
		 FROM auction_results WHERE auction_id = $1 ORDER BY assigned_at`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: results by auction: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

func (s *PostgresStore) ListResultsByTeam(ctx context.Context, teamID string) ([]model.AuctionResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT auction_id, player_id, team_id, winning_bid_amount, assigned_at
		 FROM auction_results WHERE team_id = $1 ORDER BY assigned_at`, teamID)
	if err != nil {
		return nil, fmt.Errorf("postgres: results by team: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

func (s *PostgresStore) GetResultForPlayer(ctx context.Context, auctionID, playerID string) (*model.AuctionResult, error) {
	var r model.AuctionResult
	err := s.pool.QueryRow(ctx,
		`SELECT auction_id, player_id, team_id, winning_bid_amount, assigned_at
		 FROM auction_results WHERE auction_id = $1 AND player_id = $2`,
		auctionID, playerID).
		Scan(&r.AuctionID, &r.PlayerID, &r.TeamID, &r.WinningBidAmount, &r.AssignedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: result for player %s: %w", playerID, err)
	}
	return &r, nil
}

func scanResults(rows pgx.Rows) ([]model.AuctionResult, error) {
	var results []model.AuctionResult
	for rows.Next() {
		var r model.AuctionResult
		if err := rows.Scan(&r.AuctionID, &r.PlayerID, &r.TeamID,
			&r.WinningBidAmount, &r.AssignedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
