package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/peloton/internal/domain/model"
)

// Store implements repository.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const teamCols = `id, user_id, name, season, budget, free_transfers,
	transfers_made_this_week, total_points, gameweek,
	wildcard_used, wildcard_active, wildcard_race_id,
	triple_captain_used, triple_captain_active, triple_captain_race_id,
	bench_boost_used, bench_boost_active, bench_boost_race_id,
	bench_boost_snapshot, version, created_at, updated_at`

func scanTeam(row pgx.Row) (model.FantasyTeam, error) {
	var t model.FantasyTeam
	err := row.Scan(
		&t.ID, &t.UserID, &t.Name, &t.Season, &t.Budget, &t.FreeTransfers,
		&t.TransfersMadeThisWeek, &t.TotalPoints, &t.Gameweek,
		&t.Wildcard.Used, &t.Wildcard.Active, &t.Wildcard.RaceID,
		&t.TripleCaptain.Used, &t.TripleCaptain.Active, &t.TripleCaptain.RaceID,
		&t.BenchBoost.Used, &t.BenchBoost.Active, &t.BenchBoost.RaceID,
		&t.BenchBoostSnapshot, &t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return model.FantasyTeam{}, err
	}
	if len(t.BenchBoostSnapshot) == 0 {
		t.BenchBoostSnapshot = nil
	}
	return t, nil
}

func snapshot(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// GetTeam retrieves a team by id.
func (s *Store) GetTeam(ctx context.Context, teamID string) (model.FantasyTeam, error) {
	defer observe("get_team", time.Now())
	t, err := scanTeam(s.pool.QueryRow(ctx, `SELECT `+teamCols+` FROM teams WHERE id = $1`, teamID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.FantasyTeam{}, fmt.Errorf("postgres: team %s: %w", teamID, model.ErrNotFound)
		}
		return model.FantasyTeam{}, fmt.Errorf("postgres: get team %s: %w", teamID, err)
	}
	return t, nil
}

// ListTeams returns all teams ordered by id.
func (s *Store) ListTeams(ctx context.Context) ([]model.FantasyTeam, error) {
	defer observe("list_teams", time.Now())
	rows, err := s.pool.Query(ctx, `SELECT `+teamCols+` FROM teams ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list teams: %w", err)
	}
	defer rows.Close()

	var out []model.FantasyTeam
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan team: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list teams rows: %w", err)
	}
	return out, nil
}

// CreateTeam inserts a new team at version 1.
func (s *Store) CreateTeam(ctx context.Context, team model.FantasyTeam) (model.FantasyTeam, error) {
	defer observe("create_team", time.Now())
	const query = `
		INSERT INTO teams (
			id, user_id, name, season, budget, free_transfers,
			transfers_made_this_week, total_points, gameweek,
			wildcard_used, wildcard_active, wildcard_race_id,
			triple_captain_used, triple_captain_active, triple_captain_race_id,
			bench_boost_used, bench_boost_active, bench_boost_race_id,
			bench_boost_snapshot, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12,
			$13, $14, $15,
			$16, $17, $18,
			$19, 1, NOW(), NOW()
		)
		RETURNING ` + teamCols

	t, err := scanTeam(s.pool.QueryRow(ctx, query,
		team.ID, team.UserID, team.Name, team.Season, model.RoundMoney(team.Budget), team.FreeTransfers,
		team.TransfersMadeThisWeek, team.TotalPoints, team.Gameweek,
		team.Wildcard.Used, team.Wildcard.Active, team.Wildcard.RaceID,
		team.TripleCaptain.Used, team.TripleCaptain.Active, team.TripleCaptain.RaceID,
		team.BenchBoost.Used, team.BenchBoost.Active, team.BenchBoost.RaceID,
		snapshot(team.BenchBoostSnapshot),
	))
	if err != nil {
		if isUniqueViolation(err) {
			return model.FantasyTeam{}, fmt.Errorf("postgres: create team %s: %w", team.ID, model.ErrStaleData)
		}
		return model.FantasyTeam{}, fmt.Errorf("postgres: create team %s: %w", team.ID, err)
	}
	return t, nil
}

// UpdateTeam writes everything but the accumulators when the stored version
// matches expectedVersion.
func (s *Store) UpdateTeam(ctx context.Context, team model.FantasyTeam, expectedVersion int64) (model.FantasyTeam, error) {
	defer observe("update_team", time.Now())
	const query = `
		UPDATE teams SET
			user_id                  = $3,
			name                     = $4,
			season                   = $5,
			free_transfers           = $6,
			transfers_made_this_week = $7,
			gameweek                 = $8,
			wildcard_used            = $9,
			wildcard_active          = $10,
			wildcard_race_id         = $11,
			triple_captain_used      = $12,
			triple_captain_active    = $13,
			triple_captain_race_id   = $14,
			bench_boost_used         = $15,
			bench_boost_active       = $16,
			bench_boost_race_id      = $17,
			bench_boost_snapshot     = $18,
			version                  = version + 1,
			updated_at               = NOW()
		WHERE id = $1 AND version = $2
		RETURNING ` + teamCols

	t, err := scanTeam(s.pool.QueryRow(ctx, query,
		team.ID, expectedVersion,
		team.UserID, team.Name, team.Season,
		team.FreeTransfers, team.TransfersMadeThisWeek, team.Gameweek,
		team.Wildcard.Used, team.Wildcard.Active, team.Wildcard.RaceID,
		team.TripleCaptain.Used, team.TripleCaptain.Active, team.TripleCaptain.RaceID,
		team.BenchBoost.Used, team.BenchBoost.Active, team.BenchBoost.RaceID,
		snapshot(team.BenchBoostSnapshot),
	))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.FantasyTeam{}, fmt.Errorf("postgres: update team %s: %w", team.ID, err)
	}
	if _, getErr := s.GetTeam(ctx, team.ID); getErr != nil {
		return model.FantasyTeam{}, getErr
	}
	return model.FantasyTeam{}, fmt.Errorf("postgres: update team %s at version %d: %w",
		team.ID, expectedVersion, model.ErrStaleData)
}

// AddPoints atomically adds delta to the team's total points.
func (s *Store) AddPoints(ctx context.Context, teamID string, delta int) (int, error) {
	defer observe("add_points", time.Now())
	var total int
	err := s.pool.QueryRow(ctx,
		`UPDATE teams SET total_points = total_points + $2, updated_at = NOW() WHERE id = $1 RETURNING total_points`,
		teamID, delta,
	).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("postgres: add points %s: %w", teamID, model.ErrNotFound)
		}
		return 0, fmt.Errorf("postgres: add points %s: %w", teamID, err)
	}
	return total, nil
}

// AddBudget atomically adds delta to the team's budget, rounded to cents.
func (s *Store) AddBudget(ctx context.Context, teamID string, delta float64) (float64, error) {
	defer observe("add_budget", time.Now())
	var budget float64
	err := s.pool.QueryRow(ctx,
		`UPDATE teams
		    SET budget = ROUND((budget + $2)::numeric, 2)::double precision, updated_at = NOW()
		  WHERE id = $1
		  RETURNING budget`,
		teamID, delta,
	).Scan(&budget)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("postgres: add budget %s: %w", teamID, model.ErrNotFound)
		}
		return 0, fmt.Errorf("postgres: add budget %s: %w", teamID, err)
	}
	return budget, nil
}

// GetTeamCyclists returns the roster ordered by added time then cyclist id.
func (s *Store) GetTeamCyclists(ctx context.Context, teamID string) ([]model.TeamCyclist, error) {
	defer observe("get_team_cyclists", time.Now())
	rows, err := s.pool.Query(ctx,
		`SELECT team_id, cyclist_id, is_active, is_captain, purchase_price, added_at
		   FROM team_cyclists WHERE team_id = $1 ORDER BY added_at, cyclist_id`, teamID)
	if err != nil {
		return nil, fmt.Errorf("postgres: team cyclists %s: %w", teamID, err)
	}
	defer rows.Close()

	out := []model.TeamCyclist{}
	for rows.Next() {
		var m model.TeamCyclist
		if err := rows.Scan(&m.TeamID, &m.CyclistID, &m.IsActive, &m.IsCaptain, &m.PurchasePrice, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan team cyclist: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: team cyclists rows: %w", err)
	}
	return out, nil
}

// AddCyclistToTeam inserts one roster row.
func (s *Store) AddCyclistToTeam(ctx context.Context, member model.TeamCyclist) error {
	defer observe("add_cyclist", time.Now())
	added := member.AddedAt
	if added.IsZero() {
		added = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO team_cyclists (team_id, cyclist_id, is_active, is_captain, purchase_price, added_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		member.TeamID, member.CyclistID, member.IsActive, member.IsCaptain, member.PurchasePrice, added,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: cyclist %s already on %s: %w", member.CyclistID, member.TeamID, model.ErrStaleData)
		}
		return fmt.Errorf("postgres: add cyclist %s to %s: %w", member.CyclistID, member.TeamID, err)
	}
	return nil
}

// RemoveCyclistFromTeam deletes one roster row.
func (s *Store) RemoveCyclistFromTeam(ctx context.Context, teamID, cyclistID string) error {
	defer observe("remove_cyclist", time.Now())
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM team_cyclists WHERE team_id = $1 AND cyclist_id = $2`, teamID, cyclistID)
	if err != nil {
		return fmt.Errorf("postgres: remove cyclist %s from %s: %w", cyclistID, teamID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: cyclist %s on %s: %w", cyclistID, teamID, model.ErrNotFound)
	}
	return nil
}

// SetCaptain moves the captain flag to cyclistID in one statement.
func (s *Store) SetCaptain(ctx context.Context, teamID, cyclistID string) error {
	defer observe("set_captain", time.Now())
	const query = `
		UPDATE team_cyclists SET is_captain = (cyclist_id = $2)
		WHERE team_id = $1
		  AND EXISTS (SELECT 1 FROM team_cyclists WHERE team_id = $1 AND cyclist_id = $2)`
	tag, err := s.pool.Exec(ctx, query, teamID, cyclistID)
	if err != nil {
		return fmt.Errorf("postgres: set captain %s on %s: %w", cyclistID, teamID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: captain %s on %s: %w", cyclistID, teamID, model.ErrNotFound)
	}
	return nil
}

// SetActive flips the starting flag of one roster row.
func (s *Store) SetActive(ctx context.Context, teamID, cyclistID string, active bool) error {
	defer observe("set_active", time.Now())
	tag, err := s.pool.Exec(ctx,
		`UPDATE team_cyclists SET is_active = $3 WHERE team_id = $1 AND cyclist_id = $2`,
		teamID, cyclistID, active)
	if err != nil {
		return fmt.Errorf("postgres: set active %s on %s: %w", cyclistID, teamID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: cyclist %s on %s: %w", cyclistID, teamID, model.ErrNotFound)
	}
	return nil
}

// OwnershipCounts counts roster rows per cyclist and the number of teams.
func (s *Store) OwnershipCounts(ctx context.Context) (map[string]int, int, error) {
	defer observe("ownership_counts", time.Now())
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM teams`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres: count teams: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT cyclist_id, COUNT(*) FROM team_cyclists GROUP BY cyclist_id`)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: ownership counts: %w", err)
	}
	defer rows.Close()

	owners := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, 0, fmt.Errorf("postgres: scan ownership: %w", err)
		}
		owners[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres: ownership rows: %w", err)
	}
	return owners, total, nil
}

// SaveTransfers appends transfer rows in one batch.
func (s *Store) SaveTransfers(ctx context.Context, transfers []model.Transfer) error {
	defer observe("save_transfers", time.Now())
	if len(transfers) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO transfers (
			id, team_id, cyclist_in_id, cyclist_out_id,
			price_in, price_out, gameweek, points_cost, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`
	for _, t := range transfers {
		created := t.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		batch.Queue(query,
			t.ID, t.TeamID, t.CyclistInID, t.CyclistOutID,
			t.PriceIn, t.PriceOut, t.Gameweek, t.PointsCost, created,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range transfers {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: save transfer batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListTransfers returns a team's transfers in insertion order.
func (s *Store) ListTransfers(ctx context.Context, teamID string) ([]model.Transfer, error) {
	defer observe("list_transfers", time.Now())
	rows, err := s.pool.Query(ctx,
		`SELECT id, team_id, cyclist_in_id, cyclist_out_id, price_in, price_out, gameweek, points_cost, created_at
		   FROM transfers WHERE team_id = $1 ORDER BY seq`, teamID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transfers %s: %w", teamID, err)
	}
	defer rows.Close()

	var out []model.Transfer
	for rows.Next() {
		var t model.Transfer
		if err := rows.Scan(&t.ID, &t.TeamID, &t.CyclistInID, &t.CyclistOutID,
			&t.PriceIn, &t.PriceOut, &t.Gameweek, &t.PointsCost, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan transfer: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transfers rows: %w", err)
	}
	return out, nil
}
