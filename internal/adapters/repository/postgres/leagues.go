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

// LeagueStore implements repository.Leagues. Membership changes update
// leagues.member_count in the same transaction.
type LeagueStore struct {
	pool *pgxpool.Pool
}

// NewLeagueStore creates a LeagueStore backed by the given connection pool.
func NewLeagueStore(pool *pgxpool.Pool) *LeagueStore {
	return &LeagueStore{pool: pool}
}

const leagueCols = `id, name, type, COALESCE(code, ''), owner_id, region, season, member_count, created_at`

func scanLeague(row pgx.Row) (model.League, error) {
	var l model.League
	var typ string
	if err := row.Scan(&l.ID, &l.Name, &typ, &l.Code, &l.OwnerID, &l.Region, &l.Season, &l.MemberCount, &l.CreatedAt); err != nil {
		return model.League{}, err
	}
	l.Type = model.LeagueType(typ)
	l.CreatedAt = l.CreatedAt.UTC()
	return l, nil
}

func (s *LeagueStore) queryLeagues(ctx context.Context, op, query string, args ...any) ([]model.League, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var out []model.League
	for rows.Next() {
		l, err := scanLeague(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan league: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return out, nil
}

// CreateLeague inserts a league with no members.
func (s *LeagueStore) CreateLeague(ctx context.Context, league model.League) (model.League, error) {
	defer observe("create_league", time.Now())
	created := league.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	l, err := scanLeague(s.pool.QueryRow(ctx,
		`INSERT INTO leagues (id, name, type, code, owner_id, region, season, member_count, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, 0, $8)
		 RETURNING `+leagueCols,
		league.ID, league.Name, string(league.Type), league.Code, league.OwnerID, league.Region, league.Season, created,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return model.League{}, fmt.Errorf("postgres: create league %s: %w", league.ID, model.ErrDuplicate)
		}
		return model.League{}, fmt.Errorf("postgres: create league %s: %w", league.ID, err)
	}
	return l, nil
}

// GetLeague retrieves a league by id.
func (s *LeagueStore) GetLeague(ctx context.Context, leagueID string) (model.League, error) {
	defer observe("get_league", time.Now())
	l, err := scanLeague(s.pool.QueryRow(ctx, `SELECT `+leagueCols+` FROM leagues WHERE id = $1`, leagueID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.League{}, fmt.Errorf("postgres: league %s: %w", leagueID, model.ErrNotFound)
		}
		return model.League{}, fmt.Errorf("postgres: get league %s: %w", leagueID, err)
	}
	return l, nil
}

// GetLeagueByCode retrieves a league by its join code.
func (s *LeagueStore) GetLeagueByCode(ctx context.Context, code string) (model.League, error) {
	defer observe("get_league_by_code", time.Now())
	l, err := scanLeague(s.pool.QueryRow(ctx, `SELECT `+leagueCols+` FROM leagues WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.League{}, fmt.Errorf("postgres: league code %s: %w", code, model.ErrNotFound)
		}
		return model.League{}, fmt.Errorf("postgres: get league by code %s: %w", code, err)
	}
	return l, nil
}

// ListLeagues returns every league ordered by id.
func (s *LeagueStore) ListLeagues(ctx context.Context) ([]model.League, error) {
	defer observe("list_leagues", time.Now())
	return s.queryLeagues(ctx, "list leagues", `SELECT `+leagueCols+` FROM leagues ORDER BY id`)
}

// DeleteLeague removes the league; memberships cascade.
func (s *LeagueStore) DeleteLeague(ctx context.Context, leagueID string) error {
	defer observe("delete_league", time.Now())
	tag, err := s.pool.Exec(ctx, `DELETE FROM leagues WHERE id = $1`, leagueID)
	if err != nil {
		return fmt.Errorf("postgres: delete league %s: %w", leagueID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete league %s: %w", leagueID, model.ErrNotFound)
	}
	return nil
}

// membership runs fn in a transaction holding the league row lock, then
// writes the recounted member_count.
func (s *LeagueStore) membership(ctx context.Context, leagueID string, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin membership %s: %w", leagueID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	if err := tx.QueryRow(ctx, `SELECT id FROM leagues WHERE id = $1 FOR UPDATE`, leagueID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("postgres: league %s: %w", leagueID, model.ErrNotFound)
		}
		return fmt.Errorf("postgres: lock league %s: %w", leagueID, err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE leagues SET member_count = (SELECT COUNT(*) FROM league_members WHERE league_id = $1)
		 WHERE id = $1`, leagueID); err != nil {
		return fmt.Errorf("postgres: recount %s: %w", leagueID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit membership %s: %w", leagueID, err)
	}
	return nil
}

// AddMember inserts one membership row.
func (s *LeagueStore) AddMember(ctx context.Context, member model.LeagueMember) error {
	defer observe("add_member", time.Now())
	joined := member.JoinedAt
	if joined.IsZero() {
		joined = time.Now().UTC()
	}
	return s.membership(ctx, member.LeagueID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO league_members (league_id, team_id, joined_at) VALUES ($1, $2, $3)
			 ON CONFLICT DO NOTHING`,
			member.LeagueID, member.TeamID, joined,
		)
		if err != nil {
			return fmt.Errorf("postgres: add member %s to %s: %w", member.TeamID, member.LeagueID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: %s already in %s: %w", member.TeamID, member.LeagueID, model.ErrDuplicate)
		}
		return nil
	})
}

// RemoveMember deletes one membership row.
func (s *LeagueStore) RemoveMember(ctx context.Context, leagueID, teamID string) error {
	defer observe("remove_member", time.Now())
	return s.membership(ctx, leagueID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM league_members WHERE league_id = $1 AND team_id = $2`, leagueID, teamID)
		if err != nil {
			return fmt.Errorf("postgres: remove member %s from %s: %w", teamID, leagueID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: %s not in %s: %w", teamID, leagueID, model.ErrNotFound)
		}
		return nil
	})
}

// Members returns a league's memberships ordered by team id.
func (s *LeagueStore) Members(ctx context.Context, leagueID string) ([]model.LeagueMember, error) {
	defer observe("league_members", time.Now())
	if _, err := s.GetLeague(ctx, leagueID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT league_id, team_id, joined_at FROM league_members WHERE league_id = $1 ORDER BY team_id`, leagueID)
	if err != nil {
		return nil, fmt.Errorf("postgres: members of %s: %w", leagueID, err)
	}
	defer rows.Close()

	var out []model.LeagueMember
	for rows.Next() {
		var m model.LeagueMember
		if err := rows.Scan(&m.LeagueID, &m.TeamID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan member: %w", err)
		}
		m.JoinedAt = m.JoinedAt.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: members of %s rows: %w", leagueID, err)
	}
	return out, nil
}

// TeamLeagues returns the leagues teamID belongs to, ordered by id.
func (s *LeagueStore) TeamLeagues(ctx context.Context, teamID string) ([]model.League, error) {
	defer observe("team_leagues", time.Now())
	return s.queryLeagues(ctx, "team leagues",
		`SELECT `+leagueCols+` FROM leagues
		  WHERE id IN (SELECT league_id FROM league_members WHERE team_id = $1)
		  ORDER BY id`, teamID)
}
