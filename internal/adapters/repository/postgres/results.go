package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/okian/peloton/internal/domain/model"
)

// GetStage retrieves stage metadata.
func (s *Store) GetStage(ctx context.Context, raceID string, number int) (model.Stage, error) {
	defer observe("get_stage", time.Now())
	var st model.Stage
	var stageType string
	var date *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT race_id, number, type, gameweek, date FROM stages WHERE race_id = $1 AND number = $2`,
		raceID, number,
	).Scan(&st.RaceID, &st.Number, &stageType, &st.Gameweek, &date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Stage{}, fmt.Errorf("postgres: stage %s/%d: %w", raceID, number, model.ErrNotFound)
		}
		return model.Stage{}, fmt.Errorf("postgres: get stage %s/%d: %w", raceID, number, err)
	}
	st.Type = model.ParseStageType(stageType)
	st.Date = timeOf(date)
	return st, nil
}

// UpsertStage inserts or replaces stage metadata.
func (s *Store) UpsertStage(ctx context.Context, stage model.Stage) error {
	defer observe("upsert_stage", time.Now())
	_, err := s.pool.Exec(ctx,
		`INSERT INTO stages (race_id, number, type, gameweek, date) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (race_id, number) DO UPDATE SET
			type     = EXCLUDED.type,
			gameweek = EXCLUDED.gameweek,
			date     = EXCLUDED.date`,
		stage.RaceID, stage.Number, string(stage.Type), stage.Gameweek, nullTime(stage.Date),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert stage %s/%d: %w", stage.RaceID, stage.Number, err)
	}
	return nil
}

// StageResults returns the results of one stage ordered by position.
func (s *Store) StageResults(ctx context.Context, raceID string, number int) ([]model.StageResult, error) {
	defer observe("stage_results", time.Now())
	rows, err := s.pool.Query(ctx,
		`SELECT race_id, stage_number, cyclist_id, position, status,
		        jersey_gc, jersey_points, jersey_mountains, jersey_young, gc_position
		   FROM stage_results
		  WHERE race_id = $1 AND stage_number = $2
		  ORDER BY position = 0, position, cyclist_id`, raceID, number)
	if err != nil {
		return nil, fmt.Errorf("postgres: stage results %s/%d: %w", raceID, number, err)
	}
	defer rows.Close()

	var out []model.StageResult
	for rows.Next() {
		var r model.StageResult
		var status string
		if err := rows.Scan(&r.RaceID, &r.StageNumber, &r.CyclistID, &r.Position, &status,
			&r.Jerseys.GC, &r.Jerseys.Points, &r.Jerseys.Mountains, &r.Jerseys.Young, &r.GcPosition); err != nil {
			return nil, fmt.Errorf("postgres: scan stage result: %w", err)
		}
		r.Status = model.ParseResultStatus(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: stage results rows: %w", err)
	}
	return out, nil
}

// SaveStageResults upserts results in one batch.
func (s *Store) SaveStageResults(ctx context.Context, results []model.StageResult) error {
	defer observe("save_stage_results", time.Now())
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO stage_results (
			race_id, stage_number, cyclist_id, position, status,
			jersey_gc, jersey_points, jersey_mountains, jersey_young, gc_position
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (race_id, stage_number, cyclist_id) DO UPDATE SET
			position         = EXCLUDED.position,
			status           = EXCLUDED.status,
			jersey_gc        = EXCLUDED.jersey_gc,
			jersey_points    = EXCLUDED.jersey_points,
			jersey_mountains = EXCLUDED.jersey_mountains,
			jersey_young     = EXCLUDED.jersey_young,
			gc_position      = EXCLUDED.gc_position`
	for _, r := range results {
		status := r.Status
		if status == "" {
			status = model.StatusFinished
		}
		batch.Queue(query,
			r.RaceID, r.StageNumber, r.CyclistID, r.Position, string(status),
			r.Jerseys.GC, r.Jerseys.Points, r.Jerseys.Mountains, r.Jerseys.Young, r.GcPosition,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: save stage result batch item %d: %w", i, err)
		}
	}
	return nil
}

// GcStandings returns the final general classification ordered by rank.
func (s *Store) GcStandings(ctx context.Context, raceID string) ([]model.GcStanding, error) {
	defer observe("gc_standings", time.Now())
	rows, err := s.pool.Query(ctx,
		`SELECT race_id, cyclist_id, gc_position FROM gc_standings
		  WHERE race_id = $1 ORDER BY gc_position, cyclist_id`, raceID)
	if err != nil {
		return nil, fmt.Errorf("postgres: gc standings %s: %w", raceID, err)
	}
	defer rows.Close()

	var out []model.GcStanding
	for rows.Next() {
		var g model.GcStanding
		if err := rows.Scan(&g.RaceID, &g.CyclistID, &g.GcPosition); err != nil {
			return nil, fmt.Errorf("postgres: scan gc standing: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: gc standings rows: %w", err)
	}
	return out, nil
}

// SaveGcStandings upserts GC ranks in one batch.
func (s *Store) SaveGcStandings(ctx context.Context, standings []model.GcStanding) error {
	defer observe("save_gc_standings", time.Now())
	if len(standings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, g := range standings {
		batch.Queue(
			`INSERT INTO gc_standings (race_id, cyclist_id, gc_position) VALUES ($1, $2, $3)
			 ON CONFLICT (race_id, cyclist_id) DO UPDATE SET gc_position = EXCLUDED.gc_position`,
			g.RaceID, g.CyclistID, g.GcPosition,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range standings {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: save gc standing batch item %d: %w", i, err)
		}
	}
	return nil
}

// SaveTeamStageScores upserts by (team, race, stage).
func (s *Store) SaveTeamStageScores(ctx context.Context, scores []model.TeamStageScore) error {
	defer observe("save_scores", time.Now())
	if len(scores) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO team_stage_scores (
			team_id, race_id, stage_number, gameweek, points,
			budget_earned, triple_captain, bench_boost, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (team_id, race_id, stage_number) DO UPDATE SET
			gameweek       = EXCLUDED.gameweek,
			points         = EXCLUDED.points,
			budget_earned  = EXCLUDED.budget_earned,
			triple_captain = EXCLUDED.triple_captain,
			bench_boost    = EXCLUDED.bench_boost`
	for _, sc := range scores {
		batch.Queue(query,
			sc.TeamID, sc.RaceID, sc.StageNumber, sc.Gameweek, sc.Points,
			sc.BudgetEarned, sc.TripleCaptain, sc.BenchBoost,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range scores {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: save score batch item %d: %w", i, err)
		}
	}
	return nil
}

// TeamStageScores returns a team's stage scores for one gameweek.
func (s *Store) TeamStageScores(ctx context.Context, teamID string, gameweek int) ([]model.TeamStageScore, error) {
	defer observe("team_stage_scores", time.Now())
	rows, err := s.pool.Query(ctx,
		`SELECT team_id, race_id, stage_number, gameweek, points,
		        budget_earned, triple_captain, bench_boost, created_at
		   FROM team_stage_scores
		  WHERE team_id = $1 AND gameweek = $2
		  ORDER BY race_id, stage_number`, teamID, gameweek)
	if err != nil {
		return nil, fmt.Errorf("postgres: team stage scores %s/%d: %w", teamID, gameweek, err)
	}
	defer rows.Close()

	var out []model.TeamStageScore
	for rows.Next() {
		var sc model.TeamStageScore
		if err := rows.Scan(&sc.TeamID, &sc.RaceID, &sc.StageNumber, &sc.Gameweek, &sc.Points,
			&sc.BudgetEarned, &sc.TripleCaptain, &sc.BenchBoost, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan team stage score: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: team stage scores rows: %w", err)
	}
	return out, nil
}
