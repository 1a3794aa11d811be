package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/peloton/internal/domain/model"
)

// GetStage returns stage metadata.
func (s *Store) GetStage(_ context.Context, raceID string, number int) (model.Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stages[stageKey{raceID, number}]
	if !ok {
		return model.Stage{}, fmt.Errorf("memory: stage %s/%d: %w", raceID, number, model.ErrNotFound)
	}
	return st, nil
}

// UpsertStage inserts or replaces stage metadata.
func (s *Store) UpsertStage(_ context.Context, stage model.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[stageKey{stage.RaceID, stage.Number}] = stage
	return nil
}

// StageResults returns the results of a stage ordered by position.
func (s *Store) StageResults(_ context.Context, raceID string, number int) ([]model.StageResult, error) {
	if err := s.inject("stage_results", raceID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.StageResult(nil), s.results[stageKey{raceID, number}]...), nil
}

// SaveStageResults replaces the results of every stage present in results.
func (s *Store) SaveStageResults(_ context.Context, results []model.StageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grouped := make(map[stageKey][]model.StageResult)
	for _, r := range results {
		k := stageKey{r.RaceID, r.StageNumber}
		grouped[k] = append(grouped[k], r)
	}
	for k, rs := range grouped {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].Position < rs[j].Position })
		s.results[k] = rs
	}
	return nil
}

// GcStandings returns the final general classification of a race.
func (s *Store) GcStandings(_ context.Context, raceID string) ([]model.GcStanding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.GcStanding(nil), s.gc[raceID]...), nil
}

// SaveGcStandings replaces the general classification of each race present.
func (s *Store) SaveGcStandings(_ context.Context, standings []model.GcStanding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grouped := make(map[string][]model.GcStanding)
	for _, g := range standings {
		grouped[g.RaceID] = append(grouped[g.RaceID], g)
	}
	for id, gs := range grouped {
		s.gc[id] = gs
	}
	return nil
}

// SaveTeamStageScores upserts by (team, race, stage).
func (s *Store) SaveTeamStageScores(_ context.Context, scores []model.TeamStageScore) error {
	if err := s.inject("save_scores", ""); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range scores {
		if sc.CreatedAt.IsZero() {
			sc.CreatedAt = s.clock()
		}
		s.scores[scoreKey{sc.TeamID, sc.RaceID, sc.StageNumber}] = sc
	}
	return nil
}

// TeamStageScores returns a team's recorded scores for a gameweek.
func (s *Store) TeamStageScores(_ context.Context, teamID string, gameweek int) ([]model.TeamStageScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TeamStageScore
	for k, sc := range s.scores {
		if k.teamID == teamID && sc.Gameweek == gameweek {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RaceID != out[j].RaceID {
			return out[i].RaceID < out[j].RaceID
		}
		return out[i].StageNumber < out[j].StageNumber
	})
	return out, nil
}
