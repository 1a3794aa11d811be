package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/domain/league"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/types"
)

// League tables stay out of the season standings gauge.
func newLeagueTable() league.Table {
	return repository.NewStandingsStore(repository.WithEntriesGauge(false))
}

// LeagueRequest carries the fields a caller may set on a new league.
type LeagueRequest struct {
	Name    string
	Type    string
	Region  string
	OwnerID string
	Season  int
}

func parseLeagueType(raw string) (model.LeagueType, error) {
	if raw == "" {
		return "", nil
	}
	t, ok := model.ParseLeagueType(raw)
	if !ok {
		return "", fmt.Errorf("%w: unknown league type %q", ErrInvalidInput, raw)
	}
	return t, nil
}

func limitError(err error) error {
	if errors.Is(err, repository.ErrInvalidLimit) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}

// CreateLeague creates a league. A private league answers with its join code.
func (s *Service) CreateLeague(ctx context.Context, req LeagueRequest) (model.League, error) {
	typ, err := parseLeagueType(req.Type)
	if err != nil {
		return model.League{}, err
	}
	return s.leagues.Create(ctx, model.League{
		Name:    req.Name,
		Type:    typ,
		Region:  req.Region,
		OwnerID: req.OwnerID,
		Season:  req.Season,
	})
}

// League returns one league.
func (s *Service) League(ctx context.Context, leagueID string) (model.League, error) {
	return s.leagues.Get(ctx, leagueID)
}

// Leagues lists leagues, optionally of one type.
func (s *Service) Leagues(ctx context.Context, typ string) ([]model.League, error) {
	t, err := parseLeagueType(typ)
	if err != nil {
		return nil, err
	}
	return s.leagues.List(ctx, t)
}

// TeamLeagues lists the leagues a team belongs to.
func (s *Service) TeamLeagues(ctx context.Context, teamID string) ([]model.League, error) {
	return s.leagues.ForTeam(ctx, teamID)
}

// JoinLeague adds a team to a public league by id.
func (s *Service) JoinLeague(ctx context.Context, leagueID, teamID string) (model.League, error) {
	return s.leagues.Join(ctx, leagueID, teamID)
}

// JoinLeagueByCode adds a team to the league with the given join code.
func (s *Service) JoinLeagueByCode(ctx context.Context, code, teamID string) (model.League, error) {
	if league.NormalizeCode(code) == "" {
		return model.League{}, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	return s.leagues.JoinByCode(ctx, code, teamID)
}

// LeaveLeague removes a team from a league.
func (s *Service) LeaveLeague(ctx context.Context, leagueID, teamID string) error {
	return s.leagues.Leave(ctx, leagueID, teamID)
}

// DeleteLeague deletes a league on behalf of its owner.
func (s *Service) DeleteLeague(ctx context.Context, leagueID, ownerID string) error {
	return s.leagues.Delete(ctx, leagueID, ownerID)
}

// LeagueStandings returns the first limit rows of a league table.
func (s *Service) LeagueStandings(ctx context.Context, leagueID string, limit int) ([]types.StandingEntry, error) {
	entries, err := s.leagues.Standings(ctx, leagueID, limit)
	return entries, limitError(err)
}

// LeagueRank returns a member's row of a league table.
func (s *Service) LeagueRank(ctx context.Context, leagueID, teamID string) (types.StandingEntry, error) {
	return s.leagues.Position(ctx, leagueID, teamID)
}

// LeagueAround returns a member's row and its neighbours.
func (s *Service) LeagueAround(ctx context.Context, leagueID, teamID string, above, below int) ([]types.StandingEntry, error) {
	entries, err := s.leagues.Around(ctx, leagueID, teamID, above, below)
	return entries, limitError(err)
}
