package model

import (
	"strings"
	"time"
)

// RaceType distinguishes classics from stage races.
type RaceType string

// Race types.
const (
	RaceOneDay    RaceType = "ONE_DAY"
	RaceStage     RaceType = "STAGE_RACE"
	RaceGrandTour RaceType = "GRAND_TOUR"
)

// Race is a calendar entry.
type Race struct {
	ID         string
	Name       string
	Type       RaceType
	StartDate  time.Time
	EndDate    time.Time
	Stages     int
	IsActive   bool
	IsFinished bool
	FinishedAt time.Time
	Season     int
}

// Started reports whether the race is running, done, or past its start time.
func (r Race) Started(now time.Time) bool {
	return r.IsActive || r.IsFinished || !now.Before(r.StartDate)
}

// InProgress reports whether the race is currently being ridden.
func (r Race) InProgress(now time.Time) bool {
	if r.IsFinished {
		return false
	}
	if r.IsActive {
		return true
	}
	end := r.EndDate
	if end.IsZero() {
		end = r.StartDate.Add(24 * time.Hour)
	}
	return !now.Before(r.StartDate) && now.Before(end)
}

// StageType drives the stage points multiplier.
type StageType string

// Stage types.
const (
	StagePrologue StageType = "PROLOGUE"
	StageFlat     StageType = "FLAT"
	StageHilly    StageType = "HILLY"
	StageMountain StageType = "MOUNTAIN"
	StageITT      StageType = "ITT"
	StageTTT      StageType = "TTT"
)

var stageMultipliers = map[StageType]float64{ //nolint:gochecknoglobals // immutable lookup
	StagePrologue: 0.5,
	StageFlat:     1.0,
	StageHilly:    1.0,
	StageMountain: 1.2,
	StageITT:      1.2,
	StageTTT:      1.0,
}

// ParseStageType maps a name onto a StageType. Unknown names are FLAT.
func ParseStageType(s string) StageType {
	t := StageType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := stageMultipliers[t]; ok {
		return t
	}
	return StageFlat
}

// Multiplier returns the points multiplier for the stage type.
func (t StageType) Multiplier() float64 {
	if m, ok := stageMultipliers[t]; ok {
		return m
	}
	return 1.0
}

// Stage is one timed segment of a race. One-day races have a single stage 1.
type Stage struct {
	RaceID   string
	Number   int
	Type     StageType
	Gameweek int
	Date     time.Time
}

// ResultStatus is a rider's finishing status on a stage.
type ResultStatus string

// Result statuses.
const (
	StatusFinished ResultStatus = "FINISHED"
	StatusDNF      ResultStatus = "DNF"
	StatusDNS      ResultStatus = "DNS"
	StatusDSQ      ResultStatus = "DSQ"
	StatusOTL      ResultStatus = "OTL"
)

// ParseResultStatus maps a status name; empty means finished.
func ParseResultStatus(s string) ResultStatus {
	switch st := ResultStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusDNF, StatusDNS, StatusDSQ, StatusOTL:
		return st
	default:
		return StatusFinished
	}
}

// Finished reports whether the status counts as a normal finish.
func (s ResultStatus) Finished() bool {
	return s == StatusFinished || s == ""
}

// Jerseys are the classification leader flags after a stage.
type Jerseys struct {
	GC        bool
	Points    bool
	Mountains bool
	Young     bool
}

// StageResult is read-only input produced by the results pipeline.
type StageResult struct {
	RaceID      string
	StageNumber int
	CyclistID   string
	Position    int
	Status      ResultStatus
	Jerseys     Jerseys
	GcPosition  int
}

// GcStanding is a rider's general classification rank after the final stage.
type GcStanding struct {
	RaceID     string
	CyclistID  string
	GcPosition int
}

// TeamStageScore records what a team earned on one stage.
type TeamStageScore struct {
	TeamID        string
	RaceID        string
	StageNumber   int
	Gameweek      int
	Points        int
	BudgetEarned  float64
	TripleCaptain bool
	BenchBoost    bool
	CreatedAt     time.Time
}
