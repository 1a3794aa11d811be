package model

import (
	"fmt"
	"strings"
	"time"
)

// JobKind names a batch job the worker pool runs.
type JobKind string

// Job kinds.
const (
	JobProcessStage JobKind = "process_stage"
	JobFinalGc      JobKind = "final_gc"
	JobFinalizeRace JobKind = "finalize_race"
	JobPricing      JobKind = "pricing"
	JobRollover     JobKind = "rollover"
)

// ParseJobKind accepts the kind names above in any case, with - or _.
func ParseJobKind(s string) (JobKind, bool) {
	k := JobKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch k {
	case JobProcessStage, JobFinalGc, JobFinalizeRace, JobPricing, JobRollover:
		return k, true
	default:
		return "", false
	}
}

// Job is one unit of batch work. Only the fields its kind needs are set.
type Job struct {
	ID         string    `json:"id"`
	Kind       JobKind   `json:"kind"`
	RaceID     string    `json:"race_id,omitempty"`
	Stage      int       `json:"stage,omitempty"`
	Gameweek   int       `json:"gameweek,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Validate checks the fields required by the job kind.
func (j Job) Validate() error {
	switch j.Kind {
	case JobProcessStage:
		if j.RaceID == "" || j.Stage < 1 {
			return fmt.Errorf("job %s needs race_id and stage >= 1", j.Kind)
		}
	case JobFinalGc, JobFinalizeRace:
		if j.RaceID == "" {
			return fmt.Errorf("job %s needs race_id", j.Kind)
		}
	case JobRollover:
		if j.Gameweek < 1 {
			return fmt.Errorf("job %s needs gameweek >= 1", j.Kind)
		}
	case JobPricing:
	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	return nil
}
