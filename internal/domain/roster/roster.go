// Package roster validates roster eligibility against budget, size and quota rules.
package roster

import (
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
)

// Eligibility is the outcome of evaluating one addition.
type Eligibility string

// Eligibility outcomes in check order.
const (
	Eligible            Eligibility = "ELIGIBLE"
	AlreadyInTeam       Eligibility = "ALREADY_IN_TEAM"
	TeamFull            Eligibility = "TEAM_FULL"
	CategoryFull        Eligibility = "CATEGORY_FULL"
	TooManyFromSameTeam Eligibility = "TOO_MANY_FROM_SAME_TEAM"
	InsufficientBudget  Eligibility = "INSUFFICIENT_BUDGET"
)

// Default roster limits.
const (
	DefaultTeamSize      = 15
	DefaultActiveSize    = 8
	DefaultMaxPerProTeam = 3
)

// budgetTolerance absorbs float noise when comparing a price to the budget.
const budgetTolerance = 1e-9

// DefaultQuotas returns the per-category limits of a full roster.
func DefaultQuotas() map[model.Category]int {
	return map[model.Category]int{
		model.CategoryGC:      3,
		model.CategoryClimber: 3,
		model.CategorySprint:  3,
		model.CategoryTT:      2,
		model.CategoryHills:   2,
		model.CategoryOneDay:  2,
	}
}

// Snapshot is the effective state of a team that an addition is checked against.
type Snapshot struct {
	Budget   float64
	Cyclists []model.Cyclist
}

// Counts is the derived composition of a snapshot.
type Counts struct {
	Size       int
	ByCategory map[model.Category]int
	ByProTeam  map[string]int
}

// Counts recomputes the composition of the snapshot.
func (s Snapshot) Counts() Counts {
	c := Counts{
		Size:       len(s.Cyclists),
		ByCategory: make(map[model.Category]int),
		ByProTeam:  make(map[string]int),
	}
	for _, cy := range s.Cyclists {
		c.ByCategory[cy.Category]++
		if cy.ProTeam != "" {
			c.ByProTeam[cy.ProTeam]++
		}
	}
	return c
}

// Contains reports whether cyclistID is in the snapshot.
func (s Snapshot) Contains(cyclistID string) bool {
	for _, cy := range s.Cyclists {
		if cy.ID == cyclistID {
			return true
		}
	}
	return false
}

// Rules evaluates additions. It holds no state beyond its limits and is safe
// for concurrent use.
type Rules struct {
	teamSize      int
	activeSize    int
	maxPerProTeam int
	quotas        map[model.Category]int
}

// NewRules creates rules with the default limits, adjusted by opts.
func NewRules(opts ...Option) *Rules {
	r := &Rules{
		teamSize:      DefaultTeamSize,
		activeSize:    DefaultActiveSize,
		maxPerProTeam: DefaultMaxPerProTeam,
		quotas:        DefaultQuotas(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TeamSize returns the maximum roster size.
func (r *Rules) TeamSize() int { return r.teamSize }

// ActiveSize returns the maximum number of starting cyclists.
func (r *Rules) ActiveSize() int { return r.activeSize }

// Quota returns the limit for category; unknown categories have none.
func (r *Rules) Quota(category model.Category) int { return r.quotas[category] }

// Evaluate checks whether cyclist may join the team described by s. The
// first failing check wins, in the order AlreadyInTeam, TeamFull,
// CategoryFull, TooManyFromSameTeam, InsufficientBudget.
func (r *Rules) Evaluate(cyclist model.Cyclist, s Snapshot) Eligibility {
	if s.Contains(cyclist.ID) {
		return AlreadyInTeam
	}
	counts := s.Counts()
	if counts.Size >= r.teamSize {
		return TeamFull
	}
	if counts.ByCategory[cyclist.Category] >= r.quotas[cyclist.Category] {
		return CategoryFull
	}
	if cyclist.ProTeam != "" && counts.ByProTeam[cyclist.ProTeam] >= r.maxPerProTeam {
		return TooManyFromSameTeam
	}
	if cyclist.Price > s.Budget+budgetTolerance {
		return InsufficientBudget
	}
	return Eligible
}

// Check is Evaluate returning a *Violation for anything but Eligible.
func (r *Rules) Check(cyclist model.Cyclist, s Snapshot) error {
	if e := r.Evaluate(cyclist, s); e != Eligible {
		return &Violation{Reason: e, CyclistID: cyclist.ID}
	}
	return nil
}

// Deficit is how far a category is from its quota.
type Deficit struct {
	Category model.Category `json:"category"`
	Have     int            `json:"have"`
	Quota    int            `json:"quota"`
}

// Missing is the number of cyclists still needed.
func (d Deficit) Missing() int { return d.Quota - d.Have }

// Deficits lists the categories below quota, in category order.
func (r *Rules) Deficits(s Snapshot) []Deficit {
	counts := s.Counts()
	var out []Deficit
	for _, cat := range model.Categories() {
		q := r.quotas[cat]
		if have := counts.ByCategory[cat]; have < q {
			out = append(out, Deficit{Category: cat, Have: have, Quota: q})
		}
	}
	return out
}

// Complete reports whether the roster is at full size.
func (r *Rules) Complete(s Snapshot) bool {
	return len(s.Cyclists) >= r.teamSize
}

// ValidateLineup checks the active and captain flags of a roster.
func (r *Rules) ValidateLineup(members []model.TeamCyclist) error {
	if len(members) == 0 {
		return nil
	}
	active, captains := 0, 0
	for _, m := range members {
		if m.IsActive {
			active++
		}
		if m.IsCaptain {
			captains++
		}
	}
	if active > r.activeSize {
		return fmt.Errorf("%w: %d active, limit %d", ErrTooManyActive, active, r.activeSize)
	}
	if captains != 1 {
		return fmt.Errorf("%w: found %d", ErrCaptainCount, captains)
	}
	return nil
}
