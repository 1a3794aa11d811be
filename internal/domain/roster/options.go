package roster

import "github.com/okian/peloton/internal/domain/model"

// Option applies a configuration option to Rules.
type Option func(*Rules)

// WithTeamSize sets the maximum roster size.
func WithTeamSize(n int) Option {
	return func(r *Rules) {
		if n > 0 {
			r.teamSize = n
		}
	}
}

// WithActiveSize sets the maximum number of starting cyclists.
func WithActiveSize(n int) Option {
	return func(r *Rules) {
		if n > 0 {
			r.activeSize = n
		}
	}
}

// WithMaxPerProTeam sets how many cyclists may share a professional team.
func WithMaxPerProTeam(n int) Option {
	return func(r *Rules) {
		if n > 0 {
			r.maxPerProTeam = n
		}
	}
}

// WithCategoryQuotas overrides quotas for the given categories.
func WithCategoryQuotas(quotas map[model.Category]int) Option {
	return func(r *Rules) {
		for cat, q := range quotas {
			if q >= 0 {
				r.quotas[cat] = q
			}
		}
	}
}
