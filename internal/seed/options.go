package seed

import (
	"time"

	"github.com/okian/peloton/pkg/logger"
)

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithTeams sets how many fantasy teams are created.
func WithTeams(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.teams = n
		}
	}
}

// WithRidersPerProTeam sets the size of each professional squad.
func WithRidersPerProTeam(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.ridersPerProTeam = n
		}
	}
}

// WithSeed makes the generated season reproducible.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// WithClock sets the time the season is generated around.
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(g *Generator) {
		if log != nil {
			g.logger = log
		}
	}
}
