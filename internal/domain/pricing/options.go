package pricing

import (
	"time"

	"github.com/okian/peloton/pkg/logger"
)

// Option applies a configuration option to the Job.
type Option func(*Job)

// WithBoostFactor sets the pre-race boost multiplier.
func WithBoostFactor(f float64) Option {
	return func(j *Job) {
		if f > 0 {
			j.boostFactor = f
		}
	}
}

// WithLookahead sets how far ahead of a race boosts start.
func WithLookahead(d time.Duration) Option {
	return func(j *Job) {
		if d > 0 {
			j.lookahead = d
		}
	}
}

// WithDailyChangeLimit caps the relative demand move per run.
func WithDailyChangeLimit(limit float64) Option {
	return func(j *Job) {
		if limit > 0 {
			j.dailyLimit = limit
		}
	}
}

// WithPriceBounds sets the game-wide price bounds.
func WithPriceBounds(minPrice, maxPrice float64) Option {
	return func(j *Job) {
		if minPrice > 0 && maxPrice > minPrice {
			j.minPrice, j.maxPrice = minPrice, maxPrice
		}
	}
}

// WithConcurrency bounds the number of cyclists processed at once.
func WithConcurrency(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.concurrency = n
		}
	}
}

// WithIDGenerator overrides how price change ids are produced.
func WithIDGenerator(fn func() string) Option {
	return func(j *Job) {
		if fn != nil {
			j.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(j *Job) {
		if log != nil {
			j.logger = log
		}
	}
}
