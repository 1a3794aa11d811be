package scoring

import (
	"time"

	"github.com/okian/peloton/pkg/logger"
)

// Option applies a configuration option to the Processor.
type Option func(*Processor)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(p *Processor) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithPrizePools sets the budget prizes in millions for stages, one-day
// races and the final general classification. Zero disables a pool.
func WithPrizePools(stage, oneDay, finalGc float64) Option {
	return func(p *Processor) {
		if stage >= 0 && oneDay >= 0 && finalGc >= 0 {
			p.stagePool, p.oneDayPool, p.gcPool = stage, oneDay, finalGc
		}
	}
}

// WithRolloverTransfers sets the free transfers granted per gameweek and
// the cap they accumulate to.
func WithRolloverTransfers(perWeek, maxFree int) Option {
	return func(p *Processor) {
		if perWeek >= 0 && maxFree >= perWeek {
			p.freePerWeek, p.maxFree = perWeek, maxFree
		}
	}
}

// WithLockTTL sets how long a rollover may hold a team lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(p *Processor) {
		if ttl > 0 {
			p.lockTTL = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(p *Processor) {
		if log != nil {
			p.logger = log
		}
	}
}
