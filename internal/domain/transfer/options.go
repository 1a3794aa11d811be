package transfer

import (
	"time"

	"github.com/okian/peloton/internal/domain/roster"
	"github.com/okian/peloton/pkg/logger"
)

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithRules sets the roster rules used for staging and commit re-checks.
func WithRules(r *roster.Rules) Option {
	return func(l *Ledger) {
		if r != nil {
			l.rules = r
		}
	}
}

// WithPenaltyPerTransfer sets the points cost of each transfer beyond the free ones.
func WithPenaltyPerTransfer(points int) Option {
	return func(l *Ledger) {
		if points >= 0 {
			l.penaltyPerTransfer = points
		}
	}
}

// WithLockTTL sets how long a commit may hold the team lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.lockTTL = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithIDGenerator overrides how transfer ids are produced.
func WithIDGenerator(fn func() string) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.newID = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.logger = log
		}
	}
}
