package wildcard

import (
	"time"

	"github.com/okian/peloton/pkg/logger"
)

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithClock overrides the time source used for race-start checks.
func WithClock(clock func() time.Time) Option {
	return func(m *Machine) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithLockTTL sets how long a transition may hold the team lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Machine) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Machine) {
		if log != nil {
			m.logger = log
		}
	}
}
