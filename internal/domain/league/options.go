package league

import (
	"time"

	"github.com/okian/peloton/pkg/logger"
)

// Option applies a configuration option to the Board.
type Option func(*Board)

// WithClock overrides the time source used for creation and join times.
func WithClock(clock func() time.Time) Option {
	return func(b *Board) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithCodeGenerator replaces the random join-code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(b *Board) {
		if gen != nil {
			b.codes = gen
		}
	}
}

// WithCodeAttempts sets how many codes are tried before giving up.
func WithCodeAttempts(n int) Option {
	return func(b *Board) {
		if n > 0 {
			b.attempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(b *Board) {
		if log != nil {
			b.logger = log
		}
	}
}
