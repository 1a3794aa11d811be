package memory

import "time"

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithFaultInjector makes operations fail when fn returns an error. op is the
// operation name (for example "add_cyclist") and key the id it touches.
func WithFaultInjector(fn func(op, key string) error) Option {
	return func(s *Store) {
		s.fault = fn
	}
}
