package dedupe

// Option applies a configuration option to the in-memory marker.
type Option func(*InMemoryMarker)

// WithMaxSize bounds the number of keys kept in memory.
// If maxSize > 0: bounded mode, oldest keys evicted first.
// If maxSize <= 0: unbounded mode.
func WithMaxSize(maxSize int) Option {
	return func(m *InMemoryMarker) {
		m.maxSize = maxSize
	}
}
