// Package dedupe defines processed markers for at-least-once batch jobs.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Marker records processed keys so a re-executed job applies each delta once.
type Marker interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) (bool, error)

	// Unrecord removes a key so the guarded work can be retried. Only call it
	// when the work behind a freshly recorded key failed.
	Unrecord(ctx context.Context, key string) error

	// Seen reports whether key is recorded without recording it.
	Seen(ctx context.Context, key string) (bool, error)
}

// InMemoryMarker implements Marker with a map. In bounded mode the oldest
// keys are evicted first.
type InMemoryMarker struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int // 0 or negative = unbounded
	size    atomic.Int64
}

// NewInMemoryMarker creates an in-process marker set. It is unbounded unless
// WithMaxSize is given.
func NewInMemoryMarker(opts ...Option) *InMemoryMarker {
	m := &InMemoryMarker{
		seen:  make(map[string]*list.Element),
		order: list.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *InMemoryMarker) SeenAndRecord(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[key]; ok {
		return true, nil
	}
	if m.maxSize > 0 && len(m.seen) >= m.maxSize {
		m.evictOldest()
	}
	m.seen[key] = m.order.PushBack(key)
	m.size.Add(1)
	return false, nil
}

func (m *InMemoryMarker) Unrecord(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.seen[key]; ok {
		m.order.Remove(el)
		delete(m.seen, key)
		m.size.Add(-1)
	}
	return nil
}

func (m *InMemoryMarker) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[key]
	return ok, nil
}

// evictOldest must be called with m.mu held.
func (m *InMemoryMarker) evictOldest() {
	front := m.order.Front()
	if front == nil {
		return
	}
	m.order.Remove(front)
	delete(m.seen, front.Value.(string))
	m.size.Add(-1)
}

// Size returns the number of recorded keys.
func (m *InMemoryMarker) Size() int64 {
	return m.size.Load()
}
