package memory

import (
	"context"
	"sync"
	"time"

	"github.com/okian/peloton/internal/domain/model"
)

type lease struct {
	token   uint64
	expires time.Time
}

// Locker is an in-process keyed try-lock with expiring leases.
type Locker struct {
	mu     sync.Mutex
	leases map[string]lease
	next   uint64
	clock  func() time.Time
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{leases: make(map[string]lease), clock: time.Now}
}

// Acquire takes key for ttl or returns model.ErrLockHeld.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if cur, ok := l.leases[key]; ok && now.Before(cur.expires) {
		return nil, model.ErrLockHeld
	}
	l.next++
	token := l.next
	l.leases[key] = lease{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// An expired lease may already belong to someone else.
			if cur, ok := l.leases[key]; ok && cur.token == token {
				delete(l.leases, key)
			}
		})
	}, nil
}
