package postgres

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/peloton/internal/domain/model"
)

const releaseTimeout = 5 * time.Second

// Locker implements repository.Locker with expiring rows in the locks table.
type Locker struct {
	pool *pgxpool.Pool
}

// NewLocker creates a Locker backed by the given connection pool.
func NewLocker(pool *pgxpool.Pool) *Locker {
	return &Locker{pool: pool}
}

// Acquire takes key for ttl. An expired row is taken over in the same statement.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	defer observe("lock_acquire", time.Now())
	token := uuid.NewString()
	now := time.Now().UTC()
	tag, err := l.pool.Exec(ctx,
		`INSERT INTO locks (key, token, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
		 WHERE locks.expires_at <= $4`,
		key, token, now.Add(ttl), now,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: acquire lock %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, model.ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			defer cancel()
			_, _ = l.pool.Exec(rctx, `DELETE FROM locks WHERE key = $1 AND token = $2`, key, token)
		})
	}, nil
}
