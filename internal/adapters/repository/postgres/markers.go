package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MarkerStore implements dedupe.Marker with a keyed table.
type MarkerStore struct {
	pool *pgxpool.Pool
}

// NewMarkerStore creates a MarkerStore backed by the given connection pool.
func NewMarkerStore(pool *pgxpool.Pool) *MarkerStore {
	return &MarkerStore{pool: pool}
}

// SeenAndRecord inserts key and reports whether it was already there.
func (m *MarkerStore) SeenAndRecord(ctx context.Context, key string) (bool, error) {
	defer observe("marker_record", time.Now())
	tag, err := m.pool.Exec(ctx,
		`INSERT INTO processed_markers (key) VALUES ($1) ON CONFLICT (key) DO NOTHING`, key)
	if err != nil {
		return false, fmt.Errorf("postgres: record marker %s: %w", key, err)
	}
	return tag.RowsAffected() == 0, nil
}

// Unrecord removes key.
func (m *MarkerStore) Unrecord(ctx context.Context, key string) error {
	defer observe("marker_unrecord", time.Now())
	if _, err := m.pool.Exec(ctx, `DELETE FROM processed_markers WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres: unrecord marker %s: %w", key, err)
	}
	return nil
}

// Seen reports whether key is recorded.
func (m *MarkerStore) Seen(ctx context.Context, key string) (bool, error) {
	defer observe("marker_seen", time.Now())
	var exists bool
	err := m.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_markers WHERE key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check marker %s: %w", key, err)
	}
	return exists, nil
}
