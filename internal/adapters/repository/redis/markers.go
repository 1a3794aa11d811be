package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MarkerStore implements dedupe.Marker with one key per marker.
type MarkerStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarkerStore creates a MarkerStore. A zero ttl keeps markers forever.
func NewMarkerStore(c *Client, ttl time.Duration) *MarkerStore {
	return &MarkerStore{rdb: c.Underlying(), ttl: ttl}
}

func markerKey(key string) string {
	return "marker:" + key
}

// SeenAndRecord sets key if absent and reports whether it was already set.
func (m *MarkerStore) SeenAndRecord(ctx context.Context, key string) (bool, error) {
	defer observe("marker_record", time.Now())
	ok, err := m.rdb.SetNX(ctx, markerKey(key), time.Now().UTC().Format(time.RFC3339), m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: record marker %s: %w", key, err)
	}
	return !ok, nil
}

// Unrecord deletes key.
func (m *MarkerStore) Unrecord(ctx context.Context, key string) error {
	defer observe("marker_unrecord", time.Now())
	if err := m.rdb.Del(ctx, markerKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: unrecord marker %s: %w", key, err)
	}
	return nil
}

// Seen reports whether key is set.
func (m *MarkerStore) Seen(ctx context.Context, key string) (bool, error) {
	defer observe("marker_seen", time.Now())
	n, err := m.rdb.Exists(ctx, markerKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check marker %s: %w", key, err)
	}
	return n > 0, nil
}
