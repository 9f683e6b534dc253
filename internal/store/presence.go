package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceCache mirrors each student's latest IN/OUT direction in redis so
// dashboards can read live occupancy without hitting Postgres. The database
// stays authoritative; a stale or missing key only degrades to a DB lookup.
type PresenceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceCache creates a cache with the given entry TTL.
func NewPresenceCache(client *redis.Client, ttl time.Duration) *PresenceCache {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &PresenceCache{client: client, ttl: ttl}
}

func presenceKey(studentID string) string {
	return "hostel:presence:" + studentID
}

// Set records the student's current direction.
func (c *PresenceCache) Set(ctx context.Context, studentID, direction string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, presenceKey(studentID), direction, c.ttl).Err()
}

// Get returns the cached direction, or "" when unknown.
func (c *PresenceCache) Get(ctx context.Context, studentID string) (string, error) {
	if c == nil || c.client == nil {
		return "", nil
	}
	val, err := c.client.Get(ctx, presenceKey(studentID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}
