package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backs the presence cache and the curfew alert queue. Everything
// stored here is reconstructible from Postgres, so timeouts stay tight and
// failures degrade rather than block a scan.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     8,
	})
	return &Redis{Client: client}
}

// Healthy reports redis connectivity for the health endpoint.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}
