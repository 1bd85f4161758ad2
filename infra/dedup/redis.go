// Package dedup contains the Redis implementation of the dispatch dedup
// guard. A short-lived SET NX key per (ride, notification type, recipient)
// suppresses duplicate notifications when the same status event is ingested
// more than once.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a dedup key suppresses repeats. Ride lifecycles
// are measured in minutes, so six hours comfortably covers replays without
// pinning keys forever.
const DefaultTTL = 6 * time.Hour

// RedisGuard implements dispatch.DedupGuard on a Redis instance.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisGuard connects to the given address and fails fast if the instance
// is unreachable. A non-positive ttl selects DefaultTTL.
func NewRedisGuard(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisGuard, error) {
	if addr == "" {
		return nil, fmt.Errorf("dedup: redis address required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("dedup: redis ping: %w", err)
	}
	return NewRedisGuardWithClient(rdb, ttl), nil
}

// NewRedisGuardWithClient wraps an existing client. The caller keeps
// ownership of the client unless Close is used.
func NewRedisGuardWithClient(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

// Acquire atomically claims the dedup slot for one notification. It returns
// false when another dispatch already claimed it within the TTL window.
func (g *RedisGuard) Acquire(ctx context.Context, rideID, notificationType, recipientID string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, dedupKey(rideID, notificationType, recipientID), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: acquire: %w", err)
	}
	return ok, nil
}

// Close releases the underlying client.
func (g *RedisGuard) Close() error {
	return g.rdb.Close()
}

func dedupKey(rideID, notificationType, recipientID string) string {
	return "notify:dedup:" + rideID + ":" + notificationType + ":" + recipientID
}
