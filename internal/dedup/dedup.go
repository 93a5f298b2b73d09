// Package dedup provides an optional idempotency guard over landing
// notifications. Delivery is at-least-once and the pipeline tolerates
// duplicate dispatch by design; deployments that want to suppress it
// can enable this guard.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard answers whether a notification has been seen before.
type Guard interface {
	// FirstSeen records the key and reports true if this is its first
	// appearance within the TTL window.
	FirstSeen(ctx context.Context, key string) (bool, error)
	// Forget releases a key claimed by FirstSeen. Callers use it when
	// the work behind the claim failed, so the redelivered message is
	// treated as new instead of suppressed.
	Forget(ctx context.Context, key string) error
	Close() error
}

type redisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard creates a Guard backed by Redis SET NX.
func NewRedisGuard(addr string, ttl time.Duration) (Guard, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &redisGuard{client: client, ttl: ttl}, nil
}

func (g *redisGuard) FirstSeen(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, "dedup:"+key, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return ok, nil
}

func (g *redisGuard) Forget(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, "dedup:"+key).Err(); err != nil {
		return fmt.Errorf("dedup release failed: %w", err)
	}
	return nil
}

func (g *redisGuard) Close() error {
	return g.client.Close()
}

// NoOpGuard treats every notification as new (dedup disabled).
type NoOpGuard struct{}

func (NoOpGuard) FirstSeen(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func (NoOpGuard) Forget(ctx context.Context, key string) error {
	return nil
}

func (NoOpGuard) Close() error {
	return nil
}
