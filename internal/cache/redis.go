package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

var Client *redis.Client

// InitRedis initializes the Redis connection
func InitRedis(addr, password string, db int) error {
	Client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("✓ Redis connected successfully")
	return nil
}

// Close closes the Redis connection
func Close() error {
	if Client != nil {
		return Client.Close()
	}
	return nil
}

// RedisGuard is a single-flight guard backed by Redis SETNX. Acquire succeeds
// for exactly one caller per key within the TTL window, across processes.
type RedisGuard struct {
	client *redis.Client
}

// NewRedisGuard creates a guard on the shared Redis client
func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

// Acquire attempts to claim the key for the TTL window.
// Returns true if this caller won the claim.
func (g *RedisGuard) Acquire(ctx context.Context, key string, token string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire guard %s: %w", key, err)
	}
	return ok, nil
}

// Release drops the claim early so the next evaluation window can fire sooner
func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, key).Err()
}
