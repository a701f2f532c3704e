package infra

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache backs the result cache with a shared Redis instance so
// multiple engine processes can reuse each other's channel analytics.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection. A
// connection failure returns the error; the caller should fall back to
// running without a cache.
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// Get retrieves a payload. Any Redis error is reported as a miss, so a
// backend outage behaves exactly like running without a cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("redis cache get %s: %v", key, err)
		}
		return nil, false
	}
	return val, true
}

// Set stores a payload. Errors are logged and swallowed.
func (c *RedisCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		log.Printf("redis cache set %s: %v", key, err)
	}
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
