package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"study-partner-backend/internal/geo"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "geocode:cep:"

// RedisCache is a Cache shared between replicas through Redis
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// ConnectRedis creates a Redis client from a URL and verifies connectivity
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// NewRedisCache creates a new Redis-backed cache
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached coordinate; a missing key is a miss, not an error
func (c *RedisCache) Get(ctx context.Context, key string) (geo.Coordinate, bool, error) {
	val, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return geo.Coordinate{}, false, nil
	}
	if err != nil {
		return geo.Coordinate{}, false, fmt.Errorf("failed to read cached coordinate: %w", err)
	}

	var coord geo.Coordinate
	if err := json.Unmarshal(val, &coord); err != nil {
		return geo.Coordinate{}, false, fmt.Errorf("failed to decode cached coordinate: %w", err)
	}
	return coord, true, nil
}

// Set stores a coordinate with the cache TTL
func (c *RedisCache) Set(ctx context.Context, key string, coord geo.Coordinate) error {
	data, err := json.Marshal(coord)
	if err != nil {
		return fmt.Errorf("failed to encode coordinate: %w", err)
	}
	if err := c.rdb.Set(ctx, redisKeyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache coordinate: %w", err)
	}
	return nil
}
