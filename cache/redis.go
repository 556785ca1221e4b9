package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a Redis-based cache implementation.
type RedisCache struct {
	client *redis.Client
	config Config
	owned  bool
}

// NewRedisCache creates a Redis cache with an existing client. Closing the cache
// leaves the client open.
func NewRedisCache(client *redis.Client, config Config) *RedisCache {
	return &RedisCache{
		client: client,
		config: applyDefaults(config),
	}
}

// NewRedisCacheFromURL creates a Redis cache from a Redis URL.
// URL format: redis://[user[:password]@]host[:port][/db][?option=value]
func NewRedisCacheFromURL(redisURL string, config Config) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisCache{
		client: redis.NewClient(opts),
		config: applyDefaults(config),
		owned:  true,
	}, nil
}

// Get retrieves an entry from Redis.
func (rc *RedisCache) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := rc.client.Get(ctx, rc.makeKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}

	if !entry.IsFresh() {
		rc.client.Del(ctx, rc.makeKey(key))
		return nil, nil
	}

	return &entry, nil
}

// Set stores an entry in Redis, expiring it after its TTL.
func (rc *RedisCache) Set(ctx context.Context, entry *Entry) error {
	stored := *entry
	if stored.TTL == 0 {
		stored.TTL = rc.config.TTL
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if err := rc.client.Set(ctx, rc.makeKey(stored.Key), data, stored.TTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// Delete removes an entry from Redis.
func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	if err := rc.client.Del(ctx, rc.makeKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Clear removes all entries with the configured prefix.
func (rc *RedisCache) Clear(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, rc.config.Prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := rc.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis clear failed: %w", err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}

	return nil
}

// Close closes the Redis client if the cache created it.
func (rc *RedisCache) Close() error {
	if rc.owned {
		return rc.client.Close()
	}
	return nil
}

// makeKey creates a Redis key with the configured prefix.
func (rc *RedisCache) makeKey(key string) string {
	return rc.config.Prefix + key
}
