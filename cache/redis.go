/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Zuplu/emailcheck/internal/utils/log"
	"github.com/redis/go-redis/v9"
)

const (
	REDIS_CACHE_KEY_PREFIX = "EMAILCHECK-"
	REDIS_DIAL_TIMEOUT     = 2 * time.Second
	REDIS_SCAN_COUNT       = 256
)

// RedisCache stores JSON-encoded values in Redis (or Valkey). Transport
// errors never reach the caller: reads degrade to a miss, writes are
// dropped.
type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(address, password string, db int, dialTimeout time.Duration) *RedisCache {
	if address == "" {
		address = "127.0.0.1:6379"
	}
	if dialTimeout <= 0 {
		dialTimeout = REDIS_DIAL_TIMEOUT
	}
	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     password,
		DB:           db,
		DialTimeout:  dialTimeout,
		ReadTimeout:  dialTimeout,
		WriteTimeout: dialTimeout,
		MaxRetries:   -1,
	})
	return &RedisCache{client}
}

// NewRedisCacheFromClient wraps an already configured client.
func NewRedisCacheFromClient(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client}
}

// Get decodes into any, so numbers come back as float64. Fetch uses
// GetInto instead and gets the type it asks for.
func (c *RedisCache) Get(ctx context.Context, key string) (any, bool) {
	var value any
	if !c.GetInto(ctx, key, &value) {
		return nil, false
	}
	return value, true
}

func (c *RedisCache) GetInto(ctx context.Context, key string, dst any) bool {
	jsonData, err := c.client.Get(ctx, REDIS_CACHE_KEY_PREFIX+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debugf("cache: redis get %q: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(jsonData, dst); err != nil {
		log.Debugf("cache: redis value for %q does not decode into %T: %v", key, dst, err)
		return false
	}
	return true
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	jsonData, err := json.Marshal(value)
	if err != nil {
		log.Debugf("cache: cannot encode value for %q: %v", key, err)
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, REDIS_CACHE_KEY_PREFIX+key, jsonData, ttl).Err(); err != nil {
		log.Debugf("cache: redis set %q: %v", key, err)
	}
}

func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, REDIS_CACHE_KEY_PREFIX+key).Err(); err != nil {
		log.Debugf("cache: redis del %q: %v", key, err)
	}
}

// Clear removes every key under our prefix; other data in the same
// database is left alone.
func (c *RedisCache) Clear(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, REDIS_CACHE_KEY_PREFIX+"*", REDIS_SCAN_COUNT).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Debugf("cache: redis scan: %v", err)
		return
	}
	for _, key := range keys {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			log.Debugf("cache: redis del %q: %v", key, err)
		}
	}
}

func (c *RedisCache) Exists(ctx context.Context, key string) bool {
	n, err := c.client.Exists(ctx, REDIS_CACHE_KEY_PREFIX+key).Result()
	if err != nil {
		log.Debugf("cache: redis exists %q: %v", key, err)
		return false
	}
	return n > 0
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
