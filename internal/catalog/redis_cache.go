// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/gatehouse/internal/logging"
)

// Key layout:
//
//	gatehouse:action:<method>:<path> -> action   (TTL'd string)
//	gatehouse:action-index:<method>  -> set of entry keys for invalidation
const (
	redisKeyPrefix      = "gatehouse:action:"
	redisIndexKeyPrefix = "gatehouse:action-index:"
)

// RedisActionCache is a distributed ActionCache backed by Redis, for
// multi-instance deployments where one instance's permission registration
// must invalidate every instance's cache.
type RedisActionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisActionCache creates a Redis-backed action cache. A non-positive
// TTL falls back to 5 minutes.
func NewRedisActionCache(client *redis.Client, ttl time.Duration) *RedisActionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisActionCache{client: client, ttl: ttl}
}

func (c *RedisActionCache) Get(ctx context.Context, method, path string) (string, bool) {
	action, err := c.client.Get(ctx, redisKeyPrefix+cacheKey(method, path)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("action cache get failed, treating as miss")
		return "", false
	}
	return action, true
}

func (c *RedisActionCache) Set(ctx context.Context, method, path, action string) {
	key := redisKeyPrefix + cacheKey(method, path)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, action, c.ttl)
	pipe.SAdd(ctx, redisIndexKeyPrefix+method, key)
	pipe.Expire(ctx, redisIndexKeyPrefix+method, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("action cache set failed")
	}
}

func (c *RedisActionCache) InvalidateMethod(ctx context.Context, method string) {
	indexKey := redisIndexKeyPrefix + method
	keys, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("action cache invalidation failed")
		return
	}
	keys = append(keys, indexKey)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("action cache invalidation failed")
	}
}

// Close is a no-op; the Redis client is owned by the caller.
func (c *RedisActionCache) Close() {}

var _ ActionCache = (*RedisActionCache)(nil)
