// Gatehouse - RBAC Authorization Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisCache(t *testing.T) (*RedisActionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisActionCache(client, time.Minute), mr
}

func TestRedisActionCacheRoundTrip(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "GET", "/users"); ok {
		t.Fatal("unexpected hit on empty cache")
	}

	cache.Set(ctx, "GET", "/users", "user:list")
	action, ok := cache.Get(ctx, "GET", "/users")
	if !ok || action != "user:list" {
		t.Fatalf("Get = (%q, %v), want (user:list, true)", action, ok)
	}
}

func TestRedisActionCacheTTL(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	cache.Set(ctx, "GET", "/users", "user:list")
	mr.FastForward(2 * time.Minute)

	if _, ok := cache.Get(ctx, "GET", "/users"); ok {
		t.Error("expired entry still served")
	}
}

func TestRedisActionCacheInvalidateMethod(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()

	cache.Set(ctx, "GET", "/users", "user:list")
	cache.Set(ctx, "GET", "/roles", "role:list")
	cache.Set(ctx, "POST", "/users", "user:create")

	cache.InvalidateMethod(ctx, "GET")

	if _, ok := cache.Get(ctx, "GET", "/users"); ok {
		t.Error("GET /users survived invalidation")
	}
	if _, ok := cache.Get(ctx, "GET", "/roles"); ok {
		t.Error("GET /roles survived invalidation")
	}
	if action, ok := cache.Get(ctx, "POST", "/users"); !ok || action != "user:create" {
		t.Errorf("POST entry dropped by GET invalidation: (%q, %v)", action, ok)
	}
}

func TestRedisActionCacheServesAcrossClients(t *testing.T) {
	mr := miniredis.RunT(t)
	a := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = a.Close(); _ = b.Close() })

	cacheA := NewRedisActionCache(a, time.Minute)
	cacheB := NewRedisActionCache(b, time.Minute)
	ctx := context.Background()

	cacheA.Set(ctx, "GET", "/users", "user:list")
	if action, ok := cacheB.Get(ctx, "GET", "/users"); !ok || action != "user:list" {
		t.Fatalf("second instance miss: (%q, %v)", action, ok)
	}

	cacheB.InvalidateMethod(ctx, "GET")
	if _, ok := cacheA.Get(ctx, "GET", "/users"); ok {
		t.Error("first instance served entry invalidated by second")
	}
}
