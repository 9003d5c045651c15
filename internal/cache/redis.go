// Package cache provides the idempotency cache for terminal USSD responses.
//
// This file implements a Redis-backed cache for deployments running more
// than one decoder instance behind the gateway, where retries may land on a
// different process than the one that completed the session.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces session ids in the shared Redis keyspace.
const DefaultKeyPrefix = "hifadhi:done:"

// RedisCache implements Cache on top of a Redis server using native key TTLs.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed idempotency cache.
func NewRedisCache(addr, password string, db int, opts ...Option) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisCacheFromClient(client, opts...)
}

// NewRedisCacheFromClient wraps an existing Redis client.
func NewRedisCacheFromClient(client *redis.Client, opts ...Option) *RedisCache {
	cfg := Opts{TTL: DefaultTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("RedisCache created", "ttl", cfg.TTL)
	return &RedisCache{
		client: client,
		prefix: DefaultKeyPrefix,
		ttl:    cfg.TTL,
	}
}

func (c *RedisCache) key(sessionID string) string {
	return c.prefix + sessionID
}

// Get returns the cached response for a session. Redis expires entries
// server-side, so an expired key is simply absent.
func (c *RedisCache) Get(ctx context.Context, sessionID string) (string, bool, error) {
	val, err := c.client.Get(ctx, c.key(sessionID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		slog.Error("RedisCache.Get failed", "error", err, "session_id", sessionID)
		return "", false, fmt.Errorf("redis get for session %s failed: %w", sessionID, err)
	}
	return val, true, nil
}

// Set records the terminal response for a session with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, sessionID, response string) error {
	if err := c.client.Set(ctx, c.key(sessionID), response, c.ttl).Err(); err != nil {
		slog.Error("RedisCache.Set failed", "error", err, "session_id", sessionID)
		return fmt.Errorf("redis set for session %s failed: %w", sessionID, err)
	}
	slog.Debug("RedisCache.Set: cached terminal response", "session_id", sessionID)
	return nil
}

// Close releases the underlying Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
