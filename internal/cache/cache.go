// Package cache stores serialized responses in Redis with a per-entry TTL.
// A cache that could not be reached at startup behaves as a permanent miss.
package cache

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// opTimeout bounds every single Redis round trip
const opTimeout = 2 * time.Second

// Cache is a best-effort key/value store for response bodies
type Cache interface {
	// Get returns the stored blob and true on a hit
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores blob for ttl. Failures are logged, never returned.
	Set(ctx context.Context, key string, blob []byte, ttl time.Duration)
	// Available reports whether the backend answered at startup
	Available() bool
}

// Key derives the cache key for an operation from its normalized parameters.
// Parameters are encoded sorted by name, so the key does not depend on the
// order they arrived in.
func Key(prefix, operation string, params url.Values) string {
	key := operation
	if encoded := params.Encode(); encoded != "" {
		key += "?" + encoded
	}
	if prefix != "" {
		key = prefix + ":" + key
	}
	return key
}

// RedisCache is a Cache backed by a Redis client
type RedisCache struct {
	client    *redis.Client
	available bool
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache wraps client and probes it once with PING. The result of the
// probe is fixed for the lifetime of the cache.
func NewRedisCache(ctx context.Context, client *redis.Client) *RedisCache {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	c := &RedisCache{client: client}
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Warn("Cache unavailable, continuing without caching")
		return c
	}
	c.available = true
	logrus.Info("Cache connected")
	return c
}

// Open connects to the Redis instance at redisURL. Invalid URLs yield a
// cache that is never available.
func Open(ctx context.Context, redisURL string) Cache {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logrus.WithError(err).Warn("Invalid REDIS_URL, continuing without caching")
		return Noop{}
	}
	opts.DialTimeout = opTimeout
	opts.ReadTimeout = opTimeout
	opts.WriteTimeout = opTimeout
	return NewRedisCache(ctx, redis.NewClient(opts))
}

// Available reports whether Redis answered the startup probe
func (c *RedisCache) Available() bool {
	return c.available
}

// Get fetches key. Backend errors count as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.available {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	blob, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logrus.WithError(err).WithField("key", key).Warn("Cache read failed")
		}
		return nil, false
	}
	return blob, true
}

// Set stores blob under key with the given TTL
func (c *RedisCache) Set(ctx context.Context, key string, blob []byte, ttl time.Duration) {
	if !c.available {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, string(blob), ttl).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

// Close releases the underlying client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Noop is a Cache that stores nothing
type Noop struct{}

var _ Cache = Noop{}

// Get always misses
func (Noop) Get(context.Context, string) ([]byte, bool) { return nil, false }

// Set discards the blob
func (Noop) Set(context.Context, string, []byte, time.Duration) {}

// Available is always false
func (Noop) Available() bool { return false }
