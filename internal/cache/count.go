package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"CrudAPI/internal/logger"
)

const (
	keyPrefix  = "crudapi:count:"
	versionKey = keyPrefix + "version"
)

// CountCache memoizes paged-envelope totals in redis. Every write bumps a
// global version, so cached totals never outlive a change; the TTL bounds
// memory. A nil *CountCache computes every count.
type CountCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCountCache returns nil when rdb is nil.
func NewCountCache(rdb *redis.Client, ttl time.Duration) *CountCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CountCache{rdb: rdb, ttl: ttl}
}

// Count returns the cached total for the query, or runs compute and stores it.
// Redis failures fall back to compute.
func (c *CountCache) Count(ctx context.Context, sql string, args []any, compute func(context.Context) (int64, error)) (int64, error) {
	if c == nil {
		return compute(ctx)
	}
	version, err := c.version(ctx)
	if err != nil {
		c.warn(ctx, "count_cache_version_failed", err)
		return compute(ctx)
	}
	key := Key(version, sql, args)

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		if n, perr := strconv.ParseInt(cached, 10, 64); perr == nil {
			return n, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.warn(ctx, "count_cache_get_failed", err)
	}

	n, err := compute(ctx)
	if err != nil {
		return 0, err
	}
	if err := c.rdb.Set(ctx, key, n, c.ttl).Err(); err != nil {
		c.warn(ctx, "count_cache_set_failed", err)
	}
	return n, nil
}

// Invalidate makes every cached total stale.
func (c *CountCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		c.warn(ctx, "count_cache_invalidate_failed", err)
	}
}

// Flush deletes every count cache key.
func (c *CountCache) Flush(ctx context.Context) error {
	if c == nil {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, keyPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan error: %w", err)
	}
	return nil
}

func (c *CountCache) version(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *CountCache) warn(ctx context.Context, msg string, err error) {
	logger.FromContext(ctx).Warn(msg, map[string]any{"error": err.Error()})
}

// Key derives the cache key of a count query at a cache version.
func Key(version int64, sql string, args []any) string {
	h := xxhash.New()
	_, _ = h.WriteString(sql)
	for _, a := range args {
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(fmt.Sprintf("%T:%v", a, a))
	}
	return fmt.Sprintf("%s%d:%016x", keyPrefix, version, h.Sum64())
}
