// Package dedupe remembers provider message ids in Redis.
package dedupe

import (
	"context"
	"time"

	"autoreply/pkg/cache"
)

const keyPrefix = "autoreply:inbound:"

// RedisDeduper implements out.InboundDeduper with SETNX and a TTL.
type RedisDeduper struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

// NewRedisDeduper creates a deduper. A nil or disabled cache reports every
// key as first seen.
func NewRedisDeduper(c *cache.RedisCache, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisDeduper{cache: c, ttl: ttl}
}

// FirstSeen returns true the first time key is presented within the TTL. An
// empty key is always first seen. On error the result is true so callers
// failing open still process the message.
func (d *RedisDeduper) FirstSeen(ctx context.Context, key string) (bool, error) {
	if key == "" || !d.cache.Enabled() {
		return true, nil
	}
	ok, err := d.cache.SetNX(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), d.ttl)
	if err != nil {
		return true, err
	}
	return ok, nil
}
