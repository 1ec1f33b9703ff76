package media

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/joshua-takyi/eventradar/internal/clock"
	"github.com/joshua-takyi/eventradar/internal/metrics"
)

const redisKeyPrefix = "media:url:"

// RedisCache shares signed URLs between API instances. Redis expires the key
// with the URL, so stale entries never need a purge.
type RedisCache struct {
	client *redis.Client
	clock  clock.Clock
	logger *slog.Logger
}

// NewRedisCache reads the same clock as the resolver so key TTLs agree with
// entry expiries.
func NewRedisCache(client *redis.Client, clk clock.Clock, logger *slog.Logger) *RedisCache {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, clock: clk, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Entry, bool) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis url cache read failed", "error", err)
		}
		metrics.RecordCacheLookup("redis", false)
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		c.logger.Warn("redis url cache entry corrupt", "error", err)
		metrics.RecordCacheLookup("redis", false)
		return Entry{}, false
	}
	metrics.RecordCacheLookup("redis", true)
	return e, true
}

func (c *RedisCache) Set(ctx context.Context, key string, e Entry) {
	ttl := e.ExpiresAt.Sub(c.clock.Now())
	if ttl <= 0 {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, payload, ttl).Err(); err != nil {
		c.logger.Warn("redis url cache write failed", "error", err)
	}
}
