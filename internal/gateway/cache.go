package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clawmart/clawmart/internal/metrics"
)

// ListingCache holds rendered public listings. Failures degrade to misses.
type ListingCache interface {
	Get(ctx context.Context, key string) (*Listing, bool)
	Set(ctx context.Context, key string, l *Listing)
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func listingKey(category string) string {
	return "clawmart:listing:" + category
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Listing, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "listing cache read failed", "key", key, "error", err)
			metrics.ListingCache.WithLabelValues("error").Inc()
			return nil, false
		}
		metrics.ListingCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	var l Listing
	if err := json.Unmarshal(data, &l); err != nil {
		slog.WarnContext(ctx, "listing cache entry is corrupt", "key", key, "error", err)
		metrics.ListingCache.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.ListingCache.WithLabelValues("hit").Inc()
	return &l, true
}

func (c *RedisCache) Set(ctx context.Context, key string, l *Listing) {
	data, err := json.Marshal(l)
	if err != nil {
		slog.WarnContext(ctx, "failed to encode listing", "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "listing cache write failed", "key", key, "error", err)
	}
}

type noCache struct{}

func (noCache) Get(context.Context, string) (*Listing, bool) { return nil, false }
func (noCache) Set(context.Context, string, *Listing)        {}
