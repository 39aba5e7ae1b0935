package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/qiniu/dcalerts/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const viewCacheKey = "dcalerts:view:latest"

// NewRedisClientFromConfig constructs a redis client from app config.
// Returns nil when redis is not configured; all cache operations are nil-safe.
func NewRedisClientFromConfig(c *config.RedisConfig) *redis.Client {
	if c == nil || c.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
}

// ViewCache mirrors the latest published view into redis so sidecar readers
// can consume it without hitting this process. Write-through only; errors are
// logged and never fail the cycle.
type ViewCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewViewCache(rdb *redis.Client, ttl time.Duration) *ViewCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ViewCache{rdb: rdb, ttl: ttl}
}

func (c *ViewCache) Publish(ctx context.Context, v View) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("view cache: marshal failed")
		return
	}
	if err := c.rdb.Set(ctx, viewCacheKey, data, c.ttl).Err(); err != nil {
		log.Error().Err(err).Msg("view cache: write failed")
	}
}
