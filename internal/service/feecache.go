package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mzansigig/gigwork-backend/internal/logger"
	"github.com/mzansigig/gigwork-backend/internal/models"
)

// FeeConfigCache caches the single active fee configuration with a TTL and is
// invalidated synchronously on any config write. Constructed once and
// injected; nothing reads process-global mutable state.
type FeeConfigCache interface {
	Get(ctx context.Context) (*models.FeeConfig, bool)
	Set(ctx context.Context, cfg *models.FeeConfig)
	Invalidate(ctx context.Context)
}

// MemoryFeeConfigCache is the single-instance default.
type MemoryFeeConfigCache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	cfg       *models.FeeConfig
	expiresAt time.Time
}

func NewMemoryFeeConfigCache(ttl time.Duration) *MemoryFeeConfigCache {
	return &MemoryFeeConfigCache{ttl: ttl}
}

func (c *MemoryFeeConfigCache) Get(_ context.Context) (*models.FeeConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cfg == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.cfg, true
}

func (c *MemoryFeeConfigCache) Set(_ context.Context, cfg *models.FeeConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.expiresAt = time.Now().Add(c.ttl)
}

func (c *MemoryFeeConfigCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = nil
}

const feeConfigCacheKey = "feeconfig:active"

// RedisFeeConfigCache shares the cache across instances, so an admin write on
// one node invalidates the config everywhere.
type RedisFeeConfigCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisFeeConfigCache(client *redis.Client, ttl time.Duration) *RedisFeeConfigCache {
	return &RedisFeeConfigCache{client: client, ttl: ttl}
}

func (c *RedisFeeConfigCache) Get(ctx context.Context) (*models.FeeConfig, bool) {
	raw, err := c.client.Get(ctx, feeConfigCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Log.WithError(err).Warn("fee config cache: redis get failed, falling through to store")
		return nil, false
	}
	var cfg models.FeeConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, false
	}
	return &cfg, true
}

func (c *RedisFeeConfigCache) Set(ctx context.Context, cfg *models.FeeConfig) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, feeConfigCacheKey, raw, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).Warn("fee config cache: redis set failed")
	}
}

func (c *RedisFeeConfigCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, feeConfigCacheKey).Err(); err != nil {
		logger.Log.WithError(err).Warn("fee config cache: redis invalidate failed")
	}
}
