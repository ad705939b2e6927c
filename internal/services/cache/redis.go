package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phambaophuc/upcycle-vision/internal/config"
	"github.com/phambaophuc/upcycle-vision/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "analysis_cache:"

type RedisCache struct {
	redisClient   *redis.Client
	cacheDuration time.Duration
	logger        *zap.Logger
}

func NewRedisCache(cfg config.RedisConfig, logger *zap.Logger) *RedisCache {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisCache{
		redisClient:   redisClient,
		cacheDuration: cfg.CacheDuration,
		logger:        logger,
	}
}

func Key(digest string) string {
	return keyPrefix + digest
}

func (c *RedisCache) Get(ctx context.Context, digest string) (*models.Analysis, bool, error) {
	data, err := c.redisClient.Get(ctx, Key(digest)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Cache miss
		}
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var analysis models.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		c.logger.Warn("Dropping undecodable cache entry", zap.String("digest", digest), zap.Error(err))
		c.redisClient.Del(ctx, Key(digest))
		return nil, false, nil
	}

	return &analysis, true, nil
}

func (c *RedisCache) Set(ctx context.Context, digest string, analysis *models.Analysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	return c.redisClient.Set(ctx, Key(digest), data, c.cacheDuration).Err()
}

// HealthCheck pings Redis.
func (c *RedisCache) HealthCheck(ctx context.Context) string {
	if err := c.redisClient.Ping(ctx).Err(); err != nil {
		return models.HealthUnhealthy + ": " + err.Error()
	}
	return models.HealthHealthy
}

func (c *RedisCache) Close() error {
	return c.redisClient.Close()
}
