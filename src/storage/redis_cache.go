package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"battery-observer/src/interfaces"
	"battery-observer/src/logger"
	"battery-observer/src/models"

	"github.com/redis/go-redis/v9"
)

// keySetter is the subset of the redis client the cache writes through
type keySetter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache keeps the latest reading of every entity under
// battery:last:<entity_id> so other services can read current levels. Keys
// expire so entities that stop reporting disappear.
type RedisCache struct {
	Addr   string
	TTL    time.Duration
	Logger *logger.Logger

	client *redis.Client
	setter keySetter
}

var _ interfaces.IReadingArchive = (*RedisCache)(nil)

// -----------------------------------------------------------------------------

func NewRedisCache(cfg *models.MConfig, log *logger.Logger) *RedisCache {
	return &RedisCache{
		Addr:   cfg.Cache.RedisAddr,
		TTL:    time.Duration(cfg.Cache.TTLHours) * time.Hour,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// CacheKey is the redis key holding an entity's latest reading.
func CacheKey(entityID string) string {
	return fmt.Sprintf("battery:last:%s", entityID)
}

// -----------------------------------------------------------------------------

func (c *RedisCache) Name() string {
	return "redis"
}

// -----------------------------------------------------------------------------

func (c *RedisCache) Initialize(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr: c.Addr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return fmt.Errorf("redis unreachable at %s: %w", c.Addr, err)
	}
	c.client = rdb
	c.setter = rdb
	c.Logger.Info("Redis cache connected at %s (ttl %s)", c.Addr, c.TTL)
	return nil
}

// -----------------------------------------------------------------------------

func (c *RedisCache) SaveReading(ctx context.Context, r models.MReading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.setter.Set(ctx, CacheKey(r.EntityID), payload, c.TTL).Err()
}

// -----------------------------------------------------------------------------

func (c *RedisCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
