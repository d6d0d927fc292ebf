package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/servicecenter/api/internal/config"
)

const (
	versionKey = "catalog:ver"
	entryTTL   = 30 * time.Second
)

// Catalog is a cache-aside layer for the public product/service list
// endpoints. Keys embed a version counter that is bumped on every
// catalog mutation, so stale entries simply age out. A nil *Catalog is
// a valid no-op cache; every method degrades to a miss.
type Catalog struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

// NewCatalog connects to Redis and returns the cache layer
func NewCatalog(cfg config.RedisConfig, logger *logrus.Logger) (*Catalog, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithField("address", cfg.Address).Info("Catalog cache connected")

	return &Catalog{rdb: rdb, logger: logger}, nil
}

// Key builds a versioned cache key for a list query
func (c *Catalog) Key(ctx context.Context, kind string, cityID *int64, skip, limit int) string {
	if c == nil {
		return ""
	}
	ver, err := c.rdb.Get(ctx, versionKey).Int64()
	if err != nil && err != redis.Nil {
		c.logger.WithError(err).Debug("Cache version read failed")
	}
	city := "all"
	if cityID != nil {
		city = fmt.Sprintf("%d", *cityID)
	}
	return fmt.Sprintf("catalog:v%d:%s:%s:%d:%d", ver, kind, city, skip, limit)
}

// Get returns a cached response body, if present
func (c *Catalog) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || key == "" {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).Debug("Cache read failed")
		}
		return nil, false
	}
	return data, true
}

// Set stores a response body under key with a short TTL
func (c *Catalog) Set(ctx context.Context, key string, value []byte) {
	if c == nil || key == "" {
		return
	}
	if err := c.rdb.Set(ctx, key, value, entryTTL).Err(); err != nil {
		c.logger.WithError(err).Debug("Cache write failed")
	}
}

// Bump invalidates all list entries by advancing the version counter
func (c *Catalog) Bump(ctx context.Context) {
	if c == nil {
		return
	}
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		c.logger.WithError(err).Debug("Cache version bump failed")
	}
}

// Close closes the Redis connection
func (c *Catalog) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
