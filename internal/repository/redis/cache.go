package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/repository"
)

const defaultCachePrefix = "restomate:cache"

// Cache implements port.Cache on Redis with a key prefix per deployment.
type Cache struct {
	client *red.Client
	prefix string
}

var _ port.Cache = (*Cache)(nil)

// NewCache constructs a cache with the provided Redis client and key prefix.
func NewCache(client *red.Client, keyPrefix string) *Cache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

// Get returns the value for the key, or repository.ErrNotFound when the key
// is absent or expired.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Set stores the value with the supplied TTL. A non-positive TTL stores the
// value without expiry.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the key. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
