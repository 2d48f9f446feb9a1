package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/kryptonation/restomate/internal/core/port"
)

const defaultRateLimitPrefix = "restomate:ratelimit"

// RateLimitStore counts attempts in a sliding window using Redis sorted sets.
// Scores are attempt timestamps in nanoseconds; stale members are trimmed on
// every increment.
type RateLimitStore struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)

// NewRateLimitStore constructs a store with the provided Redis client and key prefix.
func NewRateLimitStore(client *red.Client, keyPrefix string) *RateLimitStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRateLimitPrefix
	}
	return &RateLimitStore{client: client, prefix: prefix, now: time.Now}
}

// WithClock overrides the store's time source. Intended for tests.
func (s *RateLimitStore) WithClock(now func() time.Time) *RateLimitStore {
	s.now = now
	return s
}

func (s *RateLimitStore) key(k string) string {
	return fmt.Sprintf("%s:%s", s.prefix, k)
}

// Increment records an attempt, trims entries older than the window, and
// returns the count remaining inside it.
func (s *RateLimitStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	now := s.now()
	fullKey := s.key(key)
	threshold := fmt.Sprintf("%d", now.Add(-window).UnixNano())

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, fullKey, red.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.ZRemRangeByScore(ctx, fullKey, "-inf", threshold)
	card := pipe.ZCard(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis rate limit pipeline: %w", err)
	}

	return card.Val(), nil
}

// Count returns the number of attempts currently recorded for the key.
func (s *RateLimitStore) Count(ctx context.Context, key string) (int64, error) {
	count, err := s.client.ZCard(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcard: %w", err)
	}
	return count, nil
}

// Reset clears all attempts recorded for the key.
func (s *RateLimitStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of the key's window.
func (s *RateLimitStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ttl: %w", err)
	}
	return ttl, nil
}
