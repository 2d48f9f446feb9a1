package port

import (
	"context"
	"time"
)

// Cache is a generic TTL key-value store for the ephemeral layer.
// Implementations must isolate keys per logical namespace.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RateLimitStore counts events in a sliding window. It backs the login
// throttle; durable lockout state lives in the relational store, never here.
type RateLimitStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	Count(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}
