package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitStore_IncrementCountsWindow(t *testing.T) {
	client, _ := newTestRedis(t)

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	current := base
	store := NewRateLimitStore(client, "test:ratelimit").
		WithClock(func() time.Time { return current })

	ctx := context.Background()
	window := time.Minute

	for i := 1; i <= 3; i++ {
		current = base.Add(time.Duration(i) * time.Second)
		count, err := store.Increment(ctx, "login:chef@example.com", window)
		if err != nil {
			t.Fatalf("Increment returned error: %v", err)
		}
		if count != int64(i) {
			t.Fatalf("Increment count = %d, want %d", count, i)
		}
	}

	count, err := store.Count(ctx, "login:chef@example.com")
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("Count = %d, want 3", count)
	}
}

func TestRateLimitStore_TrimsStaleAttempts(t *testing.T) {
	client, _ := newTestRedis(t)

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	current := base
	store := NewRateLimitStore(client, "test:ratelimit").
		WithClock(func() time.Time { return current })

	ctx := context.Background()
	window := time.Minute

	if _, err := store.Increment(ctx, "login:x", window); err != nil {
		t.Fatalf("Increment returned error: %v", err)
	}

	// Next attempt lands outside the window; the stale one drops off.
	current = base.Add(2 * time.Minute)
	count, err := store.Increment(ctx, "login:x", window)
	if err != nil {
		t.Fatalf("Increment returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("Increment count after window = %d, want 1", count)
	}
}

func TestRateLimitStore_Reset(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, "test:ratelimit")

	ctx := context.Background()

	if _, err := store.Increment(ctx, "login:y", time.Minute); err != nil {
		t.Fatalf("Increment returned error: %v", err)
	}
	if err := store.Reset(ctx, "login:y"); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}

	count, err := store.Count(ctx, "login:y")
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("Count after reset = %d, want 0", count)
	}
}
