package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type memoryRateLimitStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (s *memoryRateLimitStore) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	if s.counts == nil {
		s.counts = make(map[string]int64)
	}
	s.counts[key]++
	return s.counts[key], nil
}

func (s *memoryRateLimitStore) Count(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key], nil
}

func (s *memoryRateLimitStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, key)
	return nil
}

func (s *memoryRateLimitStore) TTL(_ context.Context, _ string) (time.Duration, error) {
	return 42 * time.Second, nil
}

func limitedRouter(store *memoryRateLimitStore, max int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	limiter := NewRateLimiter(store, zap.NewNop())
	r.POST("/login", limiter.Limit("login", max, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	r := limitedRouter(&memoryRateLimitStore{}, 3)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	r := limitedRouter(&memoryRateLimitStore{}, 2)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "42" {
		t.Errorf("Retry-After = %q, want 42", w.Header().Get("Retry-After"))
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	store := &memoryRateLimitStore{err: errors.New("redis down")}
	r := limitedRouter(store, 1)

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200 with a degraded store", i+1, w.Code)
		}
	}
}
