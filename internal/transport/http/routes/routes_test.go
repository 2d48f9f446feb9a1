package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/infra/config"
	"github.com/kryptonation/restomate/internal/infra/security"
	"github.com/kryptonation/restomate/internal/transport/http/middleware"
)

func testEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	codec, err := security.NewTokenCodec("0123456789abcdef0123456789abcdef", "restomate-test")
	if err != nil {
		t.Fatalf("new token codec: %v", err)
	}

	cfg := &config.AppConfig{}
	cfg.App.Env = "test"

	return Register(Dependencies{
		Config:      cfg,
		Logger:      zap.NewNop(),
		Codec:       codec,
		RateLimiter: middleware.NewRateLimiter(nil, nil),
	})
}

func TestHealthzResponds(t *testing.T) {
	engine := testEngine(t)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestReadyzWithoutChecksRespondsOK(t *testing.T) {
	engine := testEngine(t)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestMetricsEndpointResponds(t *testing.T) {
	engine := testEngine(t)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	engine := testEngine(t)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/user/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated /me status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
