package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/infra/config"
	"github.com/kryptonation/restomate/internal/infra/security"
	"github.com/kryptonation/restomate/internal/transport/http/handlers"
	"github.com/kryptonation/restomate/internal/transport/http/middleware"
	"github.com/kryptonation/restomate/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth         *usecase.AuthService
	Registration *usecase.RegistrationService
	Verification *usecase.VerificationService
	Passwords    *usecase.PasswordService
	TwoFactor    *usecase.TwoFactorService
	Users        *usecase.UserService
	Roles        *usecase.RoleService
	Access       *usecase.AccessService
}

// DatabaseChecker exposes readiness behavior for the relational store.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behavior for the ephemeral store.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies encapsulates everything route registration needs.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Codec       *security.TokenCodec
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// Register configures the gin engine with middleware and every route group.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS([]string{"*"}))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument())
	}

	requireAuth := middleware.RequireAuth(deps.Codec)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rateCfg := deps.Config.RateLimit
	window := rateCfg.WindowDuration

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Config.Auth.AccessTokenTTL)
		authHandler.RegisterRoutes(authGroup, requireAuth,
			deps.RateLimiter.Limit("login", rateCfg.LoginMaxAttempts, window))

		userGroup := api.Group("/user")
		registrationHandler := handlers.NewRegistrationHandler(deps.Services.Registration, deps.Services.Verification)
		registrationHandler.RegisterRoutes(userGroup,
			deps.RateLimiter.Limit("register", rateCfg.RegisterMaxAttempts, window))

		userHandler := handlers.NewUserHandler(deps.Services.Users)
		userHandler.RegisterMeRoute(userGroup, requireAuth)

		passwordGroup := api.Group("/password")
		passwordHandler := handlers.NewPasswordHandler(deps.Services.Passwords)
		passwordHandler.RegisterRoutes(passwordGroup, requireAuth,
			deps.RateLimiter.Limit("password-reset", rateCfg.PasswordResetMaxAttempts, window))

		twoFactorGroup := api.Group("/2fa")
		twoFactorHandler := handlers.NewTwoFactorHandler(deps.Services.TwoFactor)
		twoFactorHandler.RegisterRoutes(twoFactorGroup, requireAuth)

		roleHandler := handlers.NewRoleHandler(deps.Services.Roles)
		roleGroup := api.Group("/roles", requireAuth,
			middleware.RequirePermission(deps.Services.Access, "roles", "manage"))
		roleHandler.RegisterRoutes(roleGroup)
		permissionGroup := api.Group("/permissions", requireAuth,
			middleware.RequirePermission(deps.Services.Access, "roles", "manage"))
		roleHandler.RegisterPermissionRoutes(permissionGroup)

		adminUserGroup := api.Group("/users", requireAuth,
			middleware.RequirePermission(deps.Services.Access, "users", "manage"))
		userHandler.RegisterRoutes(adminUserGroup)
	}

	return r
}
