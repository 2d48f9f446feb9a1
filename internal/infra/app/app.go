package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/infra/config"
	"github.com/kryptonation/restomate/internal/infra/database"
	kafkainfra "github.com/kryptonation/restomate/internal/infra/kafka"
	"github.com/kryptonation/restomate/internal/infra/logger"
	redisinfra "github.com/kryptonation/restomate/internal/infra/redis"
	"github.com/kryptonation/restomate/internal/infra/security"
	"github.com/kryptonation/restomate/internal/infra/telemetry"
	postgresrepo "github.com/kryptonation/restomate/internal/repository/postgres"
	redisrepo "github.com/kryptonation/restomate/internal/repository/redis"
	"github.com/kryptonation/restomate/internal/transport/http/middleware"
	"github.com/kryptonation/restomate/internal/transport/http/routes"
	"github.com/kryptonation/restomate/internal/usecase"
)

const (
	permissionCacheTTL = 30 * time.Second
	maintenancePeriod  = time.Hour
)

// Application owns the wired service graph and its lifecycle.
type Application struct {
	cfg         *config.AppConfig
	engine      *gin.Engine
	logger      *zap.Logger
	pool        *pgxpool.Pool
	redis       *redisinfra.Client
	producer    *kafkainfra.Producer
	maintenance *usecase.MaintenanceService
}

// New builds the application from configuration: infrastructure clients,
// repositories, services, and the HTTP engine.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	codec, err := security.NewTokenCodec(cfg.Auth.SigningSecret, cfg.Auth.Issuer)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	totpEngine := security.NewTOTPEngine(cfg.Auth.TOTPIssuer)
	passwordValidator := security.DefaultPasswordValidator()

	var eventPublisher port.EventPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("kafka producer unavailable, using stub publisher", zap.Error(err))
			producer = nil
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	repos := postgresrepo.NewRepositories(pool)
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), "restomate:rate-limit")
	decisionCache := redisrepo.NewCache(redisClient.Client(), "restomate:cache")
	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	guard := usecase.NewAccountGuard(repos.Users, cfg.Auth.LockoutThreshold, cfg.Auth.LockoutDuration, log)

	authService := usecase.NewAuthService(cfg.Auth, repos.Users, repos.Tokens, repos.BackupCodes,
		repos.AuditLogs, guard, hasher, codec, totpEngine, eventPublisher,
		rateLimitStore, cfg.RateLimit, metrics, log)
	verificationService := usecase.NewVerificationService(cfg.Auth, repos.Users, repos.Tokens,
		codec, eventPublisher, log)
	registrationService := usecase.NewRegistrationService(repos.Users, repos.AuditLogs,
		hasher, passwordValidator, verificationService, eventPublisher, log)
	passwordService := usecase.NewPasswordService(cfg.Auth, repos.Users, repos.Tokens,
		repos.AuditLogs, hasher, passwordValidator, codec, eventPublisher, log)
	twoFactorService := usecase.NewTwoFactorService(repos.Users, repos.BackupCodes,
		repos.AuditLogs, hasher, totpEngine, eventPublisher, cfg.Auth.BackupCodeCount, log)
	userService := usecase.NewUserService(repos.Users, repos.Roles, log)
	roleService := usecase.NewRoleService(repos.Roles, repos.Permissions, log)
	accessService := usecase.NewAccessService(repos.Users, repos.Roles, log).
		WithDecisionCache(decisionCache, permissionCacheTTL)
	maintenanceService := usecase.NewMaintenanceService(repos.Tokens, log)

	httpMetrics, err := middleware.NewHTTPMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Codec:       codec,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		Metrics:     httpMetrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:         authService,
			Registration: registrationService,
			Verification: verificationService,
			Passwords:    passwordService,
			TwoFactor:    twoFactorService,
			Users:        userService,
			Roles:        roleService,
			Access:       accessService,
		},
	})

	return &Application{
		cfg:         cfg,
		engine:      engine,
		logger:      log,
		pool:        pool,
		redis:       redisClient,
		producer:    producer,
		maintenance: maintenanceService,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis client", zap.Error(err))
		}
	}()
	defer func() {
		if a.producer != nil {
			if err := a.producer.Close(); err != nil {
				a.logger.Warn("close kafka producer", zap.Error(err))
			}
		}
	}()

	go a.maintenance.Run(ctx, maintenancePeriod)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
