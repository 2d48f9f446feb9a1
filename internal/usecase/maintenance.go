package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/port"
)

// MaintenanceService runs the periodic cleanup sweeps. Revoked refresh rows
// stay in place until their expiry passes; this is where they leave.
type MaintenanceService struct {
	tokens port.TokenRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewMaintenanceService constructs a MaintenanceService instance.
func NewMaintenanceService(tokens port.TokenRepository, log *zap.Logger) *MaintenanceService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MaintenanceService{
		tokens: tokens,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the service's time source. Intended for tests.
func (s *MaintenanceService) WithClock(now func() time.Time) *MaintenanceService {
	s.now = now
	return s
}

// PurgeExpiredTokens deletes refresh token rows whose expiry has passed and
// returns how many were removed.
func (s *MaintenanceService) PurgeExpiredTokens(ctx context.Context) (int, error) {
	count, err := s.tokens.DeleteExpiredRefresh(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired refresh tokens: %w", err)
	}
	if count > 0 {
		s.logger.Info("purged expired refresh tokens", zap.Int("count", count))
	}
	return count, nil
}

// Run purges on the given interval until the context is cancelled.
func (s *MaintenanceService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeExpiredTokens(ctx); err != nil {
				s.logger.Error("token purge failed", zap.Error(err))
			}
		}
	}
}
