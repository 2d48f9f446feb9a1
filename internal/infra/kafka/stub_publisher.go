package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

var _ port.EventPublisher = (*StubPublisher)(nil)

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

// UserRegistered logs user.registered events.
func (p *StubPublisher) UserRegistered(_ context.Context, userID, email string) error {
	p.logger.Info("Stub event published",
		zap.String("event_type", "user.registered"),
		zap.String("user_id", userID),
		zap.String("email", logger.MaskEmail(email)),
	)
	return nil
}

// EmailVerificationRequested logs email.verification.requested events. The
// raw token is never logged.
func (p *StubPublisher) EmailVerificationRequested(_ context.Context, email, _ string) error {
	p.logger.Info("Stub event published",
		zap.String("event_type", "email.verification.requested"),
		zap.String("email", logger.MaskEmail(email)),
	)
	return nil
}

// PasswordResetRequested logs password.reset.requested events. The raw token
// is never logged.
func (p *StubPublisher) PasswordResetRequested(_ context.Context, userID, email, _ string) error {
	p.logger.Info("Stub event published",
		zap.String("event_type", "password.reset.requested"),
		zap.String("user_id", userID),
		zap.String("email", logger.MaskEmail(email)),
	)
	return nil
}

// PasswordChanged logs password.changed events.
func (p *StubPublisher) PasswordChanged(_ context.Context, userID string) error {
	p.logger.Info("Stub event published",
		zap.String("event_type", "password.changed"),
		zap.String("user_id", userID),
	)
	return nil
}

// TwoFactorStatusChanged logs two_factor.status.changed events.
func (p *StubPublisher) TwoFactorStatusChanged(_ context.Context, userID string, enabled bool) error {
	p.logger.Info("Stub event published",
		zap.String("event_type", "two_factor.status.changed"),
		zap.String("user_id", userID),
		zap.Bool("enabled", enabled),
	)
	return nil
}

// SessionsRevoked logs sessions.revoked events.
func (p *StubPublisher) SessionsRevoked(_ context.Context, userID string, count int) error {
	p.logger.Info("Stub event published",
		zap.String("event_type", "sessions.revoked"),
		zap.String("user_id", userID),
		zap.Int("count", count),
	)
	return nil
}
