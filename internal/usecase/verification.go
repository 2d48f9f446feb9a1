package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/infra/config"
	"github.com/kryptonation/restomate/internal/infra/logger"
	"github.com/kryptonation/restomate/internal/infra/security"
	"github.com/kryptonation/restomate/internal/repository"
)

// ErrAlreadyVerified indicates the account's email is already confirmed.
var ErrAlreadyVerified = errors.New("email already verified")

// VerificationService issues and redeems email verification tokens. Tokens
// are keyed by email so redemption never exposes internal identifiers.
type VerificationService struct {
	cfg    config.AuthSettings
	users  port.UserRepository
	tokens port.TokenRepository
	codec  *security.TokenCodec
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewVerificationService constructs a VerificationService instance.
func NewVerificationService(
	cfg config.AuthSettings,
	users port.UserRepository,
	tokens port.TokenRepository,
	codec *security.TokenCodec,
	events port.EventPublisher,
	log *zap.Logger,
) *VerificationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &VerificationService{
		cfg:    cfg,
		users:  users,
		tokens: tokens,
		codec:  codec,
		events: events,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the service's time source. Intended for tests.
func (s *VerificationService) WithClock(now func() time.Time) *VerificationService {
	s.now = now
	return s
}

// Request issues a verification token for the email. An unknown email is
// reported as success so the endpoint cannot enumerate accounts; an already
// verified account gets no new token.
func (s *VerificationService) Request(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("verification requested for unknown email",
				zap.String("email", logger.MaskEmail(email)))
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if user.IsVerified {
		return nil
	}

	now := s.now().UTC()

	token, err := s.codec.Issue(security.TokenKindEmailVerification, user.ID, user.Email, s.cfg.VerificationTokenTTL)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}

	record := domain.EmailVerificationToken{
		ID:        uuid.NewString(),
		Email:     user.Email,
		TokenHash: security.HashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.VerificationTokenTTL),
	}
	if err := s.tokens.CreateVerification(ctx, record); err != nil {
		return fmt.Errorf("persist verification token: %w", err)
	}

	if s.events != nil {
		if err := s.events.EmailVerificationRequested(ctx, user.Email, token); err != nil {
			s.logger.Error("publish verification requested", zap.Error(err))
		}
	}
	return nil
}

// Verify redeems a single-use verification token and flags the account as
// verified.
func (s *VerificationService) Verify(ctx context.Context, token string) error {
	claims, err := s.codec.Decode(token, security.TokenKindEmailVerification)
	if err != nil {
		return ErrInvalidToken
	}

	record, err := s.tokens.GetVerificationByHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup verification token: %w", err)
	}

	now := s.now().UTC()
	if record.UsedAt != nil || record.IsExpired(now) || record.Email != claims.Email {
		return ErrInvalidToken
	}

	user, err := s.users.GetByEmail(ctx, record.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	consumed, err := s.tokens.ConsumeVerification(ctx, record.ID, now)
	if err != nil {
		return fmt.Errorf("consume verification token: %w", err)
	}
	if !consumed {
		return ErrInvalidToken
	}

	if err := s.users.SetVerified(ctx, user.ID, true); err != nil {
		return fmt.Errorf("set verified: %w", err)
	}

	s.logger.Info("email verified", zap.String("user_id", user.ID))
	return nil
}
