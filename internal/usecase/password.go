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

// ErrPasswordReused indicates the new password matches the current one.
var ErrPasswordReused = errors.New("new password matches current password")

// PasswordService handles password change and the reset flow.
type PasswordService struct {
	cfg       config.AuthSettings
	users     port.UserRepository
	tokens    port.TokenRepository
	audit     port.AuditLogRepository
	hasher    port.PasswordHasher
	validator port.PasswordValidator
	codec     *security.TokenCodec
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewPasswordService constructs a PasswordService instance.
func NewPasswordService(
	cfg config.AuthSettings,
	users port.UserRepository,
	tokens port.TokenRepository,
	audit port.AuditLogRepository,
	hasher port.PasswordHasher,
	validator port.PasswordValidator,
	codec *security.TokenCodec,
	events port.EventPublisher,
	log *zap.Logger,
) *PasswordService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordService{
		cfg:       cfg,
		users:     users,
		tokens:    tokens,
		audit:     audit,
		hasher:    hasher,
		validator: validator,
		codec:     codec,
		events:    events,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the service's time source. Intended for tests.
func (s *PasswordService) WithClock(now func() time.Time) *PasswordService {
	s.now = now
	return s
}

// Change replaces the password after verifying the current one, then revokes
// every outstanding refresh token so other sessions must re-authenticate.
func (s *PasswordService) Change(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	ok, err := verifyPassword(s.hasher, currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	return s.applyNewPassword(ctx, user, newPassword, "password_change")
}

// RequestReset issues a reset token for the account behind the email. A
// missing account is reported as success so the endpoint cannot be used to
// enumerate registered addresses.
func (s *PasswordService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email",
				zap.String("email", logger.MaskEmail(email)))
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	now := s.now().UTC()

	// The reset token carries the email rather than the user id so the raw
	// token exposes no internal identifiers.
	token, err := s.codec.Issue(security.TokenKindPasswordReset, user.Email, user.Email, s.cfg.ResetTokenTTL)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	record := domain.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: security.HashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.ResetTokenTTL),
	}
	if err := s.tokens.CreatePasswordReset(ctx, record); err != nil {
		return fmt.Errorf("persist reset token: %w", err)
	}

	if s.events != nil {
		if err := s.events.PasswordResetRequested(ctx, user.ID, user.Email, token); err != nil {
			s.logger.Error("publish password reset requested", zap.Error(err))
		}
	}
	return nil
}

// Reset redeems a single-use reset token and sets the new password. A
// successful reset also clears any active lockout, since the user has proven
// control of the mailbox.
func (s *PasswordService) Reset(ctx context.Context, token, newPassword string) error {
	claims, err := s.codec.Decode(token, security.TokenKindPasswordReset)
	if err != nil {
		return ErrInvalidToken
	}

	record, err := s.tokens.GetPasswordResetByHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	now := s.now().UTC()
	if record.UsedAt != nil || record.IsExpired(now) {
		return ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	// The token subject is the email; it must still match the account the
	// persisted record points at.
	if user.Email != claims.Subject {
		return ErrInvalidToken
	}

	consumed, err := s.tokens.ConsumePasswordReset(ctx, record.ID, now)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if !consumed {
		// Lost the race to a concurrent redemption.
		return ErrInvalidToken
	}

	if err := s.applyNewPassword(ctx, user, newPassword, "password_reset"); err != nil {
		return err
	}

	if err := s.users.UpdateLockout(ctx, user.ID, 0, nil); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

// applyNewPassword validates, hashes, and stores the new password, then
// revokes all refresh tokens for the user.
func (s *PasswordService) applyNewPassword(ctx context.Context, user *domain.User, newPassword, action string) error {
	reused, err := verifyPassword(s.hasher, newPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if reused {
		return ErrPasswordReused
	}

	if err := s.validator.Validate(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	if err := s.users.UpdatePassword(ctx, user.ID, hash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	revoked, err := s.tokens.RevokeAllRefreshForUser(ctx, user.ID, now)
	if err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}

	if s.events != nil {
		if err := s.events.PasswordChanged(ctx, user.ID); err != nil {
			s.logger.Error("publish password changed", zap.Error(err))
		}
		if revoked > 0 {
			if err := s.events.SessionsRevoked(ctx, user.ID, revoked); err != nil {
				s.logger.Error("publish sessions revoked", zap.Error(err))
			}
		}
	}

	if s.audit != nil {
		entry := domain.AuditLog{
			ID:        uuid.NewString(),
			UserID:    &user.ID,
			Action:    action,
			Resource:  "auth",
			CreatedAt: now,
		}
		if err := s.audit.Append(ctx, entry); err != nil {
			s.logger.Error("append audit log", zap.Error(err), zap.String("action", action))
		}
	}

	s.logger.Info("password updated",
		zap.String("user_id", user.ID),
		zap.String("action", action),
		zap.Int("sessions_revoked", revoked),
	)
	return nil
}
